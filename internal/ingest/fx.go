package ingest

import (
	"github.com/studyloop/polarsync/internal/ingest/repository"
	"github.com/studyloop/polarsync/internal/ingest/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ingest.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
