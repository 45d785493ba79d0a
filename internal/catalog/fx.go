package catalog

import (
	"github.com/studyloop/polarsync/internal/catalog/repository"
	"github.com/studyloop/polarsync/internal/catalog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
