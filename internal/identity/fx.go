package identity

import (
	"github.com/studyloop/polarsync/internal/identity/repository"
	"github.com/studyloop/polarsync/internal/identity/service"
	"go.uber.org/fx"
)

var Module = fx.Module("identity.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
