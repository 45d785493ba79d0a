package subscription

import (
	"github.com/studyloop/polarsync/internal/subscription/repository"
	"github.com/studyloop/polarsync/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
