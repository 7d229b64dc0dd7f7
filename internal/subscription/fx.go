package subscription

import (
	"github.com/Arnzyy/AIFANS-sub001/internal/subscription/repository"
	"github.com/Arnzyy/AIFANS-sub001/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription",
	fx.Provide(repository.New),
	fx.Provide(service.NewService),
)
