package payout

import (
	"github.com/Arnzyy/AIFANS-sub001/internal/payout/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payout",
	fx.Provide(service.NewService),
)
