package payoutprovider

import (
	"github.com/Arnzyy/AIFANS-sub001/internal/payoutprovider/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payoutprovider",
	fx.Provide(service.New),
)
