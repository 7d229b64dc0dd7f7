package webhook

import (
	"github.com/Arnzyy/AIFANS-sub001/internal/webhook/service"
	"go.uber.org/fx"
)

var Module = fx.Module("webhook",
	fx.Provide(service.New),
)
