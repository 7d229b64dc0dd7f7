package reconciliation

import (
	"github.com/Arnzyy/AIFANS-sub001/internal/reconciliation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reconciliation",
	fx.Provide(service.New),
)
