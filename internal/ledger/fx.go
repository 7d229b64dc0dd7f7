package ledger

import (
	"github.com/Arnzyy/AIFANS-sub001/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger",
	fx.Provide(service.NewService),
)
