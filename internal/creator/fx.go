package creator

import (
	"github.com/Arnzyy/AIFANS-sub001/internal/creator/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("creator",
	fx.Provide(repository.New),
)
