package main

import (
	"github.com/Arnzyy/AIFANS-sub001/internal/clock"
	"github.com/Arnzyy/AIFANS-sub001/internal/config"
	"github.com/Arnzyy/AIFANS-sub001/internal/creator"
	"github.com/Arnzyy/AIFANS-sub001/internal/ledger"
	"github.com/Arnzyy/AIFANS-sub001/internal/migration"
	"github.com/Arnzyy/AIFANS-sub001/internal/observability"
	"github.com/Arnzyy/AIFANS-sub001/internal/reconciliation"
	"github.com/Arnzyy/AIFANS-sub001/internal/scheduler"
	"github.com/Arnzyy/AIFANS-sub001/internal/subscription"
	"github.com/Arnzyy/AIFANS-sub001/pkg/db"
	"github.com/Arnzyy/AIFANS-sub001/pkg/id"
	"github.com/Arnzyy/AIFANS-sub001/pkg/redis"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		config.Module,
		clock.Module,
		id.Module,
		observability.Module,
		db.Module,
		redis.Module,
		migration.Module,
		creator.Module,
		reconciliation.Module,
		ledger.Module,
		subscription.Module,
		scheduler.Module,
	).Run()
}
