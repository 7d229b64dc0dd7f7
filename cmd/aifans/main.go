// Command aifans runs the whole billing core in one process: webhook
// intake, the creator API, and the maintenance sweeper. The apps/ binaries
// split the same modules across processes for scaled deployments.
package main

import (
	"github.com/Arnzyy/AIFANS-sub001/internal/clock"
	"github.com/Arnzyy/AIFANS-sub001/internal/config"
	"github.com/Arnzyy/AIFANS-sub001/internal/creator"
	"github.com/Arnzyy/AIFANS-sub001/internal/ledger"
	"github.com/Arnzyy/AIFANS-sub001/internal/migration"
	"github.com/Arnzyy/AIFANS-sub001/internal/observability"
	"github.com/Arnzyy/AIFANS-sub001/internal/payout"
	"github.com/Arnzyy/AIFANS-sub001/internal/payoutprovider"
	"github.com/Arnzyy/AIFANS-sub001/internal/reconciliation"
	"github.com/Arnzyy/AIFANS-sub001/internal/scheduler"
	"github.com/Arnzyy/AIFANS-sub001/internal/server"
	"github.com/Arnzyy/AIFANS-sub001/internal/subscription"
	"github.com/Arnzyy/AIFANS-sub001/internal/webhook"
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
		webhook.Module,
		payoutprovider.Module,
		payout.Module,
		scheduler.Module,
		server.Module,
	).Run()
}
