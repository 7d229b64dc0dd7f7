package scheduler

import (
	"context"

	"github.com/Arnzyy/AIFANS-sub001/internal/clock"
	ledgerdomain "github.com/Arnzyy/AIFANS-sub001/internal/ledger/domain"
	obsmetrics "github.com/Arnzyy/AIFANS-sub001/internal/observability/metrics"
	subscriptiondomain "github.com/Arnzyy/AIFANS-sub001/internal/subscription/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config       Config `optional:"true"`
	Log          *zap.Logger
	Clock        clock.Clock
	Redis        *redis.Client `optional:"true"`
	Subscription subscriptiondomain.Service
	Ledger       ledgerdomain.Service
	ObsMetrics   *obsmetrics.Metrics `optional:"true"`
}

func provide(p Params) *Scheduler {
	cfg := p.Config.withDefaults()
	locker := NewLocker(p.Redis, cfg.LockTTL)
	return New(cfg, p.Log, p.Clock, locker, p.Subscription, p.Ledger, p.ObsMetrics)
}

var Module = fx.Module("scheduler",
	fx.Provide(provide),
	fx.Invoke(func(lc fx.Lifecycle, s *Scheduler) {
		runCtx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					defer close(done)
					s.RunForever(runCtx)
				}()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				cancel()
				select {
				case <-done:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
		})
	}),
)
