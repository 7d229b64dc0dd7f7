// Package scheduler runs the periodic maintenance sweeps: expiring lapsed
// subscriptions and releasing matured earnings. Jobs are conditional-update
// based, so running them twice, or on two instances at once, converges to
// the same state.
package scheduler

import (
	"context"
	"time"

	"github.com/Arnzyy/AIFANS-sub001/internal/clock"
	ledgerdomain "github.com/Arnzyy/AIFANS-sub001/internal/ledger/domain"
	obsmetrics "github.com/Arnzyy/AIFANS-sub001/internal/observability/metrics"
	subscriptiondomain "github.com/Arnzyy/AIFANS-sub001/internal/subscription/domain"
	"go.uber.org/zap"
)

const (
	JobExpireSubs    = "expire_subs"
	JobMatureEntries = "mature_entries"
)

type job struct {
	name string
	run  func(ctx context.Context, now time.Time) (int64, error)
}

type Scheduler struct {
	cfg          Config
	log          *zap.Logger
	clock        clock.Clock
	locker       *Locker
	subscription subscriptiondomain.Service
	ledger       ledgerdomain.Service
	obsMetrics   *obsmetrics.Metrics
	jobs         []job
}

func New(
	cfg Config,
	log *zap.Logger,
	clk clock.Clock,
	locker *Locker,
	subscription subscriptiondomain.Service,
	ledger ledgerdomain.Service,
	obsMetrics *obsmetrics.Metrics,
) *Scheduler {
	s := &Scheduler{
		cfg:          cfg.withDefaults(),
		log:          log.Named("scheduler"),
		clock:        clk,
		locker:       locker,
		subscription: subscription,
		ledger:       ledger,
		obsMetrics:   obsMetrics,
	}
	s.jobs = []job{
		{name: JobExpireSubs, run: s.expireSubs},
		{name: JobMatureEntries, run: s.matureEntries},
	}
	return s
}

// RunOnce executes every job a single time. Job failures are logged and
// counted but do not stop the sweep; one stuck job must not starve the rest.
func (s *Scheduler) RunOnce(ctx context.Context) {
	for _, j := range s.jobs {
		s.runJob(ctx, j)
	}
}

// RunForever sweeps on the configured interval until ctx is cancelled.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, j job) {
	lockKey := "scheduler:" + j.name
	acquired, err := s.locker.Acquire(ctx, lockKey)
	if err != nil {
		s.log.Warn("lock acquire failed", zap.String("job", j.name), zap.Error(err))
		return
	}
	if !acquired {
		return
	}
	defer func() {
		if err := s.locker.Release(ctx, lockKey); err != nil {
			s.log.Warn("lock release failed", zap.String("job", j.name), zap.Error(err))
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	defer cancel()

	started := time.Now()
	now := s.clock.Now()
	processed, err := j.run(jobCtx, now)
	elapsed := time.Since(started)

	s.obsMetrics.IncJobRun(j.name)
	s.obsMetrics.ObserveJobDuration(j.name, elapsed)
	if err != nil {
		s.obsMetrics.IncJobError(j.name)
		s.log.Error("job failed",
			zap.String("job", j.name),
			zap.Int64("processed", processed),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return
	}
	s.obsMetrics.AddJobProcessed(j.name, processed)
	if processed > 0 {
		s.log.Info("job finished",
			zap.String("job", j.name),
			zap.Int64("processed", processed),
			zap.Duration("elapsed", elapsed),
		)
	}
}

func (s *Scheduler) expireSubs(ctx context.Context, now time.Time) (int64, error) {
	return s.subscription.ExpireDue(ctx, now, s.cfg.BatchSize)
}

func (s *Scheduler) matureEntries(ctx context.Context, now time.Time) (int64, error) {
	return s.ledger.MatureDueEntries(ctx, now)
}
