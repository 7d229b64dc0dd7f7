package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/Arnzyy/AIFANS-sub001/internal/clock"
	creatorrepository "github.com/Arnzyy/AIFANS-sub001/internal/creator/repository"
	ledgerservice "github.com/Arnzyy/AIFANS-sub001/internal/ledger/service"
	reconciliationservice "github.com/Arnzyy/AIFANS-sub001/internal/reconciliation/service"
	subscriptiondomain "github.com/Arnzyy/AIFANS-sub001/internal/subscription/domain"
	subscriptionrepository "github.com/Arnzyy/AIFANS-sub001/internal/subscription/repository"
	subscriptionservice "github.com/Arnzyy/AIFANS-sub001/internal/subscription/service"
	"github.com/Arnzyy/AIFANS-sub001/internal/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestScheduler(t *testing.T) (*Scheduler, subscriptiondomain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()
	gdb := testutil.OpenDB(t)
	log := zap.NewNop()
	node := testutil.NewNode(t)
	policy := testutil.Policy()
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	ledger := ledgerservice.NewService(ledgerservice.Params{
		DB:     gdb,
		Log:    log,
		GenID:  node,
		Policy: policy,
	})
	subscription := subscriptionservice.NewService(subscriptionservice.Params{
		DB:     gdb,
		Log:    log,
		GenID:  node,
		Policy: policy,
		Repo: subscriptionrepository.New(subscriptionrepository.Params{
			DB:  gdb,
			Log: log,
		}),
		CreatorRepo: creatorrepository.New(creatorrepository.Params{
			DB:  gdb,
			Log: log,
		}),
		Ledger: ledger,
		Reconciliation: reconciliationservice.New(reconciliationservice.Params{
			DB:    gdb,
			Log:   log,
			GenID: node,
		}),
	})

	s := New(Config{}, log, clk, NewLocker(nil, time.Minute), subscription, ledger, nil)
	return s, subscription, gdb, clk
}

func TestSweepExpiresAndMatures(t *testing.T) {
	s, subscription, gdb, clk := newTestScheduler(t)
	ctx := context.Background()

	if _, err := subscription.ApplyNewSale(ctx, nil, subscriptiondomain.SaleEvent{
		SubscriptionRef: "sub_1",
		TransactionRef:  "txn_1",
		FanID:           7,
		CreatorID:       100,
		Amount:          999,
		Currency:        "USD",
		OccurredAt:      clk.Now(),
	}); err != nil {
		t.Fatalf("new sale: %v", err)
	}

	// Nothing is due yet.
	s.RunOnce(ctx)
	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM subscriptions WHERE status = 'active'`, 1)
	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM ledger_entries WHERE status = 'pending'`, 1)

	// Day 14: the hold elapses, the subscription still has 16 days left.
	clk.Advance(14 * 24 * time.Hour)
	s.RunOnce(ctx)
	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM ledger_entries WHERE status = 'available'`, 1)
	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM subscriptions WHERE status = 'active'`, 1)

	// Day 30: the paid-through date passes.
	clk.Advance(16 * 24 * time.Hour)
	s.RunOnce(ctx)
	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM subscriptions WHERE status = 'expired'`, 1)
	testutil.AssertCount(t, gdb, `SELECT subscriber_count FROM creators WHERE id = 100`, 0)

	// A repeat sweep converges: nothing changes.
	s.RunOnce(ctx)
	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM subscriptions WHERE status = 'expired'`, 1)
	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM ledger_entries WHERE status = 'available'`, 1)
}

func TestLockerWithoutRedisAlwaysAcquires(t *testing.T) {
	locker := NewLocker(nil, time.Minute)

	acquired, err := locker.Acquire(context.Background(), "scheduler:test")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !acquired {
		t.Fatal("expected acquire to succeed without redis")
	}
	if err := locker.Release(context.Background(), "scheduler:test"); err != nil {
		t.Fatalf("release: %v", err)
	}
}
