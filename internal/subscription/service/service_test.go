package service

import (
	"context"
	"testing"
	"time"

	creatorrepository "github.com/Arnzyy/AIFANS-sub001/internal/creator/repository"
	ledgerservice "github.com/Arnzyy/AIFANS-sub001/internal/ledger/service"
	reconciliationservice "github.com/Arnzyy/AIFANS-sub001/internal/reconciliation/service"
	subscriptiondomain "github.com/Arnzyy/AIFANS-sub001/internal/subscription/domain"
	"github.com/Arnzyy/AIFANS-sub001/internal/subscription/repository"
	"github.com/Arnzyy/AIFANS-sub001/internal/testutil"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (subscriptiondomain.Service, *gorm.DB) {
	t.Helper()
	gdb := testutil.OpenDB(t)
	log := zap.NewNop()
	node := testutil.NewNode(t)
	policy := testutil.Policy()

	svc := NewService(Params{
		DB:     gdb,
		Log:    log,
		GenID:  node,
		Policy: policy,
		Repo: repository.New(repository.Params{
			DB:  gdb,
			Log: log,
		}),
		CreatorRepo: creatorrepository.New(creatorrepository.Params{
			DB:  gdb,
			Log: log,
		}),
		Ledger: ledgerservice.NewService(ledgerservice.Params{
			DB:     gdb,
			Log:    log,
			GenID:  node,
			Policy: policy,
		}),
		Reconciliation: reconciliationservice.New(reconciliationservice.Params{
			DB:    gdb,
			Log:   log,
			GenID: node,
		}),
	})
	return svc, gdb
}

func saleEvent(subRef, txnRef string) subscriptiondomain.SaleEvent {
	return subscriptiondomain.SaleEvent{
		SubscriptionRef: subRef,
		TransactionRef:  txnRef,
		FanID:           7,
		CreatorID:       100,
		Amount:          999,
		Currency:        "USD",
		OccurredAt:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestNewSaleCreatesActiveSubscription(t *testing.T) {
	svc, gdb := newTestService(t)
	ctx := context.Background()

	sub, err := svc.ApplyNewSale(ctx, nil, saleEvent("sub_1", "txn_1"))
	if err != nil {
		t.Fatalf("new sale: %v", err)
	}

	if sub.Status != subscriptiondomain.StatusActive {
		t.Fatalf("status = %s, want active", sub.Status)
	}
	wantExpiry := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	if !sub.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expires_at = %v, want %v", sub.ExpiresAt, wantExpiry)
	}

	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM ledger_entries WHERE source_type = 'sale' AND status = 'pending'`, 1)
	testutil.AssertCount(t, gdb,
		`SELECT subscriber_count FROM creators WHERE id = 100`, 1)
}

func TestNewSaleUsesTierDuration(t *testing.T) {
	svc, gdb := newTestService(t)
	ctx := context.Background()

	if err := gdb.Exec(
		`INSERT INTO creators (id, display_name) VALUES (100, 'c')`,
	).Error; err != nil {
		t.Fatal(err)
	}
	if err := gdb.Exec(
		`INSERT INTO tiers (id, creator_id, name, duration_days, price, currency)
		 VALUES (55, 100, 'quarterly', 90, 2500, 'USD')`,
	).Error; err != nil {
		t.Fatal(err)
	}

	ev := saleEvent("sub_tier", "txn_tier")
	tierID := snowflake.ID(55)
	ev.TierID = &tierID

	sub, err := svc.ApplyNewSale(ctx, nil, ev)
	if err != nil {
		t.Fatalf("new sale: %v", err)
	}
	wantExpiry := ev.OccurredAt.Add(90 * 24 * time.Hour)
	if !sub.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expires_at = %v, want %v", sub.ExpiresAt, wantExpiry)
	}
}

func TestRenewalExtendsExpiryStrictly(t *testing.T) {
	svc, gdb := newTestService(t)
	ctx := context.Background()

	sub, err := svc.ApplyNewSale(ctx, nil, saleEvent("sub_2", "txn_2a"))
	if err != nil {
		t.Fatalf("new sale: %v", err)
	}

	ev := saleEvent("sub_2", "txn_2b")
	renewed, err := svc.ApplyRenewal(ctx, nil, ev)
	if err != nil {
		t.Fatalf("renewal: %v", err)
	}
	if !renewed.ExpiresAt.After(sub.ExpiresAt) {
		t.Fatalf("expiry did not increase: %v -> %v", sub.ExpiresAt, renewed.ExpiresAt)
	}
	wantExpiry := sub.ExpiresAt.Add(30 * 24 * time.Hour)
	if !renewed.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expires_at = %v, want %v", renewed.ExpiresAt, wantExpiry)
	}

	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM ledger_entries WHERE source_type = 'renewal'`, 1)
}

func TestRenewalOnUnknownSubscriptionOpensCase(t *testing.T) {
	svc, gdb := newTestService(t)
	ctx := context.Background()

	sub, err := svc.ApplyRenewal(ctx, nil, saleEvent("sub_ghost", "txn_ghost"))
	if err != nil {
		t.Fatalf("renewal: %v", err)
	}
	if sub != nil {
		t.Fatalf("expected no subscription, got %+v", sub)
	}

	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM review_cases WHERE kind = 'orphaned_reference'`, 1)
	testutil.AssertCount(t, gdb, `SELECT COUNT(*) FROM ledger_entries`, 0)
}

func TestRenewalOnRevokedOpensOrphanedCase(t *testing.T) {
	svc, gdb := newTestService(t)
	ctx := context.Background()

	if _, err := svc.ApplyNewSale(ctx, nil, saleEvent("sub_3", "txn_3a")); err != nil {
		t.Fatalf("new sale: %v", err)
	}
	if err := svc.ApplyChargeback(ctx, nil, subscriptiondomain.DisputeEvent{
		EventRef:        "evt_cb",
		SubscriptionRef: "sub_3",
		TransactionRef:  "txn_3a",
		FanID:           7,
	}); err != nil {
		t.Fatalf("chargeback: %v", err)
	}

	// Revoked is terminal: the renewal lands in review, the status stays.
	if _, err := svc.ApplyRenewal(ctx, nil, saleEvent("sub_3", "txn_3b")); err != nil {
		t.Fatalf("renewal: %v", err)
	}
	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM review_cases WHERE kind = 'orphaned_renewal'`, 1)
	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM subscriptions WHERE external_ref = 'sub_3' AND status = 'revoked'`, 1)
	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM ledger_entries WHERE source_type = 'renewal'`, 0)
}

func TestCancellationDisablesAutoRenewOnly(t *testing.T) {
	svc, gdb := newTestService(t)
	ctx := context.Background()

	if _, err := svc.ApplyNewSale(ctx, nil, saleEvent("sub_4", "txn_4")); err != nil {
		t.Fatalf("new sale: %v", err)
	}
	if err := svc.ApplyCancellation(ctx, nil, "sub_4"); err != nil {
		t.Fatalf("cancellation: %v", err)
	}

	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM subscriptions WHERE external_ref = 'sub_4' AND status = 'active' AND auto_renew = FALSE`, 1)
}

func TestChargebackRevokesAndReverses(t *testing.T) {
	svc, gdb := newTestService(t)
	ctx := context.Background()

	if _, err := svc.ApplyNewSale(ctx, nil, saleEvent("sub_5", "txn_5")); err != nil {
		t.Fatalf("new sale: %v", err)
	}
	if err := svc.ApplyChargeback(ctx, nil, subscriptiondomain.DisputeEvent{
		EventRef:        "evt_cb_5",
		SubscriptionRef: "sub_5",
		TransactionRef:  "txn_5",
		FanID:           7,
	}); err != nil {
		t.Fatalf("chargeback: %v", err)
	}

	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM subscriptions WHERE external_ref = 'sub_5' AND status = 'revoked'`, 1)
	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM ledger_entries WHERE source_type = 'reversal'`, 1)
	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM review_cases WHERE kind = 'chargeback_flag'`, 1)
	testutil.AssertCount(t, gdb, `SELECT subscriber_count FROM creators WHERE id = 100`, 0)
	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM creators WHERE id = 100 AND flagged_for_review = TRUE`, 1)
}

func TestRefundOnReservedEntryOpensLossCase(t *testing.T) {
	svc, gdb := newTestService(t)
	ctx := context.Background()

	if _, err := svc.ApplyNewSale(ctx, nil, saleEvent("sub_6", "txn_6")); err != nil {
		t.Fatalf("new sale: %v", err)
	}
	if err := gdb.Exec(
		`UPDATE ledger_entries SET status = 'reserved' WHERE source_ref = 'txn_6'`,
	).Error; err != nil {
		t.Fatal(err)
	}

	if err := svc.ApplyRefund(ctx, nil, subscriptiondomain.DisputeEvent{
		EventRef:        "evt_rf_6",
		SubscriptionRef: "sub_6",
		TransactionRef:  "txn_6",
		FanID:           7,
	}); err != nil {
		t.Fatalf("refund: %v", err)
	}

	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM review_cases WHERE kind = 'irrecoverable_loss'`, 1)
	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM ledger_entries WHERE source_ref = 'txn_6' AND status = 'reserved'`, 1)
	// The subscription itself is untouched by a refund.
	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM subscriptions WHERE external_ref = 'sub_6' AND status = 'active'`, 1)
}

func TestRefundOnPendingEntryReverses(t *testing.T) {
	svc, gdb := newTestService(t)
	ctx := context.Background()

	if _, err := svc.ApplyNewSale(ctx, nil, saleEvent("sub_7", "txn_7")); err != nil {
		t.Fatalf("new sale: %v", err)
	}
	if err := svc.ApplyRefund(ctx, nil, subscriptiondomain.DisputeEvent{
		EventRef:        "evt_rf_7",
		SubscriptionRef: "sub_7",
		TransactionRef:  "txn_7",
		FanID:           7,
	}); err != nil {
		t.Fatalf("refund: %v", err)
	}

	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM ledger_entries WHERE source_ref = 'txn_7' AND status = 'reversed'`, 1)
	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM ledger_entries WHERE source_type = 'reversal'`, 1)
}

func TestExpireDueDecrementsCounter(t *testing.T) {
	svc, gdb := newTestService(t)
	ctx := context.Background()

	ev := saleEvent("sub_8", "txn_8")
	sub, err := svc.ApplyNewSale(ctx, nil, ev)
	if err != nil {
		t.Fatalf("new sale: %v", err)
	}

	processed, err := svc.ExpireDue(ctx, sub.ExpiresAt.Add(-time.Second), 10)
	if err != nil {
		t.Fatalf("expire early: %v", err)
	}
	if processed != 0 {
		t.Fatalf("expired %d subs before the paid-through date", processed)
	}

	processed, err = svc.ExpireDue(ctx, sub.ExpiresAt, 10)
	if err != nil {
		t.Fatalf("expire due: %v", err)
	}
	if processed != 1 {
		t.Fatalf("expired %d subs, want 1", processed)
	}

	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM subscriptions WHERE external_ref = 'sub_8' AND status = 'expired'`, 1)
	testutil.AssertCount(t, gdb, `SELECT subscriber_count FROM creators WHERE id = 100`, 0)

	// Rerunning finds nothing.
	processed, err = svc.ExpireDue(ctx, sub.ExpiresAt, 10)
	if err != nil {
		t.Fatalf("expire again: %v", err)
	}
	if processed != 0 {
		t.Fatalf("second run expired %d subs", processed)
	}
}
