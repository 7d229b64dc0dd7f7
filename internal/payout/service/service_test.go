package service

import (
	"context"
	"testing"

	ledgerdomain "github.com/Arnzyy/AIFANS-sub001/internal/ledger/domain"
	ledgerservice "github.com/Arnzyy/AIFANS-sub001/internal/ledger/service"
	payoutdomain "github.com/Arnzyy/AIFANS-sub001/internal/payout/domain"
	payoutproviderservice "github.com/Arnzyy/AIFANS-sub001/internal/payoutprovider/service"
	"github.com/Arnzyy/AIFANS-sub001/internal/testutil"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const creatorID = snowflake.ID(100)

func newTestService(t *testing.T) (payoutdomain.Service, ledgerdomain.Service, *gorm.DB) {
	t.Helper()
	gdb := testutil.OpenDB(t)
	log := zap.NewNop()
	node := testutil.NewNode(t)
	policy := testutil.Policy()

	ledger := ledgerservice.NewService(ledgerservice.Params{
		DB:     gdb,
		Log:    log,
		GenID:  node,
		Policy: policy,
	})
	svc := NewService(Params{
		DB:     gdb,
		Log:    log,
		GenID:  node,
		Policy: policy,
		Provider: payoutproviderservice.New(payoutproviderservice.Params{
			DB:  gdb,
			Log: log,
		}),
	})
	return svc, ledger, gdb
}

func enablePayouts(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	if err := gdb.Exec(
		`INSERT INTO payout_accounts (creator_id, payouts_enabled) VALUES (?, TRUE)`,
		creatorID,
	).Error; err != nil {
		t.Fatalf("enable payouts: %v", err)
	}
}

// creditAvailable books an earning and force-matures it.
func creditAvailable(t *testing.T, ledger ledgerdomain.Service, gdb *gorm.DB, ref string, gross int64) {
	t.Helper()
	if _, err := ledger.Credit(context.Background(), nil, ledgerdomain.CreditRequest{
		CreatorID:   creatorID,
		SourceType:  ledgerdomain.SourceTypeSale,
		SourceRef:   ref,
		GrossAmount: gross,
		Currency:    "USD",
	}); err != nil {
		t.Fatalf("credit %s: %v", ref, err)
	}
	if err := gdb.Exec(
		`UPDATE ledger_entries SET status = 'available' WHERE source_ref = ?`, ref,
	).Error; err != nil {
		t.Fatalf("mature %s: %v", ref, err)
	}
}

func TestRequestPayoutDisabled(t *testing.T) {
	svc, _, _ := newTestService(t)

	if _, err := svc.RequestPayout(context.Background(), creatorID); err != payoutdomain.ErrPayoutsDisabled {
		t.Fatalf("err = %v, want ErrPayoutsDisabled", err)
	}
}

func TestRequestPayoutBelowMinimum(t *testing.T) {
	svc, ledger, gdb := newTestService(t)
	enablePayouts(t, gdb)

	// Net of 1200 gross at 20% is 960, under the 1000 minimum.
	creditAvailable(t, ledger, gdb, "txn_small", 1200)

	if _, err := svc.RequestPayout(context.Background(), creatorID); err != payoutdomain.ErrBelowMinimum {
		t.Fatalf("err = %v, want ErrBelowMinimum", err)
	}

	// The rejected request must leave nothing behind: no payout row, no
	// reserved entries.
	testutil.AssertCount(t, gdb, `SELECT COUNT(*) FROM payouts`, 0)
	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM ledger_entries WHERE status = 'reserved'`, 0)
	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM ledger_entries WHERE status = 'available'`, 1)
}

func TestRequestPayoutReservesEverythingAvailable(t *testing.T) {
	svc, ledger, gdb := newTestService(t)
	enablePayouts(t, gdb)
	ctx := context.Background()

	// Nets: 2400 + 1600 + 1230 = 5230 available.
	creditAvailable(t, ledger, gdb, "txn_a", 3000)
	creditAvailable(t, ledger, gdb, "txn_b", 2000)
	creditAvailable(t, ledger, gdb, "txn_c", 1538) // fee 308, net 1230

	// Plus one still-pending entry that must not be touched.
	if _, err := ledger.Credit(ctx, nil, ledgerdomain.CreditRequest{
		CreatorID:   creatorID,
		SourceType:  ledgerdomain.SourceTypeSale,
		SourceRef:   "txn_pending",
		GrossAmount: 9000,
		Currency:    "USD",
	}); err != nil {
		t.Fatal(err)
	}

	payout, err := svc.RequestPayout(ctx, creatorID)
	if err != nil {
		t.Fatalf("request payout: %v", err)
	}
	if payout.Amount != 5230 {
		t.Fatalf("payout amount = %d, want 5230", payout.Amount)
	}
	if payout.EntryCount != 3 {
		t.Fatalf("entry count = %d, want 3", payout.EntryCount)
	}
	if payout.Status != payoutdomain.PayoutStatusPending {
		t.Fatalf("status = %s, want pending", payout.Status)
	}

	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM ledger_entries WHERE status = 'reserved' AND payout_id = ?`, 3, payout.ID)
	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM ledger_entries WHERE status = 'pending'`, 1)

	// The balance moved wholesale from available to reserved, so a second
	// request has nothing to draw on.
	if _, err := svc.RequestPayout(ctx, creatorID); err != payoutdomain.ErrBelowMinimum {
		t.Fatalf("second request err = %v, want ErrBelowMinimum", err)
	}
	testutil.AssertCount(t, gdb, `SELECT COUNT(*) FROM payouts`, 1)
}

func TestConfirmPayoutMarksEntriesPaid(t *testing.T) {
	svc, ledger, gdb := newTestService(t)
	enablePayouts(t, gdb)
	ctx := context.Background()

	creditAvailable(t, ledger, gdb, "txn_d", 3000)
	payout, err := svc.RequestPayout(ctx, creatorID)
	if err != nil {
		t.Fatalf("request payout: %v", err)
	}

	if err := svc.MarkProcessing(ctx, payout.ID, "prov_1"); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	if err := svc.ConfirmPayout(ctx, payout.ID, "prov_1"); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM payouts WHERE id = ? AND status = 'completed'`, 1, payout.ID)
	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM ledger_entries WHERE payout_id = ? AND status = 'paid'`, 1, payout.ID)

	// Provider callbacks retry; a repeat confirm is a no-op.
	if err := svc.ConfirmPayout(ctx, payout.ID, "prov_1"); err != nil {
		t.Fatalf("repeat confirm: %v", err)
	}

	// But failing a completed payout is a real conflict.
	if err := svc.FailPayout(ctx, payout.ID, "late failure"); err != payoutdomain.ErrPayoutNotTransitable {
		t.Fatalf("fail after confirm err = %v, want ErrPayoutNotTransitable", err)
	}
}

func TestFailPayoutReleasesReservation(t *testing.T) {
	svc, ledger, gdb := newTestService(t)
	enablePayouts(t, gdb)
	ctx := context.Background()

	creditAvailable(t, ledger, gdb, "txn_e", 3000)
	payout, err := svc.RequestPayout(ctx, creatorID)
	if err != nil {
		t.Fatalf("request payout: %v", err)
	}

	if err := svc.FailPayout(ctx, payout.ID, "bank rejected"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM payouts WHERE id = ? AND status = 'failed'`, 1, payout.ID)
	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM ledger_entries WHERE status = 'available' AND payout_id IS NULL`, 1)

	// Released money is immediately requestable again.
	second, err := svc.RequestPayout(ctx, creatorID)
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if second.Amount != 2400 {
		t.Fatalf("second payout amount = %d, want 2400", second.Amount)
	}
}

func TestPayoutAboveMinimumBoundary(t *testing.T) {
	svc, ledger, gdb := newTestService(t)
	enablePayouts(t, gdb)
	ctx := context.Background()

	// Net exactly at the minimum passes.
	creditAvailable(t, ledger, gdb, "txn_f", 1250) // fee 250, net 1000

	payout, err := svc.RequestPayout(ctx, creatorID)
	if err != nil {
		t.Fatalf("request payout: %v", err)
	}
	if payout.Amount != 1000 {
		t.Fatalf("payout amount = %d, want 1000", payout.Amount)
	}
}
