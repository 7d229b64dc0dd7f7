package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Arnzyy/AIFANS-sub001/internal/clock"
	"github.com/Arnzyy/AIFANS-sub001/internal/config"
	creatorrepository "github.com/Arnzyy/AIFANS-sub001/internal/creator/repository"
	ledgerservice "github.com/Arnzyy/AIFANS-sub001/internal/ledger/service"
	reconciliationservice "github.com/Arnzyy/AIFANS-sub001/internal/reconciliation/service"
	subscriptionrepository "github.com/Arnzyy/AIFANS-sub001/internal/subscription/repository"
	subscriptionservice "github.com/Arnzyy/AIFANS-sub001/internal/subscription/service"
	"github.com/Arnzyy/AIFANS-sub001/internal/testutil"
	webhookdomain "github.com/Arnzyy/AIFANS-sub001/internal/webhook/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSecret = "whsec_test"

func newTestService(t *testing.T) (Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()
	gdb := testutil.OpenDB(t)
	log := zap.NewNop()
	node := testutil.NewNode(t)
	policy := testutil.Policy()
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

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

	svc := New(Params{
		DB:    gdb,
		Log:   log,
		GenID: node,
		Config: config.Config{
			WebhookSecret:           testSecret,
			WebhookToleranceSeconds: 300,
		},
		Clock:        clk,
		Subscription: subscription,
	})
	return svc, gdb, clk
}

func signedPayload(t *testing.T, clk *clock.FakeClock, n webhookdomain.Notification) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal notification: %v", err)
	}
	return payload, SignPayload(testSecret, payload, clk.Now().Unix())
}

func saleNotification(eventID, subRef, txnRef string) webhookdomain.Notification {
	return webhookdomain.Notification{
		ID:              eventID,
		Type:            webhookdomain.EventNewSale,
		SubscriptionRef: subRef,
		TransactionRef:  txnRef,
		FanID:           7,
		CreatorID:       100,
		Amount:          999,
		Currency:        "USD",
		OccurredAt:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestIngestRejectsBadSignature(t *testing.T) {
	svc, gdb, clk := newTestService(t)
	ctx := context.Background()

	payload, _ := signedPayload(t, clk, saleNotification("evt_1", "sub_1", "txn_1"))
	badSig := SignPayload("wrong_secret", payload, clk.Now().Unix())

	if err := svc.Ingest(ctx, payload, badSig); err != webhookdomain.ErrInvalidSignature {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
	testutil.AssertCount(t, gdb, `SELECT COUNT(*) FROM webhook_events`, 0)
	testutil.AssertCount(t, gdb, `SELECT COUNT(*) FROM subscriptions`, 0)
}

func TestIngestRejectsStaleTimestamp(t *testing.T) {
	svc, _, clk := newTestService(t)
	ctx := context.Background()

	n := saleNotification("evt_stale", "sub_s", "txn_s")
	payload, err := json.Marshal(n)
	if err != nil {
		t.Fatal(err)
	}
	sig := SignPayload(testSecret, payload, clk.Now().Add(-10*time.Minute).Unix())

	if err := svc.Ingest(ctx, payload, sig); err != webhookdomain.ErrInvalidSignature {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	svc, gdb, clk := newTestService(t)
	ctx := context.Background()

	payload, sig := signedPayload(t, clk, saleNotification("evt_2", "sub_2", "txn_2"))

	if err := svc.Ingest(ctx, payload, sig); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if err := svc.Ingest(ctx, payload, sig); err != webhookdomain.ErrEventAlreadyProcessed {
		t.Fatalf("second ingest err = %v, want ErrEventAlreadyProcessed", err)
	}

	// One event row, one subscription, one credit. Nothing doubled.
	testutil.AssertCount(t, gdb, `SELECT COUNT(*) FROM webhook_events`, 1)
	testutil.AssertCount(t, gdb, `SELECT COUNT(*) FROM subscriptions`, 1)
	testutil.AssertCount(t, gdb, `SELECT COUNT(*) FROM ledger_entries`, 1)
	testutil.AssertCount(t, gdb, `SELECT subscriber_count FROM creators WHERE id = 100`, 1)
}

func TestIngestAcksUnknownEventType(t *testing.T) {
	svc, gdb, clk := newTestService(t)
	ctx := context.Background()

	n := saleNotification("evt_3", "sub_3", "txn_3")
	n.Type = "tip_received"
	payload, sig := signedPayload(t, clk, n)

	if err := svc.Ingest(ctx, payload, sig); err != nil {
		t.Fatalf("ingest unknown type: %v", err)
	}
	testutil.AssertCount(t, gdb, `SELECT COUNT(*) FROM webhook_events`, 1)
	testutil.AssertCount(t, gdb, `SELECT COUNT(*) FROM subscriptions`, 0)
}

func TestIngestRejectsMalformedPayload(t *testing.T) {
	svc, _, clk := newTestService(t)
	ctx := context.Background()

	payload := []byte(`{"id": ""}`)
	sig := SignPayload(testSecret, payload, clk.Now().Unix())

	if err := svc.Ingest(ctx, payload, sig); err != webhookdomain.ErrInvalidPayload {
		t.Fatalf("err = %v, want ErrInvalidPayload", err)
	}
}

func TestSaleRenewalChargebackChain(t *testing.T) {
	svc, gdb, clk := newTestService(t)
	ctx := context.Background()

	payload, sig := signedPayload(t, clk, saleNotification("evt_4a", "sub_4", "txn_4a"))
	if err := svc.Ingest(ctx, payload, sig); err != nil {
		t.Fatalf("sale: %v", err)
	}

	renewal := saleNotification("evt_4b", "sub_4", "txn_4b")
	renewal.Type = webhookdomain.EventRenewal
	payload, sig = signedPayload(t, clk, renewal)
	if err := svc.Ingest(ctx, payload, sig); err != nil {
		t.Fatalf("renewal: %v", err)
	}

	chargeback := webhookdomain.Notification{
		ID:              "evt_4c",
		Type:            webhookdomain.EventChargeback,
		SubscriptionRef: "sub_4",
		TransactionRef:  "txn_4b",
		FanID:           7,
		CreatorID:       100,
		OccurredAt:      clk.Now(),
	}
	payload, sig = signedPayload(t, clk, chargeback)
	if err := svc.Ingest(ctx, payload, sig); err != nil {
		t.Fatalf("chargeback: %v", err)
	}

	testutil.AssertCount(t, gdb, `SELECT COUNT(*) FROM webhook_events`, 3)
	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM subscriptions WHERE external_ref = 'sub_4' AND status = 'revoked'`, 1)
	// Sale credit stands, renewal credit reversed, plus the reversal row.
	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM ledger_entries WHERE source_ref = 'txn_4a' AND status = 'pending'`, 1)
	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM ledger_entries WHERE source_ref = 'txn_4b' AND status = 'reversed'`, 1)
	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM ledger_entries WHERE source_type = 'reversal'`, 1)
	testutil.AssertCount(t, gdb,
		`SELECT COUNT(*) FROM review_cases WHERE kind = 'chargeback_flag'`, 1)
}
