// Package testutil provides the shared test harness: an in-memory sqlite
// database with the production schema, plus deterministic collaborators.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/Arnzyy/AIFANS-sub001/internal/config"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// schema mirrors the postgres migrations with sqlite-compatible types.
const schema = `
CREATE TABLE creators (
    id INTEGER PRIMARY KEY,
    display_name TEXT NOT NULL,
    subscriber_count INTEGER NOT NULL DEFAULT 0,
    flagged_for_review BOOLEAN NOT NULL DEFAULT FALSE,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE tiers (
    id INTEGER PRIMARY KEY,
    creator_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    duration_days INTEGER NOT NULL,
    price INTEGER NOT NULL,
    currency TEXT NOT NULL DEFAULT 'USD',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE webhook_events (
    id INTEGER PRIMARY KEY,
    external_id TEXT NOT NULL,
    event_type TEXT NOT NULL,
    payload_digest TEXT NOT NULL,
    processed_at DATETIME NOT NULL
);
CREATE UNIQUE INDEX ux_webhook_events_external_id ON webhook_events (external_id);

CREATE TABLE subscriptions (
    id INTEGER PRIMARY KEY,
    fan_id INTEGER NOT NULL,
    creator_id INTEGER NOT NULL,
    tier_id INTEGER,
    status TEXT NOT NULL,
    auto_renew BOOLEAN NOT NULL DEFAULT TRUE,
    expires_at DATETIME NOT NULL,
    external_ref TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE UNIQUE INDEX ux_subscriptions_external_ref ON subscriptions (external_ref);

CREATE TABLE payouts (
    id INTEGER PRIMARY KEY,
    creator_id INTEGER NOT NULL,
    amount INTEGER NOT NULL DEFAULT 0,
    entry_count INTEGER NOT NULL DEFAULT 0,
    currency TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    provider_ref TEXT,
    failure_reason TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE ledger_entries (
    id INTEGER PRIMARY KEY,
    creator_id INTEGER NOT NULL,
    subscription_id INTEGER,
    source_type TEXT NOT NULL,
    source_ref TEXT NOT NULL,
    gross_amount INTEGER NOT NULL,
    fee_amount INTEGER NOT NULL,
    net_amount INTEGER NOT NULL,
    currency TEXT NOT NULL,
    status TEXT NOT NULL,
    payout_id INTEGER,
    hold_release_at DATETIME NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE UNIQUE INDEX ux_ledger_entries_source ON ledger_entries (source_type, source_ref);

CREATE TABLE payout_accounts (
    creator_id INTEGER PRIMARY KEY,
    payouts_enabled BOOLEAN NOT NULL DEFAULT FALSE,
    requirements TEXT,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE review_cases (
    id INTEGER PRIMARY KEY,
    kind TEXT NOT NULL,
    subscription_id INTEGER,
    ledger_entry_id INTEGER,
    payout_id INTEGER,
    external_ref TEXT,
    detail TEXT,
    status TEXT NOT NULL DEFAULT 'open',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    resolved_at DATETIME
);
`

// OpenDB returns a fresh in-memory database with the full schema applied.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", dbSeq.Add(1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if err := gdb.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return gdb
}

// NewNode returns a snowflake generator for tests.
func NewNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

// Policy returns a holder pinned to the default billing constants.
func Policy() *config.BillingPolicyHolder {
	return config.NewStaticBillingPolicyHolder(config.DefaultBillingPolicy())
}

// AssertCount fails the test unless the query counts exactly want rows.
func AssertCount(t *testing.T, gdb *gorm.DB, query string, want int64, args ...any) {
	t.Helper()
	var got int64
	if err := gdb.Raw(query, args...).Scan(&got).Error; err != nil {
		t.Fatalf("count query: %v", err)
	}
	if got != want {
		t.Fatalf("count mismatch for %q: got %d, want %d", query, got, want)
	}
}
