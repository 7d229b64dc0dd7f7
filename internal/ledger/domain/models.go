// Package domain contains persistence models for creator earnings.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// LedgerEntryStatus is the lifecycle of an earning from sale to payout.
type LedgerEntryStatus string

const (
	// EntryStatusPending: inside the hold window, not yet withdrawable.
	EntryStatusPending LedgerEntryStatus = "pending"
	// EntryStatusAvailable: hold elapsed, counts toward withdrawable balance.
	EntryStatusAvailable LedgerEntryStatus = "available"
	// EntryStatusReserved: locked against a specific payout request.
	EntryStatusReserved LedgerEntryStatus = "reserved"
	// EntryStatusPaid: settled through a completed payout.
	EntryStatusPaid LedgerEntryStatus = "paid"
	// EntryStatusReversed: offset by a refund or chargeback.
	EntryStatusReversed LedgerEntryStatus = "reversed"
)

type LedgerSourceType string

const (
	SourceTypeSale     LedgerSourceType = "sale"
	SourceTypeRenewal  LedgerSourceType = "renewal"
	SourceTypeReversal LedgerSourceType = "reversal"
)

// LedgerEntry records a single money movement owed to a creator. Amounts are
// integer minor currency units; gross is always fee + net exactly. Rows are
// immutable except for status transitions.
type LedgerEntry struct {
	ID             snowflake.ID      `gorm:"primaryKey"`
	CreatorID      snowflake.ID      `gorm:"not null;index:ix_ledger_entries_creator_status,priority:1"`
	SubscriptionID *snowflake.ID     `gorm:"index"`
	SourceType     LedgerSourceType  `gorm:"type:text;not null;uniqueIndex:ux_ledger_entries_source,priority:1"`
	SourceRef      string            `gorm:"type:text;not null;uniqueIndex:ux_ledger_entries_source,priority:2"`
	GrossAmount    int64             `gorm:"not null"`
	FeeAmount      int64             `gorm:"not null"`
	NetAmount      int64             `gorm:"not null"`
	Currency       string            `gorm:"type:text;not null"`
	Status         LedgerEntryStatus `gorm:"type:text;not null;index:ix_ledger_entries_creator_status,priority:2"`
	PayoutID       *snowflake.ID     `gorm:"index"`
	HoldReleaseAt  time.Time         `gorm:"not null"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (LedgerEntry) TableName() string { return "ledger_entries" }

// Balance is a creator's position derived from entry rows, never stored.
type Balance struct {
	Pending   int64 `json:"pending"`
	Available int64 `json:"available"`
	Reserved  int64 `json:"reserved"`
}

// SplitFee computes the platform cut with a single half-up rounding applied
// once, so fee + net always reconstructs gross exactly.
func SplitFee(gross, feeRateBps int64) (fee, net int64) {
	fee = (gross*feeRateBps + 5_000) / 10_000
	net = gross - fee
	return fee, net
}
