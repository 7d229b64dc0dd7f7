package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// CreditRequest describes a new earning to record.
type CreditRequest struct {
	CreatorID      snowflake.ID
	SubscriptionID *snowflake.ID
	SourceType     LedgerSourceType
	SourceRef      string
	GrossAmount    int64
	Currency       string
	OccurredAt     time.Time
}

// Service records earnings and drives entry status transitions. Methods that
// accept a tx participate in the caller's transaction so an event's record
// and its money effects commit atomically.
type Service interface {
	Credit(ctx context.Context, tx *gorm.DB, req CreditRequest) (*LedgerEntry, error)
	FindBySourceRef(ctx context.Context, tx *gorm.DB, sourceRef string) (*LedgerEntry, error)
	Reverse(ctx context.Context, tx *gorm.DB, entry *LedgerEntry, reversalRef string) (*LedgerEntry, error)
	MatureDueEntries(ctx context.Context, now time.Time) (int64, error)
	Balance(ctx context.Context, creatorID snowflake.ID) (Balance, error)
}

var (
	ErrInvalidCreator     = errors.New("invalid_creator")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrInvalidCurrency    = errors.New("invalid_currency")
	ErrInvalidSourceRef   = errors.New("invalid_source_ref")
	ErrInvalidSourceType  = errors.New("invalid_source_type")
	ErrDuplicateSource    = errors.New("duplicate_source")
	ErrEntryNotFound      = errors.New("ledger_entry_not_found")
	ErrEntryNotReversible = errors.New("ledger_entry_not_reversible")
)
