package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// SaleEvent carries the fields shared by new_sale and renewal notifications.
// EventRef is the processor's event id, used as the reversal reference when
// the money later has to be offset.
type SaleEvent struct {
	SubscriptionRef string
	TransactionRef  string
	FanID           snowflake.ID
	CreatorID       snowflake.ID
	TierID          *snowflake.ID
	Amount          int64
	Currency        string
	OccurredAt      time.Time
}

// DisputeEvent covers chargeback and refund notifications, which reference
// an earlier transaction rather than introducing a new one.
type DisputeEvent struct {
	EventRef        string
	SubscriptionRef string
	TransactionRef  string
	FanID           snowflake.ID
	OccurredAt      time.Time
}

// Service applies processor events to the subscription rows and their money
// effects. Every Apply method participates in the caller's transaction, so a
// webhook event either lands completely or not at all. Events that cannot be
// applied cleanly open a review case and return nil; only infrastructure
// failures are errors.
type Service interface {
	ApplyNewSale(ctx context.Context, tx *gorm.DB, ev SaleEvent) (*Subscription, error)
	ApplyRenewal(ctx context.Context, tx *gorm.DB, ev SaleEvent) (*Subscription, error)
	ApplyCancellation(ctx context.Context, tx *gorm.DB, externalRef string) error
	ApplyChargeback(ctx context.Context, tx *gorm.DB, ev DisputeEvent) error
	ApplyRefund(ctx context.Context, tx *gorm.DB, ev DisputeEvent) error
	FindByFanCreator(ctx context.Context, fanID, creatorID snowflake.ID) (*Subscription, error)
	ExpireDue(ctx context.Context, now time.Time, batchSize int) (int64, error)
}

var (
	ErrInvalidEvent         = errors.New("invalid_event")
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
	ErrSubscriptionConflict = errors.New("subscription_conflict")
)
