// Package domain contains payout models and the reservation engine surface.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusCompleted  PayoutStatus = "completed"
	PayoutStatusFailed     PayoutStatus = "failed"
)

// Payout is a withdrawal of a creator's available balance. Its amount is
// exactly the sum of the ledger entries reserved against it, fixed at
// request time.
type Payout struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	CreatorID     snowflake.ID `gorm:"not null;index" json:"creator_id"`
	Amount        int64        `gorm:"not null" json:"amount"`
	EntryCount    int          `gorm:"not null" json:"entry_count"`
	Currency      string       `gorm:"type:text;not null" json:"currency"`
	Status        PayoutStatus `gorm:"type:text;not null" json:"status"`
	ProviderRef   string       `gorm:"type:text" json:"provider_ref,omitempty"`
	FailureReason string       `gorm:"type:text" json:"failure_reason,omitempty"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Payout) TableName() string { return "payouts" }

// Service runs the payout lifecycle. RequestPayout reserves atomically;
// Confirm and Fail settle the reservation either way.
type Service interface {
	RequestPayout(ctx context.Context, creatorID snowflake.ID) (*Payout, error)
	MarkProcessing(ctx context.Context, payoutID snowflake.ID, providerRef string) error
	ConfirmPayout(ctx context.Context, payoutID snowflake.ID, providerRef string) error
	FailPayout(ctx context.Context, payoutID snowflake.ID, reason string) error
	Find(ctx context.Context, payoutID snowflake.ID) (*Payout, error)
}

var (
	ErrPayoutsDisabled      = errors.New("payouts_disabled")
	ErrBelowMinimum         = errors.New("below_minimum")
	ErrPayoutNotFound       = errors.New("payout_not_found")
	ErrPayoutNotTransitable = errors.New("payout_not_transitable")
)
