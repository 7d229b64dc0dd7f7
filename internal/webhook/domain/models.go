// Package domain contains the payment processor event contract.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Event types the processor sends. Anything outside this set is recorded
// and acknowledged but has no effect.
const (
	EventNewSale      = "new_sale"
	EventRenewal      = "renewal"
	EventCancellation = "cancellation"
	EventChargeback   = "chargeback"
	EventRefund       = "refund"
)

// WebhookEvent is the processed-event record. The unique external_id is the
// idempotency boundary: an event lands in this table exactly once, in the
// same transaction as all of its effects.
type WebhookEvent struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	ExternalID    string       `gorm:"type:text;not null;uniqueIndex:ux_webhook_events_external_id"`
	EventType     string       `gorm:"type:text;not null"`
	PayloadDigest string       `gorm:"type:text;not null"`
	ProcessedAt   time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (WebhookEvent) TableName() string { return "webhook_events" }

// Notification is the processor's wire payload. Identifiers are the
// processor's 64-bit ids and amounts are integer minor currency units.
type Notification struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	SubscriptionRef string    `json:"subscription_ref"`
	TransactionRef  string    `json:"transaction_ref"`
	FanID           int64     `json:"fan_id"`
	CreatorID       int64     `json:"creator_id"`
	TierID          *int64    `json:"tier_id,omitempty"`
	Amount          int64     `json:"amount"`
	Currency        string    `json:"currency"`
	OccurredAt      time.Time `json:"occurred_at"`
}

var (
	ErrInvalidSignature      = errors.New("invalid_signature")
	ErrInvalidPayload        = errors.New("invalid_payload")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
)
