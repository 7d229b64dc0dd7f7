// Package domain contains subscription models and the state machine surface.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// SubscriptionStatus is the fan-creator relationship lifecycle. Revoked is
// terminal; no event moves a subscription out of it.
type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "active"
	StatusCancelled SubscriptionStatus = "cancelled"
	StatusExpired   SubscriptionStatus = "expired"
	StatusRevoked   SubscriptionStatus = "revoked"
)

// Subscription links a fan to a creator tier. external_ref is the payment
// processor's subscription identifier and is the key all webhook events use.
type Subscription struct {
	ID          snowflake.ID       `gorm:"primaryKey" json:"id"`
	FanID       snowflake.ID       `gorm:"not null;index:ix_subscriptions_fan_creator,priority:1" json:"fan_id"`
	CreatorID   snowflake.ID       `gorm:"not null;index:ix_subscriptions_fan_creator,priority:2" json:"creator_id"`
	TierID      *snowflake.ID      `json:"tier_id,omitempty"`
	Status      SubscriptionStatus `gorm:"type:text;not null;index:ix_subscriptions_status_expiry,priority:1" json:"status"`
	AutoRenew   bool               `gorm:"not null;default:true" json:"auto_renew"`
	ExpiresAt   time.Time          `gorm:"not null;index:ix_subscriptions_status_expiry,priority:2" json:"expires_at"`
	ExternalRef string             `gorm:"type:text;not null;uniqueIndex:ux_subscriptions_external_ref" json:"external_ref"`
	CreatedAt   time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }
