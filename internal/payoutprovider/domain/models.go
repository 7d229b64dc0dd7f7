// Package domain mirrors the payout onboarding state owned by the provider.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// PayoutAccount is written by the onboarding flow and only read here. The
// billing core never decides whether payouts are enabled; it consumes the
// provider's answer.
type PayoutAccount struct {
	CreatorID      snowflake.ID   `gorm:"primaryKey" json:"creator_id"`
	PayoutsEnabled bool           `gorm:"not null;default:false" json:"payouts_enabled"`
	Requirements   datatypes.JSON `json:"requirements,omitempty"`
	UpdatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (PayoutAccount) TableName() string { return "payout_accounts" }
