// Package domain contains the creator projection models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Creator is a projection over billing events, not a source of truth for
// profile data. subscriber_count is maintained inside the transactions that
// change it so it never disagrees with the subscription rows.
type Creator struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	DisplayName      string       `gorm:"type:text;not null" json:"display_name"`
	SubscriberCount  int64        `gorm:"not null;default:0" json:"subscriber_count"`
	FlaggedForReview bool         `gorm:"not null;default:false" json:"flagged_for_review"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Creator) TableName() string { return "creators" }

// Tier is a priced subscription offer with a billing period in days.
type Tier struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	CreatorID    snowflake.ID `gorm:"not null;index" json:"creator_id"`
	Name         string       `gorm:"type:text;not null" json:"name"`
	DurationDays int          `gorm:"not null" json:"duration_days"`
	Price        int64        `gorm:"not null" json:"price"`
	Currency     string       `gorm:"type:text;not null;default:'USD'" json:"currency"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Tier) TableName() string { return "tiers" }
