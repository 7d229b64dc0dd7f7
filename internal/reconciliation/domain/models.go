// Package domain contains review case models for events that cannot be
// applied cleanly and need a human decision.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ReviewCaseKind string

const (
	// KindOrphanedRenewal: renewal for a subscription that is not active.
	KindOrphanedRenewal ReviewCaseKind = "orphaned_renewal"
	// KindOrphanedReference: event names a subscription or entry we never saw.
	KindOrphanedReference ReviewCaseKind = "orphaned_reference"
	// KindIrrecoverableLoss: refund landed after the money left the platform.
	KindIrrecoverableLoss ReviewCaseKind = "irrecoverable_loss"
	// KindChargebackFlag: fan disputed a charge, account needs a look.
	KindChargebackFlag ReviewCaseKind = "chargeback_flag"
)

type ReviewCaseStatus string

const (
	CaseStatusOpen     ReviewCaseStatus = "open"
	CaseStatusResolved ReviewCaseStatus = "resolved"
)

type ReviewCase struct {
	ID             snowflake.ID     `gorm:"primaryKey" json:"id"`
	Kind           ReviewCaseKind   `gorm:"type:text;not null" json:"kind"`
	SubscriptionID *snowflake.ID    `json:"subscription_id,omitempty"`
	LedgerEntryID  *snowflake.ID    `json:"ledger_entry_id,omitempty"`
	PayoutID       *snowflake.ID    `json:"payout_id,omitempty"`
	ExternalRef    string           `gorm:"type:text" json:"external_ref,omitempty"`
	Detail         datatypes.JSON   `json:"detail,omitempty"`
	Status         ReviewCaseStatus `gorm:"type:text;not null;default:'open';index" json:"status"`
	CreatedAt      time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	ResolvedAt     *time.Time       `json:"resolved_at,omitempty"`
}

// TableName sets the database table name.
func (ReviewCase) TableName() string { return "review_cases" }
