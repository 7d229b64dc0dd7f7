package repository

import (
	"context"
	"errors"
	"time"

	subscriptiondomain "github.com/Arnzyy/AIFANS-sub001/internal/subscription/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, tx *gorm.DB, sub *subscriptiondomain.Subscription) (bool, error)
	FindByExternalRef(ctx context.Context, tx *gorm.DB, externalRef string) (*subscriptiondomain.Subscription, error)
	FindByFanCreator(ctx context.Context, fanID, creatorID snowflake.ID) (*subscriptiondomain.Subscription, error)
	ExtendExpiry(ctx context.Context, tx *gorm.DB, id snowflake.ID, from, to time.Time) (bool, error)
	DisableAutoRenew(ctx context.Context, tx *gorm.DB, id snowflake.ID) (bool, error)
	Revoke(ctx context.Context, tx *gorm.DB, id snowflake.ID) (bool, error)
	DueForExpiry(ctx context.Context, now time.Time, limit int) ([]subscriptiondomain.Subscription, error)
	Expire(ctx context.Context, tx *gorm.DB, id snowflake.ID) (bool, error)
}

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type repository struct {
	db  *gorm.DB
	log *zap.Logger
}

func New(p Params) Repository {
	return &repository{
		db:  p.DB,
		log: p.Log.Named("subscription.repository"),
	}
}

// Insert creates the row unless its external_ref is already taken. Returns
// false when the processor sent us a subscription we already track.
func (r *repository) Insert(ctx context.Context, tx *gorm.DB, sub *subscriptiondomain.Subscription) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (
			id, fan_id, creator_id, tier_id, status, auto_renew,
			expires_at, external_ref, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (external_ref) DO NOTHING`,
		sub.ID,
		sub.FanID,
		sub.CreatorID,
		sub.TierID,
		sub.Status,
		sub.AutoRenew,
		sub.ExpiresAt,
		sub.ExternalRef,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) FindByExternalRef(ctx context.Context, tx *gorm.DB, externalRef string) (*subscriptiondomain.Subscription, error) {
	if tx == nil {
		tx = r.db
	}
	var sub subscriptiondomain.Subscription
	err := tx.WithContext(ctx).
		Where("external_ref = ?", externalRef).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) FindByFanCreator(ctx context.Context, fanID, creatorID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var sub subscriptiondomain.Subscription
	err := r.db.WithContext(ctx).
		Where("fan_id = ? AND creator_id = ?", fanID, creatorID).
		Order("created_at DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ExtendExpiry moves expires_at forward from a known value. The old value in
// the predicate makes concurrent renewals of the same row serialize: the
// loser matches nothing and retries against the fresh row.
func (r *repository) ExtendExpiry(ctx context.Context, tx *gorm.DB, id snowflake.ID, from, to time.Time) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET expires_at = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND expires_at = ?`,
		to,
		time.Now().UTC(),
		id,
		subscriptiondomain.StatusActive,
		from,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) DisableAutoRenew(ctx context.Context, tx *gorm.DB, id snowflake.ID) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET auto_renew = FALSE, updated_at = ?
		 WHERE id = ? AND status = ?`,
		time.Now().UTC(),
		id,
		subscriptiondomain.StatusActive,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Revoke is legal from active or cancelled. Expired and revoked rows are
// left untouched; revoked in particular is terminal.
func (r *repository) Revoke(ctx context.Context, tx *gorm.DB, id snowflake.ID) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET status = ?, auto_renew = FALSE, updated_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		subscriptiondomain.StatusRevoked,
		time.Now().UTC(),
		id,
		subscriptiondomain.StatusActive,
		subscriptiondomain.StatusCancelled,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) DueForExpiry(ctx context.Context, now time.Time, limit int) ([]subscriptiondomain.Subscription, error) {
	var subs []subscriptiondomain.Subscription
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", subscriptiondomain.StatusActive, now.UTC()).
		Order("expires_at ASC").
		Limit(limit).
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) Expire(ctx context.Context, tx *gorm.DB, id snowflake.ID) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		subscriptiondomain.StatusExpired,
		time.Now().UTC(),
		id,
		subscriptiondomain.StatusActive,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
