package repository

import (
	"context"
	"errors"
	"time"

	creatordomain "github.com/Arnzyy/AIFANS-sub001/internal/creator/domain"
	"github.com/Arnzyy/AIFANS-sub001/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrCreatorNotFound = errors.New("creator_not_found")

type Repository interface {
	Find(ctx context.Context, id snowflake.ID) (*creatordomain.Creator, error)
	EnsureCreator(ctx context.Context, tx *gorm.DB, id snowflake.ID) error
	AdjustSubscriberCount(ctx context.Context, tx *gorm.DB, id snowflake.ID, delta int64) error
	FlagForReview(ctx context.Context, tx *gorm.DB, id snowflake.ID) error
	FindTier(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*creatordomain.Tier, error)
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
		log: p.Log.Named("creator.repository"),
	}
}

func (r *repository) Find(ctx context.Context, id snowflake.ID) (*creatordomain.Creator, error) {
	var creator creatordomain.Creator
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&creator).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCreatorNotFound
	}
	if err != nil {
		return nil, err
	}
	return &creator, nil
}

// EnsureCreator inserts a stub projection row so foreign keys from billing
// rows always resolve, even when the event for a creator arrives before the
// profile sync does.
func (r *repository) EnsureCreator(ctx context.Context, tx *gorm.DB, id snowflake.ID) error {
	if tx == nil {
		tx = r.db
	}
	now := time.Now().UTC()
	err := tx.WithContext(ctx).Exec(
		`INSERT INTO creators (id, display_name, subscriber_count, flagged_for_review, created_at, updated_at)
		 VALUES (?, '', 0, FALSE, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		id, now, now,
	).Error
	if err != nil && db.IsDuplicateKeyErr(err) {
		return nil
	}
	return err
}

// AdjustSubscriberCount applies delta with a floor at zero. The CASE guard
// keeps a double-applied decrement from driving the counter negative.
func (r *repository) AdjustSubscriberCount(ctx context.Context, tx *gorm.DB, id snowflake.ID, delta int64) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Exec(
		`UPDATE creators
		 SET subscriber_count = CASE
		         WHEN subscriber_count + ? < 0 THEN 0
		         ELSE subscriber_count + ?
		     END,
		     updated_at = ?
		 WHERE id = ?`,
		delta, delta, time.Now().UTC(), id,
	).Error
}

func (r *repository) FlagForReview(ctx context.Context, tx *gorm.DB, id snowflake.ID) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Exec(
		`UPDATE creators SET flagged_for_review = TRUE, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	).Error
}

func (r *repository) FindTier(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*creatordomain.Tier, error) {
	if tx == nil {
		tx = r.db
	}
	var tier creatordomain.Tier
	err := tx.WithContext(ctx).
		Where("id = ?", id).
		First(&tier).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tier, nil
}
