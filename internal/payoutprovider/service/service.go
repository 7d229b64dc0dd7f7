package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	payoutproviderdomain "github.com/Arnzyy/AIFANS-sub001/internal/payoutprovider/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// cacheTTL bounds how stale a cached enablement answer may be. A creator
// whose account was just disabled can still pass the gate for this long.
const cacheTTL = 30 * time.Second

type Service interface {
	PayoutsEnabled(ctx context.Context, creatorID snowflake.ID) (bool, error)
	Account(ctx context.Context, creatorID snowflake.ID) (*payoutproviderdomain.PayoutAccount, error)
}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Redis *redis.Client `optional:"true"`
}

type service struct {
	db    *gorm.DB
	log   *zap.Logger
	redis *redis.Client
}

func New(p Params) Service {
	return &service{
		db:    p.DB,
		log:   p.Log.Named("payoutprovider.service"),
		redis: p.Redis,
	}
}

func (s *service) PayoutsEnabled(ctx context.Context, creatorID snowflake.ID) (bool, error) {
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, cacheKey(creatorID)).Result()
		if err == nil {
			return cached == "1", nil
		}
		if !errors.Is(err, redis.Nil) {
			s.log.Warn("payout account cache read failed", zap.Error(err))
		}
	}

	account, err := s.Account(ctx, creatorID)
	if err != nil {
		return false, err
	}
	enabled := account != nil && account.PayoutsEnabled

	if s.redis != nil {
		value := "0"
		if enabled {
			value = "1"
		}
		if err := s.redis.Set(ctx, cacheKey(creatorID), value, cacheTTL).Err(); err != nil {
			s.log.Warn("payout account cache write failed", zap.Error(err))
		}
	}
	return enabled, nil
}

func (s *service) Account(ctx context.Context, creatorID snowflake.ID) (*payoutproviderdomain.PayoutAccount, error) {
	var account payoutproviderdomain.PayoutAccount
	err := s.db.WithContext(ctx).
		Where("creator_id = ?", creatorID).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func cacheKey(creatorID snowflake.ID) string {
	return fmt.Sprintf("payout_account:%d", creatorID)
}
