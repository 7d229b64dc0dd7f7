package service

import (
	"context"
	"errors"
	"time"

	"github.com/Arnzyy/AIFANS-sub001/internal/config"
	ledgerdomain "github.com/Arnzyy/AIFANS-sub001/internal/ledger/domain"
	obsmetrics "github.com/Arnzyy/AIFANS-sub001/internal/observability/metrics"
	payoutdomain "github.com/Arnzyy/AIFANS-sub001/internal/payout/domain"
	payoutproviderservice "github.com/Arnzyy/AIFANS-sub001/internal/payoutprovider/service"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Policy     *config.BillingPolicyHolder
	Provider   payoutproviderservice.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	policy     *config.BillingPolicyHolder
	provider   payoutproviderservice.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) payoutdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payout.service"),
		genID:      p.GenID,
		policy:     p.Policy,
		provider:   p.Provider,
		obsMetrics: p.ObsMetrics,
	}
}

// RequestPayout reserves everything currently available for the creator.
// The reservation UPDATE is the race arbiter: two concurrent requests both
// reach it, but each available entry flips to reserved exactly once, so the
// loser sums to less than the minimum and rolls back whole.
func (s *Service) RequestPayout(ctx context.Context, creatorID snowflake.ID) (*payoutdomain.Payout, error) {
	enabled, err := s.provider.PayoutsEnabled(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if !enabled {
		s.recordResult("disabled")
		return nil, payoutdomain.ErrPayoutsDisabled
	}

	minimum := s.policy.Current().PayoutMinimum
	now := time.Now().UTC()
	payout := &payoutdomain.Payout{
		ID:        s.genID.Generate(),
		CreatorID: creatorID,
		Status:    payoutdomain.PayoutStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Create(payout).Error; err != nil {
			return err
		}

		reserved := tx.WithContext(ctx).Exec(
			`UPDATE ledger_entries
			 SET status = ?, payout_id = ?, updated_at = ?
			 WHERE creator_id = ? AND status = ?`,
			ledgerdomain.EntryStatusReserved,
			payout.ID,
			now,
			creatorID,
			ledgerdomain.EntryStatusAvailable,
		)
		if reserved.Error != nil {
			return reserved.Error
		}
		if reserved.RowsAffected == 0 {
			return payoutdomain.ErrBelowMinimum
		}

		var total struct {
			Amount   int64
			Count    int
			Currency string
		}
		err := tx.WithContext(ctx).Raw(
			`SELECT COALESCE(SUM(net_amount), 0) AS amount,
			        COUNT(*) AS count,
			        MAX(currency) AS currency
			 FROM ledger_entries
			 WHERE payout_id = ? AND status = ?`,
			payout.ID,
			ledgerdomain.EntryStatusReserved,
		).Scan(&total).Error
		if err != nil {
			return err
		}
		if total.Amount < minimum {
			return payoutdomain.ErrBelowMinimum
		}

		payout.Amount = total.Amount
		payout.EntryCount = total.Count
		payout.Currency = total.Currency
		return tx.WithContext(ctx).Exec(
			`UPDATE payouts
			 SET amount = ?, entry_count = ?, currency = ?, updated_at = ?
			 WHERE id = ?`,
			payout.Amount, payout.EntryCount, payout.Currency, now, payout.ID,
		).Error
	})
	if err != nil {
		if errors.Is(err, payoutdomain.ErrBelowMinimum) {
			s.recordResult("below_minimum")
		} else {
			s.recordResult("error")
		}
		return nil, err
	}

	s.recordResult("accepted")
	s.log.Info("payout requested",
		zap.Int64("creator_id", int64(creatorID)),
		zap.Int64("amount", payout.Amount),
		zap.Int("entries", payout.EntryCount),
	)
	return payout, nil
}

// MarkProcessing records the handoff before the provider is called, so a
// crash mid-call leaves a row that operators can see and reconcile.
func (s *Service) MarkProcessing(ctx context.Context, payoutID snowflake.ID, providerRef string) error {
	result := s.db.WithContext(ctx).Exec(
		`UPDATE payouts
		 SET status = ?, provider_ref = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		payoutdomain.PayoutStatusProcessing,
		providerRef,
		time.Now().UTC(),
		payoutID,
		payoutdomain.PayoutStatusPending,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return s.transitionMiss(ctx, payoutID, payoutdomain.PayoutStatusProcessing)
	}
	return nil
}

func (s *Service) ConfirmPayout(ctx context.Context, payoutID snowflake.ID, providerRef string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		result := tx.WithContext(ctx).Exec(
			`UPDATE payouts
			 SET status = ?, provider_ref = ?, updated_at = ?
			 WHERE id = ? AND status IN (?, ?)`,
			payoutdomain.PayoutStatusCompleted,
			providerRef,
			now,
			payoutID,
			payoutdomain.PayoutStatusPending,
			payoutdomain.PayoutStatusProcessing,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return s.transitionMiss(ctx, payoutID, payoutdomain.PayoutStatusCompleted)
		}

		return tx.WithContext(ctx).Exec(
			`UPDATE ledger_entries
			 SET status = ?, updated_at = ?
			 WHERE payout_id = ? AND status = ?`,
			ledgerdomain.EntryStatusPaid,
			now,
			payoutID,
			ledgerdomain.EntryStatusReserved,
		).Error
	})
}

// FailPayout releases the reservation. Entries go back to available with no
// payout attached, so the next request can pick them up again.
func (s *Service) FailPayout(ctx context.Context, payoutID snowflake.ID, reason string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		result := tx.WithContext(ctx).Exec(
			`UPDATE payouts
			 SET status = ?, failure_reason = ?, updated_at = ?
			 WHERE id = ? AND status IN (?, ?)`,
			payoutdomain.PayoutStatusFailed,
			reason,
			now,
			payoutID,
			payoutdomain.PayoutStatusPending,
			payoutdomain.PayoutStatusProcessing,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return s.transitionMiss(ctx, payoutID, payoutdomain.PayoutStatusFailed)
		}

		return tx.WithContext(ctx).Exec(
			`UPDATE ledger_entries
			 SET status = ?, payout_id = NULL, updated_at = ?
			 WHERE payout_id = ? AND status = ?`,
			ledgerdomain.EntryStatusAvailable,
			now,
			payoutID,
			ledgerdomain.EntryStatusReserved,
		).Error
	})
}

func (s *Service) Find(ctx context.Context, payoutID snowflake.ID) (*payoutdomain.Payout, error) {
	var payout payoutdomain.Payout
	err := s.db.WithContext(ctx).
		Where("id = ?", payoutID).
		First(&payout).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, payoutdomain.ErrPayoutNotFound
	}
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

// transitionMiss disambiguates a zero-row conditional update: the provider
// retries callbacks, so a payout already in the target state is a no-op, not
// an error.
func (s *Service) transitionMiss(ctx context.Context, payoutID snowflake.ID, target payoutdomain.PayoutStatus) error {
	payout, err := s.Find(ctx, payoutID)
	if err != nil {
		return err
	}
	if payout.Status == target {
		return nil
	}
	return payoutdomain.ErrPayoutNotTransitable
}

func (s *Service) recordResult(result string) {
	if s.obsMetrics != nil {
		s.obsMetrics.RecordPayout(result)
	}
}
