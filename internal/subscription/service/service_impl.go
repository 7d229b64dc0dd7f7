package service

import (
	"context"
	"strings"
	"time"

	"github.com/Arnzyy/AIFANS-sub001/internal/config"
	creatorrepository "github.com/Arnzyy/AIFANS-sub001/internal/creator/repository"
	ledgerdomain "github.com/Arnzyy/AIFANS-sub001/internal/ledger/domain"
	reconciliationdomain "github.com/Arnzyy/AIFANS-sub001/internal/reconciliation/domain"
	reconciliationservice "github.com/Arnzyy/AIFANS-sub001/internal/reconciliation/service"
	subscriptiondomain "github.com/Arnzyy/AIFANS-sub001/internal/subscription/domain"
	"github.com/Arnzyy/AIFANS-sub001/internal/subscription/repository"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Policy         *config.BillingPolicyHolder
	Repo           repository.Repository
	CreatorRepo    creatorrepository.Repository
	Ledger         ledgerdomain.Service
	Reconciliation reconciliationservice.Service
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	policy         *config.BillingPolicyHolder
	repo           repository.Repository
	creatorRepo    creatorrepository.Repository
	ledger         ledgerdomain.Service
	reconciliation reconciliationservice.Service
}

func NewService(p Params) subscriptiondomain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("subscription.service"),
		genID:          p.GenID,
		policy:         p.Policy,
		repo:           p.Repo,
		creatorRepo:    p.CreatorRepo,
		ledger:         p.Ledger,
		reconciliation: p.Reconciliation,
	}
}

func (s *Service) ApplyNewSale(ctx context.Context, tx *gorm.DB, ev subscriptiondomain.SaleEvent) (*subscriptiondomain.Subscription, error) {
	if err := validateSale(ev); err != nil {
		return nil, err
	}
	if err := s.creatorRepo.EnsureCreator(ctx, tx, ev.CreatorID); err != nil {
		return nil, err
	}

	duration, err := s.tierDuration(ctx, tx, ev.TierID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	startedAt := ev.OccurredAt.UTC()
	if startedAt.IsZero() {
		startedAt = now
	}

	sub := &subscriptiondomain.Subscription{
		ID:          s.genID.Generate(),
		FanID:       ev.FanID,
		CreatorID:   ev.CreatorID,
		TierID:      ev.TierID,
		Status:      subscriptiondomain.StatusActive,
		AutoRenew:   true,
		ExpiresAt:   startedAt.Add(duration),
		ExternalRef: ev.SubscriptionRef,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	inserted, err := s.repo.Insert(ctx, tx, sub)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// The processor re-announced a subscription we already track. The
		// ledger's source uniqueness decides whether the money is new.
		existing, err := s.repo.FindByExternalRef(ctx, tx, ev.SubscriptionRef)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, subscriptiondomain.ErrSubscriptionConflict
		}
		sub = existing
	} else {
		if err := s.creatorRepo.AdjustSubscriberCount(ctx, tx, ev.CreatorID, 1); err != nil {
			return nil, err
		}
	}

	if err := s.credit(ctx, tx, sub, ev, ledgerdomain.SourceTypeSale); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) ApplyRenewal(ctx context.Context, tx *gorm.DB, ev subscriptiondomain.SaleEvent) (*subscriptiondomain.Subscription, error) {
	if err := validateSale(ev); err != nil {
		return nil, err
	}

	sub, err := s.repo.FindByExternalRef(ctx, tx, ev.SubscriptionRef)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		_, err := s.reconciliation.Open(ctx, tx, reconciliationservice.OpenRequest{
			Kind:        reconciliationdomain.KindOrphanedReference,
			ExternalRef: ev.SubscriptionRef,
			Detail:      map[string]any{"event": "renewal", "transaction_ref": ev.TransactionRef},
		})
		return nil, err
	}
	if sub.Status != subscriptiondomain.StatusActive {
		// Money arrived for a subscription that is not running. Do not touch
		// any state; a human decides whether to refund or reinstate.
		_, err := s.reconciliation.Open(ctx, tx, reconciliationservice.OpenRequest{
			Kind:           reconciliationdomain.KindOrphanedRenewal,
			SubscriptionID: &sub.ID,
			ExternalRef:    ev.SubscriptionRef,
			Detail: map[string]any{
				"status":          string(sub.Status),
				"transaction_ref": ev.TransactionRef,
			},
		})
		return nil, err
	}

	duration, err := s.tierDuration(ctx, tx, sub.TierID)
	if err != nil {
		return nil, err
	}

	extended, err := s.repo.ExtendExpiry(ctx, tx, sub.ID, sub.ExpiresAt, sub.ExpiresAt.Add(duration))
	if err != nil {
		return nil, err
	}
	if !extended {
		return nil, subscriptiondomain.ErrSubscriptionConflict
	}
	sub.ExpiresAt = sub.ExpiresAt.Add(duration)

	if err := s.credit(ctx, tx, sub, ev, ledgerdomain.SourceTypeRenewal); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) ApplyCancellation(ctx context.Context, tx *gorm.DB, externalRef string) error {
	externalRef = strings.TrimSpace(externalRef)
	if externalRef == "" {
		return subscriptiondomain.ErrInvalidEvent
	}

	sub, err := s.repo.FindByExternalRef(ctx, tx, externalRef)
	if err != nil {
		return err
	}
	if sub == nil {
		_, err := s.reconciliation.Open(ctx, tx, reconciliationservice.OpenRequest{
			Kind:        reconciliationdomain.KindOrphanedReference,
			ExternalRef: externalRef,
			Detail:      map[string]any{"event": "cancellation"},
		})
		return err
	}

	// Cancellation stops future renewals only. The fan keeps access until
	// the paid-through date, so status and expires_at stay as they are.
	if _, err := s.repo.DisableAutoRenew(ctx, tx, sub.ID); err != nil {
		return err
	}
	return nil
}

func (s *Service) ApplyChargeback(ctx context.Context, tx *gorm.DB, ev subscriptiondomain.DisputeEvent) error {
	if strings.TrimSpace(ev.SubscriptionRef) == "" {
		return subscriptiondomain.ErrInvalidEvent
	}

	sub, err := s.repo.FindByExternalRef(ctx, tx, ev.SubscriptionRef)
	if err != nil {
		return err
	}
	if sub == nil {
		_, err := s.reconciliation.Open(ctx, tx, reconciliationservice.OpenRequest{
			Kind:        reconciliationdomain.KindOrphanedReference,
			ExternalRef: ev.SubscriptionRef,
			Detail:      map[string]any{"event": "chargeback", "transaction_ref": ev.TransactionRef},
		})
		return err
	}

	revoked, err := s.repo.Revoke(ctx, tx, sub.ID)
	if err != nil {
		return err
	}
	if revoked {
		if err := s.creatorRepo.AdjustSubscriberCount(ctx, tx, sub.CreatorID, -1); err != nil {
			return err
		}
	}

	if err := s.reverseEntry(ctx, tx, sub, ev, "chargeback"); err != nil {
		return err
	}

	if err := s.creatorRepo.FlagForReview(ctx, tx, sub.CreatorID); err != nil {
		return err
	}
	_, err = s.reconciliation.Open(ctx, tx, reconciliationservice.OpenRequest{
		Kind:           reconciliationdomain.KindChargebackFlag,
		SubscriptionID: &sub.ID,
		ExternalRef:    ev.SubscriptionRef,
		Detail: map[string]any{
			"fan_id":          ev.FanID.String(),
			"transaction_ref": ev.TransactionRef,
		},
	})
	return err
}

func (s *Service) ApplyRefund(ctx context.Context, tx *gorm.DB, ev subscriptiondomain.DisputeEvent) error {
	if strings.TrimSpace(ev.TransactionRef) == "" {
		return subscriptiondomain.ErrInvalidEvent
	}

	sub, err := s.repo.FindByExternalRef(ctx, tx, ev.SubscriptionRef)
	if err != nil {
		return err
	}
	// A refund adjusts money only. The subscription, when we know it, is
	// kept as-is per the processor's contract.
	return s.reverseEntry(ctx, tx, sub, ev, "refund")
}

// reverseEntry offsets the earning behind a disputed transaction. Entries
// already promised to a payout cannot be clawed back from here; those become
// irrecoverable-loss cases instead.
func (s *Service) reverseEntry(ctx context.Context, tx *gorm.DB, sub *subscriptiondomain.Subscription, ev subscriptiondomain.DisputeEvent, cause string) error {
	entry, err := s.ledger.FindBySourceRef(ctx, tx, ev.TransactionRef)
	if err != nil {
		return err
	}
	if entry == nil {
		var subID *snowflake.ID
		if sub != nil {
			subID = &sub.ID
		}
		_, err := s.reconciliation.Open(ctx, tx, reconciliationservice.OpenRequest{
			Kind:           reconciliationdomain.KindOrphanedReference,
			SubscriptionID: subID,
			ExternalRef:    ev.TransactionRef,
			Detail:         map[string]any{"event": cause},
		})
		return err
	}

	_, err = s.ledger.Reverse(ctx, tx, entry, ev.EventRef)
	if err == nil {
		return nil
	}
	if err == ledgerdomain.ErrEntryNotReversible {
		_, err := s.reconciliation.Open(ctx, tx, reconciliationservice.OpenRequest{
			Kind:          reconciliationdomain.KindIrrecoverableLoss,
			LedgerEntryID: &entry.ID,
			PayoutID:      entry.PayoutID,
			ExternalRef:   ev.TransactionRef,
			Detail: map[string]any{
				"event":  cause,
				"status": string(entry.Status),
				"net":    entry.NetAmount,
			},
		})
		return err
	}
	return err
}

func (s *Service) FindByFanCreator(ctx context.Context, fanID, creatorID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	sub, err := s.repo.FindByFanCreator(ctx, fanID, creatorID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	return sub, nil
}

// ExpireDue walks active subscriptions past their paid-through date in
// batches. Each row transitions in its own transaction so the counter
// decrement rides on the same commit as the status flip, and a row another
// instance already expired simply does not match.
func (s *Service) ExpireDue(ctx context.Context, now time.Time, batchSize int) (int64, error) {
	var total int64
	for {
		due, err := s.repo.DueForExpiry(ctx, now, batchSize)
		if err != nil {
			return total, err
		}
		if len(due) == 0 {
			return total, nil
		}

		var processed int64
		for _, sub := range due {
			err := s.db.Transaction(func(tx *gorm.DB) error {
				expired, err := s.repo.Expire(ctx, tx, sub.ID)
				if err != nil {
					return err
				}
				if !expired {
					return nil
				}
				processed++
				return s.creatorRepo.AdjustSubscriberCount(ctx, tx, sub.CreatorID, -1)
			})
			if err != nil {
				return total, err
			}
		}
		total += processed
		if processed == 0 || len(due) < batchSize {
			return total, nil
		}
	}
}

func (s *Service) tierDuration(ctx context.Context, tx *gorm.DB, tierID *snowflake.ID) (time.Duration, error) {
	policy := s.policy.Current()
	days := policy.DefaultTierDays
	if tierID != nil {
		tier, err := s.creatorRepo.FindTier(ctx, tx, *tierID)
		if err != nil {
			return 0, err
		}
		if tier != nil && tier.DurationDays > 0 {
			days = tier.DurationDays
		}
	}
	return time.Duration(days) * 24 * time.Hour, nil
}

func (s *Service) credit(ctx context.Context, tx *gorm.DB, sub *subscriptiondomain.Subscription, ev subscriptiondomain.SaleEvent, sourceType ledgerdomain.LedgerSourceType) error {
	_, err := s.ledger.Credit(ctx, tx, ledgerdomain.CreditRequest{
		CreatorID:      sub.CreatorID,
		SubscriptionID: &sub.ID,
		SourceType:     sourceType,
		SourceRef:      ev.TransactionRef,
		GrossAmount:    ev.Amount,
		Currency:       ev.Currency,
		OccurredAt:     ev.OccurredAt,
	})
	if err == ledgerdomain.ErrDuplicateSource {
		// Same transaction ref seen twice under different event ids. Record
		// it; the first credit stands.
		s.log.Warn("duplicate transaction ref",
			zap.String("transaction_ref", ev.TransactionRef),
			zap.String("subscription_ref", ev.SubscriptionRef),
		)
		return nil
	}
	return err
}

func validateSale(ev subscriptiondomain.SaleEvent) error {
	if strings.TrimSpace(ev.SubscriptionRef) == "" ||
		strings.TrimSpace(ev.TransactionRef) == "" ||
		ev.FanID == 0 || ev.CreatorID == 0 || ev.Amount <= 0 {
		return subscriptiondomain.ErrInvalidEvent
	}
	return nil
}
