package service

import (
	"context"
	"strings"
	"time"

	"github.com/Arnzyy/AIFANS-sub001/internal/config"
	ledgerdomain "github.com/Arnzyy/AIFANS-sub001/internal/ledger/domain"
	obsmetrics "github.com/Arnzyy/AIFANS-sub001/internal/observability/metrics"
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
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	policy     *config.BillingPolicyHolder
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		policy:     p.Policy,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Credit(ctx context.Context, tx *gorm.DB, req ledgerdomain.CreditRequest) (*ledgerdomain.LedgerEntry, error) {
	if tx == nil {
		tx = s.db
	}
	if req.CreatorID == 0 {
		return nil, ledgerdomain.ErrInvalidCreator
	}
	if req.GrossAmount <= 0 {
		return nil, ledgerdomain.ErrInvalidAmount
	}
	req.SourceRef = strings.TrimSpace(req.SourceRef)
	if req.SourceRef == "" {
		return nil, ledgerdomain.ErrInvalidSourceRef
	}
	switch req.SourceType {
	case ledgerdomain.SourceTypeSale, ledgerdomain.SourceTypeRenewal:
	default:
		return nil, ledgerdomain.ErrInvalidSourceType
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		return nil, ledgerdomain.ErrInvalidCurrency
	}

	policy := s.policy.Current()
	fee, net := ledgerdomain.SplitFee(req.GrossAmount, policy.FeeRateBps)

	now := time.Now().UTC()
	occurredAt := req.OccurredAt.UTC()
	if occurredAt.IsZero() {
		occurredAt = now
	}

	entry := &ledgerdomain.LedgerEntry{
		ID:             s.genID.Generate(),
		CreatorID:      req.CreatorID,
		SubscriptionID: req.SubscriptionID,
		SourceType:     req.SourceType,
		SourceRef:      req.SourceRef,
		GrossAmount:    req.GrossAmount,
		FeeAmount:      fee,
		NetAmount:      net,
		Currency:       currency,
		Status:         ledgerdomain.EntryStatusPending,
		HoldReleaseAt:  occurredAt.Add(time.Duration(policy.HoldDays) * 24 * time.Hour),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	result := tx.WithContext(ctx).Exec(
		`INSERT INTO ledger_entries (
			id, creator_id, subscription_id, source_type, source_ref,
			gross_amount, fee_amount, net_amount, currency, status,
			payout_id, hold_release_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, ?)
		ON CONFLICT (source_type, source_ref) DO NOTHING`,
		entry.ID,
		entry.CreatorID,
		entry.SubscriptionID,
		entry.SourceType,
		entry.SourceRef,
		entry.GrossAmount,
		entry.FeeAmount,
		entry.NetAmount,
		entry.Currency,
		entry.Status,
		entry.HoldReleaseAt,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ledgerdomain.ErrDuplicateSource
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordLedgerEntry(string(entry.SourceType))
	}
	return entry, nil
}

func (s *Service) FindBySourceRef(ctx context.Context, tx *gorm.DB, sourceRef string) (*ledgerdomain.LedgerEntry, error) {
	if tx == nil {
		tx = s.db
	}
	sourceRef = strings.TrimSpace(sourceRef)
	if sourceRef == "" {
		return nil, ledgerdomain.ErrInvalidSourceRef
	}

	var entry ledgerdomain.LedgerEntry
	err := tx.WithContext(ctx).Raw(
		`SELECT id, creator_id, subscription_id, source_type, source_ref,
			gross_amount, fee_amount, net_amount, currency, status,
			payout_id, hold_release_at, created_at, updated_at
		 FROM ledger_entries
		 WHERE source_ref = ? AND source_type IN (?, ?)
		 LIMIT 1`,
		sourceRef,
		ledgerdomain.SourceTypeSale,
		ledgerdomain.SourceTypeRenewal,
	).Scan(&entry).Error
	if err != nil {
		return nil, err
	}
	if entry.ID == 0 {
		return nil, nil
	}
	return &entry, nil
}

// Reverse offsets an earning that has not yet been promised to a payout. The
// status check inside the UPDATE is the guard: an entry already reserved or
// paid is left untouched and the caller gets ErrEntryNotReversible.
func (s *Service) Reverse(ctx context.Context, tx *gorm.DB, entry *ledgerdomain.LedgerEntry, reversalRef string) (*ledgerdomain.LedgerEntry, error) {
	if tx == nil {
		tx = s.db
	}
	if entry == nil || entry.ID == 0 {
		return nil, ledgerdomain.ErrEntryNotFound
	}
	reversalRef = strings.TrimSpace(reversalRef)
	if reversalRef == "" {
		return nil, ledgerdomain.ErrInvalidSourceRef
	}

	now := time.Now().UTC()
	result := tx.WithContext(ctx).Exec(
		`UPDATE ledger_entries
		 SET status = ?, updated_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		ledgerdomain.EntryStatusReversed,
		now,
		entry.ID,
		ledgerdomain.EntryStatusPending,
		ledgerdomain.EntryStatusAvailable,
	)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ledgerdomain.ErrEntryNotReversible
	}

	reversal := &ledgerdomain.LedgerEntry{
		ID:             s.genID.Generate(),
		CreatorID:      entry.CreatorID,
		SubscriptionID: entry.SubscriptionID,
		SourceType:     ledgerdomain.SourceTypeReversal,
		SourceRef:      reversalRef,
		GrossAmount:    -entry.GrossAmount,
		FeeAmount:      -entry.FeeAmount,
		NetAmount:      -entry.NetAmount,
		Currency:       entry.Currency,
		Status:         ledgerdomain.EntryStatusReversed,
		HoldReleaseAt:  now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	result = tx.WithContext(ctx).Exec(
		`INSERT INTO ledger_entries (
			id, creator_id, subscription_id, source_type, source_ref,
			gross_amount, fee_amount, net_amount, currency, status,
			payout_id, hold_release_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, ?)
		ON CONFLICT (source_type, source_ref) DO NOTHING`,
		reversal.ID,
		reversal.CreatorID,
		reversal.SubscriptionID,
		reversal.SourceType,
		reversal.SourceRef,
		reversal.GrossAmount,
		reversal.FeeAmount,
		reversal.NetAmount,
		reversal.Currency,
		reversal.Status,
		reversal.HoldReleaseAt,
		reversal.CreatedAt,
		reversal.UpdatedAt,
	)
	if result.Error != nil {
		return nil, result.Error
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordLedgerEntry(string(ledgerdomain.SourceTypeReversal))
	}
	return reversal, nil
}

// MatureDueEntries releases earnings whose hold window has elapsed. The
// status predicate makes overlapping runs harmless: a row already moved by a
// concurrent scan no longer matches.
func (s *Service) MatureDueEntries(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Exec(
		`UPDATE ledger_entries
		 SET status = ?, updated_at = ?
		 WHERE status = ? AND hold_release_at <= ?`,
		ledgerdomain.EntryStatusAvailable,
		now.UTC(),
		ledgerdomain.EntryStatusPending,
		now.UTC(),
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Balance derives a creator's position from entry rows. It is never stored
// as a counter, so it cannot drift from the entries themselves.
func (s *Service) Balance(ctx context.Context, creatorID snowflake.ID) (ledgerdomain.Balance, error) {
	if creatorID == 0 {
		return ledgerdomain.Balance{}, ledgerdomain.ErrInvalidCreator
	}

	var balance ledgerdomain.Balance
	err := s.db.WithContext(ctx).Raw(
		`SELECT
			COALESCE(SUM(CASE WHEN status = ? THEN net_amount ELSE 0 END), 0) AS pending,
			COALESCE(SUM(CASE WHEN status = ? THEN net_amount ELSE 0 END), 0) AS available,
			COALESCE(SUM(CASE WHEN status = ? THEN net_amount ELSE 0 END), 0) AS reserved
		 FROM ledger_entries
		 WHERE creator_id = ?`,
		ledgerdomain.EntryStatusPending,
		ledgerdomain.EntryStatusAvailable,
		ledgerdomain.EntryStatusReserved,
		creatorID,
	).Scan(&balance).Error
	if err != nil {
		return ledgerdomain.Balance{}, err
	}
	return balance, nil
}
