package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/Arnzyy/AIFANS-sub001/internal/clock"
	"github.com/Arnzyy/AIFANS-sub001/internal/config"
	obsmetrics "github.com/Arnzyy/AIFANS-sub001/internal/observability/metrics"
	subscriptiondomain "github.com/Arnzyy/AIFANS-sub001/internal/subscription/domain"
	webhookdomain "github.com/Arnzyy/AIFANS-sub001/internal/webhook/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service verifies and applies processor notifications.
type Service interface {
	Ingest(ctx context.Context, payload []byte, signatureHeader string) error
}

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Config       config.Config
	Clock        clock.Clock
	Subscription subscriptiondomain.Service
	ObsMetrics   *obsmetrics.Metrics `optional:"true"`
}

type service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	secret       string
	tolerance    time.Duration
	clock        clock.Clock
	subscription subscriptiondomain.Service
	obsMetrics   *obsmetrics.Metrics
}

func New(p Params) Service {
	return &service{
		db:           p.DB,
		log:          p.Log.Named("webhook.service"),
		genID:        p.GenID,
		secret:       p.Config.WebhookSecret,
		tolerance:    time.Duration(p.Config.WebhookToleranceSeconds) * time.Second,
		clock:        p.Clock,
		subscription: p.Subscription,
		obsMetrics:   p.ObsMetrics,
	}
}

// Ingest verifies the signature, claims the event id, and applies the
// event's effects. The claim and the effects share one transaction, so a
// retry of a half-applied event re-runs everything from scratch.
func (s *service) Ingest(ctx context.Context, payload []byte, signatureHeader string) error {
	if err := verifySignature(s.secret, payload, signatureHeader, s.clock.Now(), s.tolerance); err != nil {
		s.log.Warn("webhook signature rejected", zap.Int("payload_bytes", len(payload)))
		s.recordResult("unknown", "invalid_signature")
		return err
	}

	var notification webhookdomain.Notification
	if err := json.Unmarshal(payload, &notification); err != nil {
		s.recordResult("unknown", "invalid_payload")
		return webhookdomain.ErrInvalidPayload
	}
	notification.ID = strings.TrimSpace(notification.ID)
	if notification.ID == "" || strings.TrimSpace(notification.Type) == "" {
		s.recordResult(notification.Type, "invalid_payload")
		return webhookdomain.ErrInvalidPayload
	}

	digest := sha256.Sum256(payload)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.WithContext(ctx).Exec(
			`INSERT INTO webhook_events (id, external_id, event_type, payload_digest, processed_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (external_id) DO NOTHING`,
			s.genID.Generate(),
			notification.ID,
			notification.Type,
			hex.EncodeToString(digest[:]),
			s.clock.Now().UTC(),
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return webhookdomain.ErrEventAlreadyProcessed
		}
		return s.apply(ctx, tx, notification)
	})

	switch err {
	case nil:
		s.recordResult(notification.Type, "applied")
	case webhookdomain.ErrEventAlreadyProcessed:
		s.recordResult(notification.Type, "duplicate")
	default:
		s.recordResult(notification.Type, "error")
	}
	return err
}

func (s *service) apply(ctx context.Context, tx *gorm.DB, n webhookdomain.Notification) error {
	switch n.Type {
	case webhookdomain.EventNewSale:
		_, err := s.subscription.ApplyNewSale(ctx, tx, saleEvent(n))
		return err
	case webhookdomain.EventRenewal:
		_, err := s.subscription.ApplyRenewal(ctx, tx, saleEvent(n))
		return err
	case webhookdomain.EventCancellation:
		return s.subscription.ApplyCancellation(ctx, tx, n.SubscriptionRef)
	case webhookdomain.EventChargeback:
		return s.subscription.ApplyChargeback(ctx, tx, disputeEvent(n))
	case webhookdomain.EventRefund:
		return s.subscription.ApplyRefund(ctx, tx, disputeEvent(n))
	default:
		// Forward compatibility: the processor adds event types without
		// notice. Record and acknowledge so it stops retrying.
		s.log.Warn("unknown webhook event type",
			zap.String("event_type", n.Type),
			zap.String("external_id", n.ID),
		)
		return nil
	}
}

func saleEvent(n webhookdomain.Notification) subscriptiondomain.SaleEvent {
	var tierID *snowflake.ID
	if n.TierID != nil {
		id := snowflake.ID(*n.TierID)
		tierID = &id
	}
	return subscriptiondomain.SaleEvent{
		SubscriptionRef: n.SubscriptionRef,
		TransactionRef:  n.TransactionRef,
		FanID:           snowflake.ID(n.FanID),
		CreatorID:       snowflake.ID(n.CreatorID),
		TierID:          tierID,
		Amount:          n.Amount,
		Currency:        n.Currency,
		OccurredAt:      n.OccurredAt,
	}
}

func disputeEvent(n webhookdomain.Notification) subscriptiondomain.DisputeEvent {
	return subscriptiondomain.DisputeEvent{
		EventRef:        n.ID,
		SubscriptionRef: n.SubscriptionRef,
		TransactionRef:  n.TransactionRef,
		FanID:           snowflake.ID(n.FanID),
		OccurredAt:      n.OccurredAt,
	}
}

func (s *service) recordResult(eventType, result string) {
	if s.obsMetrics == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	s.obsMetrics.RecordWebhookEvent(eventType, result)
}
