package service

import (
	"context"
	"encoding/json"
	"time"

	reconciliationdomain "github.com/Arnzyy/AIFANS-sub001/internal/reconciliation/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OpenRequest identifies the subjects of a new review case. Detail carries
// whatever the caller knows at the time, marshalled as-is.
type OpenRequest struct {
	Kind           reconciliationdomain.ReviewCaseKind
	SubscriptionID *snowflake.ID
	LedgerEntryID  *snowflake.ID
	PayoutID       *snowflake.ID
	ExternalRef    string
	Detail         map[string]any
}

type Service interface {
	Open(ctx context.Context, tx *gorm.DB, req OpenRequest) (*reconciliationdomain.ReviewCase, error)
	List(ctx context.Context, status reconciliationdomain.ReviewCaseStatus) ([]reconciliationdomain.ReviewCase, error)
	Resolve(ctx context.Context, id snowflake.ID) error
}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func New(p Params) Service {
	return &service{
		db:    p.DB,
		log:   p.Log.Named("reconciliation.service"),
		genID: p.GenID,
	}
}

func (s *service) Open(ctx context.Context, tx *gorm.DB, req OpenRequest) (*reconciliationdomain.ReviewCase, error) {
	if tx == nil {
		tx = s.db
	}

	var detail datatypes.JSON
	if len(req.Detail) > 0 {
		raw, err := json.Marshal(req.Detail)
		if err != nil {
			return nil, err
		}
		detail = datatypes.JSON(raw)
	}

	reviewCase := &reconciliationdomain.ReviewCase{
		ID:             s.genID.Generate(),
		Kind:           req.Kind,
		SubscriptionID: req.SubscriptionID,
		LedgerEntryID:  req.LedgerEntryID,
		PayoutID:       req.PayoutID,
		ExternalRef:    req.ExternalRef,
		Detail:         detail,
		Status:         reconciliationdomain.CaseStatusOpen,
		CreatedAt:      time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(reviewCase).Error; err != nil {
		return nil, err
	}

	s.log.Warn("review case opened",
		zap.String("kind", string(req.Kind)),
		zap.String("external_ref", req.ExternalRef),
	)
	return reviewCase, nil
}

func (s *service) List(ctx context.Context, status reconciliationdomain.ReviewCaseStatus) ([]reconciliationdomain.ReviewCase, error) {
	query := s.db.WithContext(ctx).Order("created_at ASC")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var cases []reconciliationdomain.ReviewCase
	if err := query.Find(&cases).Error; err != nil {
		return nil, err
	}
	return cases, nil
}

func (s *service) Resolve(ctx context.Context, id snowflake.ID) error {
	return s.db.WithContext(ctx).Exec(
		`UPDATE review_cases
		 SET status = ?, resolved_at = ?
		 WHERE id = ? AND status = ?`,
		reconciliationdomain.CaseStatusResolved,
		time.Now().UTC(),
		id,
		reconciliationdomain.CaseStatusOpen,
	).Error
}
