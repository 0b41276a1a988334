package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	billingdomain "github.com/smallbiznis/irriflow/internal/billing/domain"
	"github.com/smallbiznis/irriflow/internal/clock"
	sessiondomain "github.com/smallbiznis/irriflow/internal/session/domain"
	"github.com/smallbiznis/irriflow/pkg/db"
)

// Payment terms for generated bills.
const dueAfter = 30 * 24 * time.Hour

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  billingdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  billingdomain.Repository
}

func NewService(p ServiceParam) billingdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("billing.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Generate(ctx context.Context, tx *gorm.DB, session *sessiondomain.UsageSession, closedAt time.Time) (*billingdomain.Billing, error) {
	if tx == nil {
		tx = s.db
	}

	billing := &billingdomain.Billing{
		ID:             s.genID.Generate(),
		UserID:         session.UserID,
		UsageSessionID: session.ID,
		Amount:         session.Cost,
		TariffRate:     session.TariffRate,
		KwhUsed:        session.ActualKwh,
		Status:         billingdomain.StatusPending,
		DueDate:        closedAt.Add(dueAfter),
		CreatedAt:      closedAt,
		UpdatedAt:      closedAt,
	}
	if err := s.repo.Insert(ctx, tx, billing); err != nil {
		// The unique session index makes generation idempotent: a second
		// close path for the same session gets the original bill back.
		if db.IsDuplicateKeyErr(err) {
			existing, ferr := s.repo.FindBySession(ctx, tx, session.ID)
			if ferr != nil {
				return nil, ferr
			}
			if existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}

	s.log.Info("billing generated",
		zap.String("billing_id", billing.ID.String()),
		zap.String("usage_session_id", session.ID.String()),
		zap.String("amount", billing.Amount.String()),
	)
	return billing, nil
}

func (s *Service) List(ctx context.Context) ([]billingdomain.Billing, error) {
	billings, err := s.repo.List(ctx, s.db, 0)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	for i := range billings {
		if billings[i].Overdue(now) {
			billings[i].Status = billingdomain.StatusOverdue
		}
	}
	return billings, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*billingdomain.Billing, error) {
	billingID, err := billingdomain.ParseID(id)
	if err != nil {
		return nil, billingdomain.ErrInvalidID
	}
	billing, err := s.repo.FindByID(ctx, s.db, billingID)
	if err != nil {
		return nil, err
	}
	if billing == nil {
		return nil, billingdomain.ErrNotFound
	}
	if billing.Overdue(s.clock.Now()) {
		billing.Status = billingdomain.StatusOverdue
	}
	return billing, nil
}

func (s *Service) MarkPaid(ctx context.Context, req billingdomain.MarkPaidRequest) (*billingdomain.Billing, error) {
	billingID, err := billingdomain.ParseID(req.ID)
	if err != nil {
		return nil, billingdomain.ErrInvalidID
	}
	billing, err := s.repo.FindByID(ctx, s.db, billingID)
	if err != nil {
		return nil, err
	}
	if billing == nil {
		return nil, billingdomain.ErrNotFound
	}
	if billing.Status == billingdomain.StatusPaid {
		return nil, billingdomain.ErrAlreadyPaid
	}

	paidAt := s.clock.Now()
	if err := s.repo.MarkPaid(ctx, s.db, billingID, paidAt, req.PaymentMethod); err != nil {
		return nil, err
	}

	billing.Status = billingdomain.StatusPaid
	billing.PaidAt = &paidAt
	billing.PaymentMethod = req.PaymentMethod
	billing.UpdatedAt = paidAt
	return billing, nil
}
