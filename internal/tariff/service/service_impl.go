package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/irriflow/internal/clock"
	tariffdomain "github.com/smallbiznis/irriflow/internal/tariff/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  tariffdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  tariffdomain.Repository
}

func NewService(p ServiceParam) tariffdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("tariff.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) CurrentRate(ctx context.Context, at time.Time) (decimal.Decimal, error) {
	tariff, err := s.repo.FindEffective(ctx, s.db, at)
	if err != nil {
		return decimal.Zero, err
	}
	if tariff == nil {
		s.log.Warn("no effective tariff, metering at zero rate", zap.Time("at", at))
		return decimal.Zero, nil
	}
	return tariff.RatePerKwh, nil
}

func (s *Service) Create(ctx context.Context, req tariffdomain.CreateRequest) (*tariffdomain.Response, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, tariffdomain.ErrInvalidName
	}
	if req.RatePerKwh.IsNegative() || req.RatePerKwh.IsZero() {
		return nil, tariffdomain.ErrInvalidRate
	}

	now := s.clock.Now()
	effectiveFrom := now
	if req.EffectiveFrom != nil {
		effectiveFrom = req.EffectiveFrom.UTC()
	}
	if req.EffectiveUntil != nil && !req.EffectiveUntil.After(effectiveFrom) {
		return nil, tariffdomain.ErrInvalidWindow
	}

	tariff := &tariffdomain.Tariff{
		ID:             s.genID.Generate(),
		Name:           name,
		Description:    strings.TrimSpace(req.Description),
		RatePerKwh:     req.RatePerKwh,
		Active:         true,
		EffectiveFrom:  effectiveFrom,
		EffectiveUntil: req.EffectiveUntil,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Insert(ctx, s.db, tariff); err != nil {
		return nil, err
	}

	s.log.Info("tariff created",
		zap.String("tariff_id", tariff.ID.String()),
		zap.String("rate_per_kwh", tariff.RatePerKwh.String()),
	)
	return toResponse(tariff), nil
}

func (s *Service) List(ctx context.Context) ([]tariffdomain.Response, error) {
	tariffs, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}
	out := make([]tariffdomain.Response, 0, len(tariffs))
	for i := range tariffs {
		out = append(out, *toResponse(&tariffs[i]))
	}
	return out, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*tariffdomain.Response, error) {
	tariffID, err := tariffdomain.ParseID(id)
	if err != nil {
		return nil, tariffdomain.ErrInvalidID
	}
	tariff, err := s.repo.FindByID(ctx, s.db, tariffID)
	if err != nil {
		return nil, err
	}
	if tariff == nil {
		return nil, tariffdomain.ErrNotFound
	}
	return toResponse(tariff), nil
}

func (s *Service) Update(ctx context.Context, req tariffdomain.UpdateRequest) (*tariffdomain.Response, error) {
	tariffID, err := tariffdomain.ParseID(req.ID)
	if err != nil {
		return nil, tariffdomain.ErrInvalidID
	}
	tariff, err := s.repo.FindByID(ctx, s.db, tariffID)
	if err != nil {
		return nil, err
	}
	if tariff == nil {
		return nil, tariffdomain.ErrNotFound
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, tariffdomain.ErrInvalidName
		}
		tariff.Name = name
	}
	if req.Description != nil {
		tariff.Description = strings.TrimSpace(*req.Description)
	}
	if req.RatePerKwh != nil {
		if req.RatePerKwh.IsNegative() || req.RatePerKwh.IsZero() {
			return nil, tariffdomain.ErrInvalidRate
		}
		tariff.RatePerKwh = *req.RatePerKwh
	}
	if req.Active != nil {
		tariff.Active = *req.Active
	}
	if req.EffectiveUntil != nil {
		if !req.EffectiveUntil.After(tariff.EffectiveFrom) {
			return nil, tariffdomain.ErrInvalidWindow
		}
		tariff.EffectiveUntil = req.EffectiveUntil
	}
	tariff.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, tariff); err != nil {
		return nil, err
	}
	return toResponse(tariff), nil
}

func (s *Service) Deactivate(ctx context.Context, id string) (*tariffdomain.Response, error) {
	inactive := false
	return s.Update(ctx, tariffdomain.UpdateRequest{ID: id, Active: &inactive})
}

func toResponse(t *tariffdomain.Tariff) *tariffdomain.Response {
	return &tariffdomain.Response{
		ID:             t.ID.String(),
		Name:           t.Name,
		Description:    t.Description,
		RatePerKwh:     t.RatePerKwh,
		Active:         t.Active,
		EffectiveFrom:  t.EffectiveFrom,
		EffectiveUntil: t.EffectiveUntil,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}
