package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/irriflow/internal/clock"
	pumpdomain "github.com/smallbiznis/irriflow/internal/pump/domain"
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
	Repo  pumpdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  pumpdomain.Repository
}

func NewService(p ServiceParam) pumpdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("pump.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req pumpdomain.CreateRequest) (*pumpdomain.Response, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, pumpdomain.ErrInvalidName
	}
	if req.RelayPin < 0 {
		return nil, pumpdomain.ErrInvalidRelayPin
	}

	now := s.clock.Now()
	pump := &pumpdomain.Pump{
		ID:          s.genID.Generate(),
		Name:        name,
		Location:    strings.TrimSpace(req.Location),
		Description: strings.TrimSpace(req.Description),
		Active:      true,
		RelayPin:    req.RelayPin,
		MaxPowerKwh: req.MaxPowerKwh,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, s.db, pump); err != nil {
		return nil, err
	}

	s.log.Info("pump created",
		zap.String("pump_id", pump.ID.String()),
		zap.Int("relay_pin", pump.RelayPin),
	)
	return toResponse(pump), nil
}

func (s *Service) List(ctx context.Context) ([]pumpdomain.Response, error) {
	pumps, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}
	out := make([]pumpdomain.Response, 0, len(pumps))
	for i := range pumps {
		out = append(out, *toResponse(&pumps[i]))
	}
	return out, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*pumpdomain.Response, error) {
	pumpID, err := pumpdomain.ParseID(id)
	if err != nil {
		return nil, pumpdomain.ErrInvalidID
	}
	pump, err := s.repo.FindByID(ctx, s.db, pumpID)
	if err != nil {
		return nil, err
	}
	if pump == nil {
		return nil, pumpdomain.ErrNotFound
	}
	return toResponse(pump), nil
}

func (s *Service) Update(ctx context.Context, req pumpdomain.UpdateRequest) (*pumpdomain.Response, error) {
	pumpID, err := pumpdomain.ParseID(req.ID)
	if err != nil {
		return nil, pumpdomain.ErrInvalidID
	}
	pump, err := s.repo.FindByID(ctx, s.db, pumpID)
	if err != nil {
		return nil, err
	}
	if pump == nil {
		return nil, pumpdomain.ErrNotFound
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, pumpdomain.ErrInvalidName
		}
		pump.Name = name
	}
	if req.Location != nil {
		pump.Location = strings.TrimSpace(*req.Location)
	}
	if req.Description != nil {
		pump.Description = strings.TrimSpace(*req.Description)
	}
	if req.Active != nil {
		pump.Active = *req.Active
	}
	if req.RelayPin != nil {
		if *req.RelayPin < 0 {
			return nil, pumpdomain.ErrInvalidRelayPin
		}
		pump.RelayPin = *req.RelayPin
	}
	if req.MaxPowerKwh != nil {
		pump.MaxPowerKwh = *req.MaxPowerKwh
	}
	pump.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, pump); err != nil {
		return nil, err
	}
	return toResponse(pump), nil
}

func toResponse(p *pumpdomain.Pump) *pumpdomain.Response {
	return &pumpdomain.Response{
		ID:          p.ID.String(),
		Name:        p.Name,
		Location:    p.Location,
		Description: p.Description,
		Active:      p.Active,
		RelayPin:    p.RelayPin,
		MaxPowerKwh: p.MaxPowerKwh,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
