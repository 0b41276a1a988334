package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	billingdomain "github.com/smallbiznis/irriflow/internal/billing/domain"
	"github.com/smallbiznis/irriflow/internal/clock"
	meteringdomain "github.com/smallbiznis/irriflow/internal/metering/domain"
	"github.com/smallbiznis/irriflow/internal/metering/keyedmutex"
	"github.com/smallbiznis/irriflow/internal/observability/metrics"
	pumpdomain "github.com/smallbiznis/irriflow/internal/pump/domain"
	sensordomain "github.com/smallbiznis/irriflow/internal/sensor/domain"
	sessiondomain "github.com/smallbiznis/irriflow/internal/session/domain"
	tariffdomain "github.com/smallbiznis/irriflow/internal/tariff/domain"
)

var (
	quotaMin = decimal.RequireFromString("0.1")
	quotaMax = decimal.NewFromInt(100)
)

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Metrics  *metrics.Metrics
	Pumps    pumpdomain.Repository
	Sessions sessiondomain.Repository
	Readings sensordomain.Repository
	Tariffs  tariffdomain.Service
	Billing  billingdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	metrics  *metrics.Metrics
	pumps    pumpdomain.Repository
	sessions sessiondomain.Repository
	readings sensordomain.Repository
	tariffs  tariffdomain.Service
	billing  billingdomain.Service

	// Serializes session mutations per pump on top of the store's guarded
	// SQL, so interleaved readings for one pump apply in order.
	pumpMu *keyedmutex.KeyedMutex
}

func NewService(p ServiceParam) meteringdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("metering.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		metrics:  p.Metrics,
		pumps:    p.Pumps,
		sessions: p.Sessions,
		readings: p.Readings,
		tariffs:  p.Tariffs,
		billing:  p.Billing,
		pumpMu:   keyedmutex.New(),
	}
}

func (s *Service) StartSession(ctx context.Context, req meteringdomain.StartRequest) (*meteringdomain.StartResult, error) {
	pumpID, err := pumpdomain.ParseID(req.PumpID)
	if err != nil {
		return nil, meteringdomain.ErrInvalidID
	}
	userID, err := snowflake.ParseString(req.UserID)
	if err != nil {
		return nil, meteringdomain.ErrInvalidID
	}
	if req.QuotaKwh.LessThan(quotaMin) || req.QuotaKwh.GreaterThan(quotaMax) {
		return nil, meteringdomain.ErrQuotaOutOfRange
	}

	// Lock on the canonical id so a zero-padded request string serializes
	// with everything else touching this pump.
	key := pumpID.String()
	s.pumpMu.Lock(key)
	defer s.pumpMu.Unlock(key)

	pump, err := s.pumps.FindByID(ctx, s.db, pumpID)
	if err != nil {
		return nil, err
	}
	if pump == nil {
		return nil, meteringdomain.ErrPumpNotFound
	}
	if !pump.Active {
		return nil, meteringdomain.ErrPumpInactive
	}

	now := s.clock.Now()
	rate, err := s.tariffs.CurrentRate(ctx, now)
	if err != nil {
		return nil, err
	}

	session := &sessiondomain.UsageSession{
		ID:         s.genID.Generate(),
		UserID:     userID,
		PumpID:     pumpID,
		QuotaKwh:   req.QuotaKwh,
		ActualKwh:  decimal.Zero,
		StartedAt:  now,
		Cost:       decimal.Zero,
		TariffRate: rate,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.sessions.CreateActive(ctx, s.db, session); err != nil {
		return nil, err
	}

	s.metrics.RecordSessionStarted(ctx)
	s.metrics.RecordRelayCommand(ctx, meteringdomain.RelayOn)
	s.log.Info("session started",
		zap.String("session_id", session.ID.String()),
		zap.String("pump_id", pumpID.String()),
		zap.String("quota_kwh", req.QuotaKwh.String()),
		zap.String("tariff_rate", rate.String()),
	)

	return &meteringdomain.StartResult{
		SessionID:   session.ID.String(),
		QuotaKwh:    session.QuotaKwh,
		TariffRate:  session.TariffRate,
		RelayStatus: meteringdomain.RelayOn,
	}, nil
}

func (s *Service) UpdateSession(ctx context.Context, sessionID string, currentKwh decimal.Decimal) (*meteringdomain.UpdateResult, error) {
	if currentKwh.IsNegative() {
		return nil, meteringdomain.ErrInvalidReading
	}
	id, err := sessiondomain.ParseID(sessionID)
	if err != nil {
		// Unknown and malformed ids collapse into the same class the
		// field controller understands.
		return nil, sessiondomain.ErrSessionNotActive
	}

	session, err := s.sessions.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if session == nil || !session.IsActive() {
		return nil, sessiondomain.ErrSessionNotActive
	}

	key := session.PumpID.String()
	s.pumpMu.Lock(key)
	defer s.pumpMu.Unlock(key)

	return s.applyConsumption(ctx, id, currentKwh)
}

// applyConsumption runs the absolute-replace update and the quota check.
// Caller holds the pump mutex.
func (s *Service) applyConsumption(ctx context.Context, id snowflake.ID, currentKwh decimal.Decimal) (*meteringdomain.UpdateResult, error) {
	session, err := s.sessions.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if session == nil || !session.IsActive() {
		return nil, sessiondomain.ErrSessionNotActive
	}

	now := s.clock.Now()
	cost := currentKwh.Mul(session.TariffRate).Round(2)

	if currentKwh.GreaterThanOrEqual(session.QuotaKwh) {
		if err := s.closeSession(ctx, session, sessiondomain.StatusExceeded, now, currentKwh, cost); err != nil {
			return nil, err
		}
		return &meteringdomain.UpdateResult{
			QuotaExceeded: true,
			RelayStatus:   meteringdomain.RelayOff,
			ActualKwh:     currentKwh,
			QuotaKwh:      session.QuotaKwh,
		}, nil
	}

	if err := s.sessions.UpdateConsumption(ctx, s.db, id, currentKwh, cost, now); err != nil {
		return nil, err
	}

	session.ActualKwh = currentKwh
	session.Cost = cost
	s.metrics.RecordRelayCommand(ctx, meteringdomain.RelayOn)
	return &meteringdomain.UpdateResult{
		QuotaExceeded:   false,
		RelayStatus:     meteringdomain.RelayOn,
		ActualKwh:       session.ActualKwh,
		QuotaKwh:        session.QuotaKwh,
		RemainingKwh:    session.RemainingKwh(),
		UsagePercentage: session.UsagePercentage(),
	}, nil
}

func (s *Service) StopSession(ctx context.Context, sessionID string, finalKwh decimal.Decimal) (*meteringdomain.StopResult, error) {
	if finalKwh.IsNegative() {
		return nil, meteringdomain.ErrInvalidReading
	}
	id, err := sessiondomain.ParseID(sessionID)
	if err != nil {
		return nil, sessiondomain.ErrNotFound
	}

	session, err := s.sessions.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, sessiondomain.ErrNotFound
	}

	key := session.PumpID.String()
	s.pumpMu.Lock(key)
	defer s.pumpMu.Unlock(key)

	session, err = s.sessions.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, sessiondomain.ErrNotFound
	}
	if !session.IsActive() {
		return nil, sessiondomain.ErrSessionNotActive
	}

	now := s.clock.Now()
	cost := finalKwh.Mul(session.TariffRate).Round(2)
	if err := s.closeSession(ctx, session, sessiondomain.StatusCompleted, now, finalKwh, cost); err != nil {
		return nil, err
	}

	return &meteringdomain.StopResult{
		RelayStatus: meteringdomain.RelayOff,
		TotalCost:   cost,
		KwhUsed:     finalKwh,
	}, nil
}

// closeSession transitions into the terminal status and generates the bill
// inside one transaction. The guarded status update keeps a concurrent close
// from producing two bills.
func (s *Service) closeSession(ctx context.Context, session *sessiondomain.UsageSession, status sessiondomain.Status, endedAt time.Time, finalKwh, cost decimal.Decimal) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.sessions.Close(ctx, tx, session.ID, status, endedAt, &finalKwh, &cost); err != nil {
			return err
		}

		closed := *session
		closed.Status = status
		closed.ActualKwh = finalKwh
		closed.Cost = cost
		closed.EndedAt = &endedAt
		_, err := s.billing.Generate(ctx, tx, &closed, endedAt)
		return err
	})
	if err != nil {
		return err
	}

	s.metrics.RecordSessionClosed(ctx, string(status))
	s.metrics.RecordRelayCommand(ctx, meteringdomain.RelayOff)
	s.log.Info("session closed",
		zap.String("session_id", session.ID.String()),
		zap.String("pump_id", session.PumpID.String()),
		zap.String("status", string(status)),
		zap.String("kwh_used", finalKwh.String()),
		zap.String("cost", cost.String()),
	)
	return nil
}

func (s *Service) RecordReading(ctx context.Context, req meteringdomain.ReadingRequest) (*meteringdomain.ReadingResult, error) {
	pumpID, err := pumpdomain.ParseID(req.PumpID)
	if err != nil {
		return nil, meteringdomain.ErrInvalidID
	}
	if req.PowerFactor < 0 || req.PowerFactor > 1 {
		return nil, meteringdomain.ErrInvalidReading
	}
	if req.EnergyKwh.IsNegative() {
		return nil, meteringdomain.ErrInvalidReading
	}

	pump, err := s.pumps.FindByID(ctx, s.db, pumpID)
	if err != nil {
		return nil, err
	}
	if pump == nil {
		return nil, meteringdomain.ErrPumpNotFound
	}

	var sessionID *snowflake.ID
	if req.SessionID != nil && *req.SessionID != "" {
		id, err := sessiondomain.ParseID(*req.SessionID)
		if err != nil {
			return nil, meteringdomain.ErrInvalidID
		}
		sessionID = &id
	}

	reading := &sensordomain.SensorReading{
		ID:             s.genID.Generate(),
		PumpID:         pumpID,
		UsageSessionID: sessionID,
		Voltage:        req.Voltage,
		Current:        req.Current,
		Power:          req.Power,
		EnergyKwh:      req.EnergyKwh,
		Frequency:      req.Frequency,
		PowerFactor:    req.PowerFactor,
		Metadata:       req.Metadata,
		RecordedAt:     s.clock.Now(),
	}
	// Telemetry lands first: the log stays complete even when the session
	// side of the update cannot proceed.
	if err := s.readings.Insert(ctx, s.db, reading); err != nil {
		return nil, err
	}
	s.metrics.RecordReadingIngested(ctx)

	result := &meteringdomain.ReadingResult{
		ReadingID:    reading.ID.String(),
		RelayCommand: meteringdomain.RelayOn,
	}
	if sessionID == nil {
		return result, nil
	}

	session, err := s.sessions.FindByID(ctx, s.db, *sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return result, nil
	}

	sessionKey := session.PumpID.String()
	s.pumpMu.Lock(sessionKey)
	defer s.pumpMu.Unlock(sessionKey)

	update, err := s.applyConsumption(ctx, *sessionID, req.EnergyKwh)
	if errors.Is(err, sessiondomain.ErrSessionNotActive) {
		// Terminal session, possibly one that closed while we waited on
		// the lock. The reading already landed, so answer with the
		// terminal state instead of failing the ingest.
		closed, ferr := s.sessions.FindByID(ctx, s.db, *sessionID)
		if ferr != nil {
			return nil, ferr
		}
		if closed != nil {
			result.QuotaExceeded = closed.QuotaExceeded()
		}
		result.RelayCommand = meteringdomain.RelayOff
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	result.QuotaExceeded = update.QuotaExceeded
	if update.QuotaExceeded {
		result.RelayCommand = meteringdomain.RelayOff
	}
	return result, nil
}

func (s *Service) PumpStatus(ctx context.Context, id string) (*meteringdomain.PumpStatusResult, error) {
	pumpID, err := pumpdomain.ParseID(id)
	if err != nil {
		return nil, meteringdomain.ErrInvalidID
	}
	pump, err := s.pumps.FindByID(ctx, s.db, pumpID)
	if err != nil {
		return nil, err
	}
	if pump == nil {
		return nil, meteringdomain.ErrPumpNotFound
	}

	session, err := s.sessions.FindActiveByPump(ctx, s.db, pumpID)
	if err != nil {
		return nil, err
	}

	result := &meteringdomain.PumpStatusResult{
		PumpID:      pump.ID.String(),
		PumpName:    pump.Name,
		IsActive:    pump.Active,
		RelayStatus: meteringdomain.RelayOff,
		RelayPin:    pump.RelayPin,
		InUse:       session != nil,
	}
	if session != nil {
		result.RelayStatus = meteringdomain.RelayOn
		result.CurrentSession = &meteringdomain.SessionSnapshot{
			SessionID:       session.ID.String(),
			UserID:          session.UserID.String(),
			QuotaKwh:        session.QuotaKwh,
			ActualKwh:       session.ActualKwh,
			RemainingKwh:    session.RemainingKwh(),
			UsagePercentage: session.UsagePercentage(),
			StartedAt:       session.StartedAt,
		}
	}
	return result, nil
}
