package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	billingdomain "github.com/smallbiznis/irriflow/internal/billing/domain"
	billingrepo "github.com/smallbiznis/irriflow/internal/billing/repository"
	billingservice "github.com/smallbiznis/irriflow/internal/billing/service"
	"github.com/smallbiznis/irriflow/internal/clock"
	meteringdomain "github.com/smallbiznis/irriflow/internal/metering/domain"
	pumpdomain "github.com/smallbiznis/irriflow/internal/pump/domain"
	pumprepo "github.com/smallbiznis/irriflow/internal/pump/repository"
	sensordomain "github.com/smallbiznis/irriflow/internal/sensor/domain"
	sensorrepo "github.com/smallbiznis/irriflow/internal/sensor/repository"
	sessiondomain "github.com/smallbiznis/irriflow/internal/session/domain"
	sessionrepo "github.com/smallbiznis/irriflow/internal/session/repository"
	tariffdomain "github.com/smallbiznis/irriflow/internal/tariff/domain"
	tariffrepo "github.com/smallbiznis/irriflow/internal/tariff/repository"
	tariffservice "github.com/smallbiznis/irriflow/internal/tariff/service"
)

type harness struct {
	db       *gorm.DB
	clock    *clock.FakeClock
	node     *snowflake.Node
	engine   meteringdomain.Service
	tariffs  tariffdomain.Service
	billing  billingdomain.Repository
	sessions sessiondomain.Repository
	pumps    pumpdomain.Repository
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&tariffdomain.Tariff{},
		&pumpdomain.Pump{},
		&sessiondomain.UsageSession{},
		&sensordomain.SensorReading{},
		&billingdomain.Billing{},
	))
	require.NoError(t, gdb.Exec(
		`CREATE UNIQUE INDEX ux_usage_sessions_pump_active ON usage_sessions (pump_id) WHERE status = 'active'`,
	).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fc := clock.NewFakeClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	tariffs := tariffservice.NewService(tariffservice.ServiceParam{
		DB: gdb, Log: log, GenID: node, Clock: fc, Repo: tariffrepo.Provide(),
	})
	billing := billingservice.NewService(billingservice.ServiceParam{
		DB: gdb, Log: log, GenID: node, Clock: fc, Repo: billingrepo.Provide(),
	})
	engine := NewService(ServiceParam{
		DB:       gdb,
		Log:      log,
		GenID:    node,
		Clock:    fc,
		Metrics:  nil,
		Pumps:    pumprepo.Provide(),
		Sessions: sessionrepo.Provide(),
		Readings: sensorrepo.Provide(),
		Tariffs:  tariffs,
		Billing:  billing,
	})

	return &harness{
		db:       gdb,
		clock:    fc,
		node:     node,
		engine:   engine,
		tariffs:  tariffs,
		billing:  billingrepo.Provide(),
		sessions: sessionrepo.Provide(),
		pumps:    pumprepo.Provide(),
	}
}

func (h *harness) createTariff(t *testing.T, rate string) {
	t.Helper()
	from := h.clock.Now().Add(-time.Hour)
	_, err := h.tariffs.Create(context.Background(), tariffdomain.CreateRequest{
		Name:          "standard",
		RatePerKwh:    decimal.RequireFromString(rate),
		EffectiveFrom: &from,
	})
	require.NoError(t, err)
}

func (h *harness) createPump(t *testing.T, active bool) *pumpdomain.Pump {
	t.Helper()
	now := h.clock.Now()
	pump := &pumpdomain.Pump{
		ID:        h.node.Generate(),
		Name:      "north field",
		Active:    active,
		RelayPin:  17,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, h.pumps.Insert(context.Background(), h.db, pump))
	return pump
}

func TestStartSessionSnapshotsTariff(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createTariff(t, "1500.00")
	pump := h.createPump(t, true)

	start, err := h.engine.StartSession(ctx, meteringdomain.StartRequest{
		PumpID:   pump.ID.String(),
		UserID:   h.node.Generate().String(),
		QuotaKwh: decimal.RequireFromString("5.0"),
	})
	require.NoError(t, err)
	require.Equal(t, meteringdomain.RelayOn, start.RelayStatus)
	require.True(t, start.TariffRate.Equal(decimal.RequireFromString("1500.00")))

	// A later, pricier tariff must not leak into the running session.
	h.clock.Advance(time.Minute)
	h.createTariff(t, "9000.00")

	update, err := h.engine.UpdateSession(ctx, start.SessionID, decimal.RequireFromString("2.0"))
	require.NoError(t, err)
	require.False(t, update.QuotaExceeded)
	require.Equal(t, meteringdomain.RelayOn, update.RelayStatus)
	require.True(t, update.RemainingKwh.Equal(decimal.RequireFromString("3.0")))
	require.True(t, update.UsagePercentage.Equal(decimal.RequireFromString("40")))

	sid, err := sessiondomain.ParseID(start.SessionID)
	require.NoError(t, err)
	session, err := h.sessions.FindByID(ctx, h.db, sid)
	require.NoError(t, err)
	require.True(t, session.Cost.Equal(decimal.RequireFromString("3000.00")))
	require.True(t, session.TariffRate.Equal(decimal.RequireFromString("1500.00")))
}

func TestStartSessionWithoutTariffMetersAtZero(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pump := h.createPump(t, true)

	start, err := h.engine.StartSession(ctx, meteringdomain.StartRequest{
		PumpID:   pump.ID.String(),
		UserID:   h.node.Generate().String(),
		QuotaKwh: decimal.RequireFromString("5.0"),
	})
	require.NoError(t, err)
	require.True(t, start.TariffRate.IsZero())
}

func TestStartSessionValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createTariff(t, "1500.00")
	pump := h.createPump(t, true)
	userID := h.node.Generate().String()

	_, err := h.engine.StartSession(ctx, meteringdomain.StartRequest{
		PumpID: pump.ID.String(), UserID: userID,
		QuotaKwh: decimal.RequireFromString("0.05"),
	})
	require.ErrorIs(t, err, meteringdomain.ErrQuotaOutOfRange)

	_, err = h.engine.StartSession(ctx, meteringdomain.StartRequest{
		PumpID: pump.ID.String(), UserID: userID,
		QuotaKwh: decimal.RequireFromString("100.5"),
	})
	require.ErrorIs(t, err, meteringdomain.ErrQuotaOutOfRange)

	_, err = h.engine.StartSession(ctx, meteringdomain.StartRequest{
		PumpID: h.node.Generate().String(), UserID: userID,
		QuotaKwh: decimal.RequireFromString("5.0"),
	})
	require.ErrorIs(t, err, meteringdomain.ErrPumpNotFound)

	inactive := h.createPump(t, false)
	_, err = h.engine.StartSession(ctx, meteringdomain.StartRequest{
		PumpID: inactive.ID.String(), UserID: userID,
		QuotaKwh: decimal.RequireFromString("5.0"),
	})
	require.ErrorIs(t, err, meteringdomain.ErrPumpInactive)
}

func TestStartSessionRejectsBusyPump(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createTariff(t, "1500.00")
	pump := h.createPump(t, true)

	req := meteringdomain.StartRequest{
		PumpID:   pump.ID.String(),
		UserID:   h.node.Generate().String(),
		QuotaKwh: decimal.RequireFromString("5.0"),
	}
	_, err := h.engine.StartSession(ctx, req)
	require.NoError(t, err)

	_, err = h.engine.StartSession(ctx, req)
	require.ErrorIs(t, err, sessiondomain.ErrPumpBusy)
}

func TestUpdateSessionQuotaExceededGeneratesBilling(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createTariff(t, "1500.00")
	pump := h.createPump(t, true)

	start, err := h.engine.StartSession(ctx, meteringdomain.StartRequest{
		PumpID:   pump.ID.String(),
		UserID:   h.node.Generate().String(),
		QuotaKwh: decimal.RequireFromString("5.0"),
	})
	require.NoError(t, err)

	h.clock.Advance(30 * time.Minute)
	update, err := h.engine.UpdateSession(ctx, start.SessionID, decimal.RequireFromString("5.2"))
	require.NoError(t, err)
	require.True(t, update.QuotaExceeded)
	require.Equal(t, meteringdomain.RelayOff, update.RelayStatus)

	sid, err := sessiondomain.ParseID(start.SessionID)
	require.NoError(t, err)
	session, err := h.sessions.FindByID(ctx, h.db, sid)
	require.NoError(t, err)
	require.Equal(t, sessiondomain.StatusExceeded, session.Status)
	require.NotNil(t, session.EndedAt)
	require.True(t, session.EndedAt.Equal(h.clock.Now()))

	bill, err := h.billing.FindBySession(ctx, h.db, sid)
	require.NoError(t, err)
	require.NotNil(t, bill)
	require.True(t, bill.Amount.Equal(decimal.RequireFromString("7800.00")))
	require.True(t, bill.KwhUsed.Equal(decimal.RequireFromString("5.2")))
	require.True(t, bill.TariffRate.Equal(decimal.RequireFromString("1500.00")))

	// Terminal session rejects further updates; the bill stays singular.
	_, err = h.engine.UpdateSession(ctx, start.SessionID, decimal.RequireFromString("6.0"))
	require.ErrorIs(t, err, sessiondomain.ErrSessionNotActive)
}

func TestUpdateSessionUnknownID(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.UpdateSession(ctx, "not-a-snowflake", decimal.RequireFromString("1.0"))
	require.ErrorIs(t, err, sessiondomain.ErrSessionNotActive)

	_, err = h.engine.UpdateSession(ctx, h.node.Generate().String(), decimal.RequireFromString("1.0"))
	require.ErrorIs(t, err, sessiondomain.ErrSessionNotActive)
}

func TestStopSessionCompletesAndBills(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createTariff(t, "1500.00")
	pump := h.createPump(t, true)

	start, err := h.engine.StartSession(ctx, meteringdomain.StartRequest{
		PumpID:   pump.ID.String(),
		UserID:   h.node.Generate().String(),
		QuotaKwh: decimal.RequireFromString("5.0"),
	})
	require.NoError(t, err)

	h.clock.Advance(time.Hour)
	stop, err := h.engine.StopSession(ctx, start.SessionID, decimal.RequireFromString("3.5"))
	require.NoError(t, err)
	require.Equal(t, meteringdomain.RelayOff, stop.RelayStatus)
	require.True(t, stop.TotalCost.Equal(decimal.RequireFromString("5250.00")))
	require.True(t, stop.KwhUsed.Equal(decimal.RequireFromString("3.5")))

	sid, err := sessiondomain.ParseID(start.SessionID)
	require.NoError(t, err)
	session, err := h.sessions.FindByID(ctx, h.db, sid)
	require.NoError(t, err)
	require.Equal(t, sessiondomain.StatusCompleted, session.Status)

	bill, err := h.billing.FindBySession(ctx, h.db, sid)
	require.NoError(t, err)
	require.NotNil(t, bill)
	require.True(t, bill.Amount.Equal(decimal.RequireFromString("5250.00")))

	// Stopping again must not mint a second bill.
	_, err = h.engine.StopSession(ctx, start.SessionID, decimal.RequireFromString("4.0"))
	require.ErrorIs(t, err, sessiondomain.ErrSessionNotActive)

	// The pump is free for the next session.
	_, err = h.engine.StartSession(ctx, meteringdomain.StartRequest{
		PumpID:   pump.ID.String(),
		UserID:   h.node.Generate().String(),
		QuotaKwh: decimal.RequireFromString("2.0"),
	})
	require.NoError(t, err)
}

func TestStopSessionNotFound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.StopSession(ctx, h.node.Generate().String(), decimal.RequireFromString("1.0"))
	require.ErrorIs(t, err, sessiondomain.ErrNotFound)
}

func TestRecordReadingWithoutSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pump := h.createPump(t, true)

	result, err := h.engine.RecordReading(ctx, meteringdomain.ReadingRequest{
		PumpID:      pump.ID.String(),
		Voltage:     228.5,
		Current:     4.2,
		Power:       960,
		EnergyKwh:   decimal.RequireFromString("1.25"),
		Frequency:   50.0,
		PowerFactor: 0.95,
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.ReadingID)
	require.False(t, result.QuotaExceeded)
	require.Equal(t, meteringdomain.RelayOn, result.RelayCommand)

	var count int64
	require.NoError(t, h.db.Model(&sensordomain.SensorReading{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRecordReadingDrivesQuotaCheck(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createTariff(t, "1500.00")
	pump := h.createPump(t, true)

	start, err := h.engine.StartSession(ctx, meteringdomain.StartRequest{
		PumpID:   pump.ID.String(),
		UserID:   h.node.Generate().String(),
		QuotaKwh: decimal.RequireFromString("2.0"),
	})
	require.NoError(t, err)

	under, err := h.engine.RecordReading(ctx, meteringdomain.ReadingRequest{
		PumpID:      pump.ID.String(),
		SessionID:   &start.SessionID,
		EnergyKwh:   decimal.RequireFromString("1.5"),
		PowerFactor: 0.9,
	})
	require.NoError(t, err)
	require.False(t, under.QuotaExceeded)
	require.Equal(t, meteringdomain.RelayOn, under.RelayCommand)

	over, err := h.engine.RecordReading(ctx, meteringdomain.ReadingRequest{
		PumpID:      pump.ID.String(),
		SessionID:   &start.SessionID,
		EnergyKwh:   decimal.RequireFromString("2.1"),
		PowerFactor: 0.9,
	})
	require.NoError(t, err)
	require.True(t, over.QuotaExceeded)
	require.Equal(t, meteringdomain.RelayOff, over.RelayCommand)

	// Readings for the now-terminal session still append, relay stays OFF.
	after, err := h.engine.RecordReading(ctx, meteringdomain.ReadingRequest{
		PumpID:      pump.ID.String(),
		SessionID:   &start.SessionID,
		EnergyKwh:   decimal.RequireFromString("2.2"),
		PowerFactor: 0.9,
	})
	require.NoError(t, err)
	require.True(t, after.QuotaExceeded)
	require.Equal(t, meteringdomain.RelayOff, after.RelayCommand)

	var count int64
	require.NoError(t, h.db.Model(&sensordomain.SensorReading{}).Count(&count).Error)
	require.EqualValues(t, 3, count)
}

func TestStartSessionAcceptsZeroPaddedPumpID(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createTariff(t, "1500.00")
	pump := h.createPump(t, true)

	start, err := h.engine.StartSession(ctx, meteringdomain.StartRequest{
		PumpID:   "00" + pump.ID.String(),
		UserID:   h.node.Generate().String(),
		QuotaKwh: decimal.RequireFromString("5.0"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, start.SessionID)

	// The padded form named the same pump, so the canonical id is busy.
	_, err = h.engine.StartSession(ctx, meteringdomain.StartRequest{
		PumpID:   pump.ID.String(),
		UserID:   h.node.Generate().String(),
		QuotaKwh: decimal.RequireFromString("5.0"),
	})
	require.ErrorIs(t, err, sessiondomain.ErrPumpBusy)
}

func TestRecordReadingAfterStopStillAppends(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createTariff(t, "1500.00")
	pump := h.createPump(t, true)

	start, err := h.engine.StartSession(ctx, meteringdomain.StartRequest{
		PumpID:   pump.ID.String(),
		UserID:   h.node.Generate().String(),
		QuotaKwh: decimal.RequireFromString("5.0"),
	})
	require.NoError(t, err)

	_, err = h.engine.StopSession(ctx, start.SessionID, decimal.RequireFromString("2.0"))
	require.NoError(t, err)

	// A late reading for the closed session succeeds with relay OFF and no
	// exceeded flag, and the telemetry row still lands.
	result, err := h.engine.RecordReading(ctx, meteringdomain.ReadingRequest{
		PumpID:      pump.ID.String(),
		SessionID:   &start.SessionID,
		EnergyKwh:   decimal.RequireFromString("2.1"),
		PowerFactor: 0.9,
	})
	require.NoError(t, err)
	require.False(t, result.QuotaExceeded)
	require.Equal(t, meteringdomain.RelayOff, result.RelayCommand)

	var count int64
	require.NoError(t, h.db.Model(&sensordomain.SensorReading{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRecordReadingValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pump := h.createPump(t, true)

	_, err := h.engine.RecordReading(ctx, meteringdomain.ReadingRequest{
		PumpID:      pump.ID.String(),
		EnergyKwh:   decimal.RequireFromString("1.0"),
		PowerFactor: 1.4,
	})
	require.ErrorIs(t, err, meteringdomain.ErrInvalidReading)

	_, err = h.engine.RecordReading(ctx, meteringdomain.ReadingRequest{
		PumpID:      h.node.Generate().String(),
		EnergyKwh:   decimal.RequireFromString("1.0"),
		PowerFactor: 0.9,
	})
	require.ErrorIs(t, err, meteringdomain.ErrPumpNotFound)
}

func TestPumpStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createTariff(t, "1500.00")
	pump := h.createPump(t, true)

	status, err := h.engine.PumpStatus(ctx, pump.ID.String())
	require.NoError(t, err)
	require.False(t, status.InUse)
	require.Equal(t, meteringdomain.RelayOff, status.RelayStatus)
	require.Nil(t, status.CurrentSession)

	start, err := h.engine.StartSession(ctx, meteringdomain.StartRequest{
		PumpID:   pump.ID.String(),
		UserID:   h.node.Generate().String(),
		QuotaKwh: decimal.RequireFromString("4.0"),
	})
	require.NoError(t, err)

	_, err = h.engine.UpdateSession(ctx, start.SessionID, decimal.RequireFromString("1.0"))
	require.NoError(t, err)

	status, err = h.engine.PumpStatus(ctx, pump.ID.String())
	require.NoError(t, err)
	require.True(t, status.InUse)
	require.Equal(t, meteringdomain.RelayOn, status.RelayStatus)
	require.NotNil(t, status.CurrentSession)
	require.Equal(t, start.SessionID, status.CurrentSession.SessionID)
	require.True(t, status.CurrentSession.RemainingKwh.Equal(decimal.RequireFromString("3.0")))
	require.True(t, status.CurrentSession.UsagePercentage.Equal(decimal.RequireFromString("25")))

	_, err = h.engine.StopSession(ctx, start.SessionID, decimal.RequireFromString("1.0"))
	require.NoError(t, err)

	status, err = h.engine.PumpStatus(ctx, pump.ID.String())
	require.NoError(t, err)
	require.False(t, status.InUse)
	require.Equal(t, meteringdomain.RelayOff, status.RelayStatus)

	_, err = h.engine.PumpStatus(ctx, h.node.Generate().String())
	require.ErrorIs(t, err, meteringdomain.ErrPumpNotFound)
}
