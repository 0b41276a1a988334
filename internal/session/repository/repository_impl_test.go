package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	sessiondomain "github.com/smallbiznis/irriflow/internal/session/domain"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	require.NoError(t, gdb.AutoMigrate(&sessiondomain.UsageSession{}))
	// Partial index mirroring the production migration: at most one active
	// session per pump.
	require.NoError(t, gdb.Exec(
		`CREATE UNIQUE INDEX ux_usage_sessions_pump_active ON usage_sessions (pump_id) WHERE status = 'active'`,
	).Error)

	return gdb
}

func newTestNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

func newSession(node *snowflake.Node, pumpID snowflake.ID, startedAt time.Time) *sessiondomain.UsageSession {
	return &sessiondomain.UsageSession{
		ID:         node.Generate(),
		UserID:     node.Generate(),
		PumpID:     pumpID,
		QuotaKwh:   decimal.RequireFromString("10.0000"),
		ActualKwh:  decimal.Zero,
		StartedAt:  startedAt,
		Cost:       decimal.Zero,
		TariffRate: decimal.RequireFromString("1500.00"),
		CreatedAt:  startedAt,
		UpdatedAt:  startedAt,
	}
}

func TestCreateActiveRejectsBusyPump(t *testing.T) {
	gdb := openTestDB(t)
	node := newTestNode(t)
	r := Provide()
	ctx := context.Background()
	now := time.Now().UTC()

	pumpID := node.Generate()

	first := newSession(node, pumpID, now)
	require.NoError(t, r.CreateActive(ctx, gdb, first))

	second := newSession(node, pumpID, now)
	err := r.CreateActive(ctx, gdb, second)
	require.ErrorIs(t, err, sessiondomain.ErrPumpBusy)

	// A different pump is unaffected.
	other := newSession(node, node.Generate(), now)
	require.NoError(t, r.CreateActive(ctx, gdb, other))
}

func TestCreateActiveConcurrentStartsSingleWinner(t *testing.T) {
	gdb := openTestDB(t)
	// The in-memory database exists per connection; pin the pool to one so
	// every goroutine sees the same schema and index.
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	node := newTestNode(t)
	r := Provide()
	ctx := context.Background()
	now := time.Now().UTC()

	pumpID := node.Generate()

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = r.CreateActive(ctx, gdb, newSession(node, pumpID, now))
		}(i)
	}
	wg.Wait()

	var wins, busy int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, sessiondomain.ErrPumpBusy):
			busy++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, attempts-1, busy)

	active, err := r.FindActiveByPump(ctx, gdb, pumpID)
	require.NoError(t, err)
	require.NotNil(t, active)
}

func TestCreateActiveAllowsRestartAfterClose(t *testing.T) {
	gdb := openTestDB(t)
	node := newTestNode(t)
	r := Provide()
	ctx := context.Background()
	now := time.Now().UTC()

	pumpID := node.Generate()

	first := newSession(node, pumpID, now)
	require.NoError(t, r.CreateActive(ctx, gdb, first))

	require.NoError(t, r.Close(ctx, gdb, first.ID, sessiondomain.StatusStopped, now.Add(time.Minute), nil, nil))

	second := newSession(node, pumpID, now.Add(2*time.Minute))
	require.NoError(t, r.CreateActive(ctx, gdb, second))
}

func TestUpdateConsumptionGuardsTerminalSessions(t *testing.T) {
	gdb := openTestDB(t)
	node := newTestNode(t)
	r := Provide()
	ctx := context.Background()
	now := time.Now().UTC()

	session := newSession(node, node.Generate(), now)
	require.NoError(t, r.CreateActive(ctx, gdb, session))

	consumed := decimal.RequireFromString("2.5000")
	cost := decimal.RequireFromString("3750.00")
	require.NoError(t, r.UpdateConsumption(ctx, gdb, session.ID, consumed, cost, now.Add(time.Minute)))

	got, err := r.FindByID(ctx, gdb, session.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.True(t, got.ActualKwh.Equal(consumed))
	require.True(t, got.Cost.Equal(cost))
	require.Equal(t, sessiondomain.StatusActive, got.Status)

	require.NoError(t, r.Close(ctx, gdb, session.ID, sessiondomain.StatusCompleted, now.Add(2*time.Minute), nil, nil))

	err = r.UpdateConsumption(ctx, gdb, session.ID, consumed, cost, now.Add(3*time.Minute))
	require.ErrorIs(t, err, sessiondomain.ErrSessionNotActive)

	// Consumption is frozen at the closing values.
	got, err = r.FindByID(ctx, gdb, session.ID)
	require.NoError(t, err)
	require.True(t, got.ActualKwh.Equal(consumed))
	require.Equal(t, sessiondomain.StatusCompleted, got.Status)
}

func TestCloseIsSingleShot(t *testing.T) {
	gdb := openTestDB(t)
	node := newTestNode(t)
	r := Provide()
	ctx := context.Background()
	now := time.Now().UTC()

	session := newSession(node, node.Generate(), now)
	require.NoError(t, r.CreateActive(ctx, gdb, session))

	endedAt := now.Add(time.Minute)
	finalKwh := decimal.RequireFromString("10.0000")
	cost := decimal.RequireFromString("15000.00")
	require.NoError(t, r.Close(ctx, gdb, session.ID, sessiondomain.StatusExceeded, endedAt, &finalKwh, &cost))

	err := r.Close(ctx, gdb, session.ID, sessiondomain.StatusStopped, endedAt.Add(time.Minute), nil, nil)
	require.ErrorIs(t, err, sessiondomain.ErrSessionNotActive)

	got, err := r.FindByID(ctx, gdb, session.ID)
	require.NoError(t, err)
	require.Equal(t, sessiondomain.StatusExceeded, got.Status)
	require.NotNil(t, got.EndedAt)
	require.True(t, got.ActualKwh.Equal(finalKwh))
	require.True(t, got.Cost.Equal(cost))
}

func TestCloseRejectsNonTerminalStatus(t *testing.T) {
	gdb := openTestDB(t)
	node := newTestNode(t)
	r := Provide()
	ctx := context.Background()
	now := time.Now().UTC()

	session := newSession(node, node.Generate(), now)
	require.NoError(t, r.CreateActive(ctx, gdb, session))

	err := r.Close(ctx, gdb, session.ID, sessiondomain.StatusActive, now.Add(time.Minute), nil, nil)
	require.ErrorIs(t, err, sessiondomain.ErrSessionNotActive)
}

func TestFindActiveByPump(t *testing.T) {
	gdb := openTestDB(t)
	node := newTestNode(t)
	r := Provide()
	ctx := context.Background()
	now := time.Now().UTC()

	pumpID := node.Generate()

	got, err := r.FindActiveByPump(ctx, gdb, pumpID)
	require.NoError(t, err)
	require.Nil(t, got)

	session := newSession(node, pumpID, now)
	require.NoError(t, r.CreateActive(ctx, gdb, session))

	got, err = r.FindActiveByPump(ctx, gdb, pumpID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, session.ID, got.ID)

	require.NoError(t, r.Close(ctx, gdb, session.ID, sessiondomain.StatusCompleted, now.Add(time.Minute), nil, nil))

	got, err = r.FindActiveByPump(ctx, gdb, pumpID)
	require.NoError(t, err)
	require.Nil(t, got)
}
