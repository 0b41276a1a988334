package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrPumpBusy means an active session already exists for the pump. The
	// store raises it from the unique active-session constraint, so two
	// concurrent starts on an idle pump resolve to one winner.
	ErrPumpBusy = errors.New("pump_busy")
	// ErrSessionNotActive covers both unknown sessions and sessions already
	// in a terminal state, matching the controller-facing "invalid or
	// inactive" semantics.
	ErrSessionNotActive = errors.New("session_not_active")
	ErrNotFound         = errors.New("not_found")
	ErrInvalidID        = errors.New("invalid_id")
)

type Repository interface {
	// CreateActive atomically checks pump exclusivity and inserts the
	// session. Fails with ErrPumpBusy when the pump already has an active
	// session.
	CreateActive(ctx context.Context, db *gorm.DB, session *UsageSession) error

	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*UsageSession, error)
	FindActiveByPump(ctx context.Context, db *gorm.DB, pumpID snowflake.ID) (*UsageSession, error)

	// UpdateConsumption replaces the session's cumulative consumption and
	// cost. Guarded on status so terminal sessions stay immutable; fails
	// with ErrSessionNotActive otherwise.
	UpdateConsumption(ctx context.Context, db *gorm.DB, id snowflake.ID, consumed, cost decimal.Decimal, at time.Time) error

	// Close transitions an active session into the given terminal status,
	// optionally overriding the final consumption and cost. Fails with
	// ErrSessionNotActive when the session is not active.
	Close(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status, endedAt time.Time, finalKwh, cost *decimal.Decimal) error

	List(ctx context.Context, db *gorm.DB, limit int) ([]UsageSession, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, limit int) ([]UsageSession, error)
}

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}
