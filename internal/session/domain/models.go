package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Status is the usage session lifecycle state. Transitions are monotonic:
// active is the only non-terminal state.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusStopped   Status = "stopped"
	StatusExceeded  Status = "exceeded"
)

// Terminal reports whether the status permits no further transition.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusStopped, StatusExceeded:
		return true
	default:
		return false
	}
}

// UsageSession is a bounded period during which a pump may consume energy up
// to a quota, attributed to a user. TariffRate is snapshotted at creation and
// never re-read, so the bill stays deterministic under tariff churn.
type UsageSession struct {
	ID         snowflake.ID    `json:"id" gorm:"primaryKey"`
	UserID     snowflake.ID    `json:"user_id" gorm:"not null;index"`
	PumpID     snowflake.ID    `json:"pump_id" gorm:"not null;index"`
	QuotaKwh   decimal.Decimal `json:"quota_kwh" gorm:"type:numeric(12,4);not null"`
	ActualKwh  decimal.Decimal `json:"actual_kwh" gorm:"type:numeric(12,4);not null"`
	Status     Status          `json:"status" gorm:"type:text;not null"`
	StartedAt  time.Time       `json:"started_at" gorm:"not null"`
	EndedAt    *time.Time      `json:"ended_at"`
	Cost       decimal.Decimal `json:"cost" gorm:"type:numeric(12,2);not null"`
	TariffRate decimal.Decimal `json:"tariff_rate" gorm:"type:numeric(12,2);not null"`
	CreatedAt  time.Time       `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time       `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (UsageSession) TableName() string { return "usage_sessions" }

func (s *UsageSession) IsActive() bool {
	return s.Status == StatusActive
}

// QuotaExceeded reports whether consumption reached the quota.
func (s *UsageSession) QuotaExceeded() bool {
	return s.ActualKwh.GreaterThanOrEqual(s.QuotaKwh)
}

// RemainingKwh is the unconsumed quota, clamped at zero.
func (s *UsageSession) RemainingKwh() decimal.Decimal {
	remaining := s.QuotaKwh.Sub(s.ActualKwh)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// UsagePercentage is consumption over quota in [0,100]. A zero quota reads as
// zero percent so callers never divide by zero.
func (s *UsageSession) UsagePercentage() decimal.Decimal {
	if s.QuotaKwh.IsZero() {
		return decimal.Zero
	}
	pct := s.ActualKwh.Div(s.QuotaKwh).Mul(decimal.NewFromInt(100))
	if pct.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.NewFromInt(100)
	}
	return pct
}
