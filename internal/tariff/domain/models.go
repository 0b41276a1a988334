package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Tariff defines a time-windowed rate per kWh. The metering engine snapshots
// the effective rate at session start; later tariff edits never touch open
// sessions. Active carries no gorm column default on purpose: gorm would skip
// an explicit false at insert and the row would come back active.
type Tariff struct {
	ID             snowflake.ID    `json:"id" gorm:"primaryKey"`
	Name           string          `json:"name" gorm:"type:text;not null"`
	Description    string          `json:"description" gorm:"type:text"`
	RatePerKwh     decimal.Decimal `json:"rate_per_kwh" gorm:"type:numeric(12,2);not null"`
	Active         bool            `json:"active" gorm:"not null"`
	EffectiveFrom  time.Time       `json:"effective_from" gorm:"not null"`
	EffectiveUntil *time.Time      `json:"effective_until"`
	CreatedAt      time.Time       `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time       `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Tariff) TableName() string { return "tariffs" }

// Covers reports whether the tariff window contains the given instant.
func (t Tariff) Covers(at time.Time) bool {
	if !t.Active {
		return false
	}
	if t.EffectiveFrom.After(at) {
		return false
	}
	if t.EffectiveUntil != nil && t.EffectiveUntil.Before(at) {
		return false
	}
	return true
}
