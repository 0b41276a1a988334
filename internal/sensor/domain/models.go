package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SensorReading is one raw telemetry sample from a field power meter. The log
// is append-only: readings are stored even when no session is running, so the
// telemetry history survives billing-side failures.
type SensorReading struct {
	ID             snowflake.ID      `json:"id" gorm:"primaryKey"`
	PumpID         snowflake.ID      `json:"pump_id" gorm:"not null;index"`
	UsageSessionID *snowflake.ID     `json:"usage_session_id" gorm:"index"`
	Voltage        float64           `json:"voltage"`
	Current        float64           `json:"current"`
	Power          float64           `json:"power"`
	EnergyKwh      decimal.Decimal   `json:"energy_kwh" gorm:"type:numeric(12,4);not null"`
	Frequency      float64           `json:"frequency"`
	PowerFactor    float64           `json:"power_factor"`
	Metadata       datatypes.JSONMap `json:"metadata"`
	RecordedAt     time.Time         `json:"recorded_at" gorm:"not null;index"`
	CreatedAt      time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (SensorReading) TableName() string { return "sensor_readings" }

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, reading *SensorReading) error
	ListByPump(ctx context.Context, db *gorm.DB, pumpID snowflake.ID, limit int) ([]SensorReading, error)
}
