package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Pump is an irrigation pump wired to a relay-driving field controller.
// Whether a pump is in use is derived from the session store, never stored
// here. Active carries no gorm column default on purpose: gorm would skip an
// explicit false at insert and the row would come back active.
type Pump struct {
	ID          snowflake.ID    `json:"id" gorm:"primaryKey"`
	Name        string          `json:"name" gorm:"type:text;not null"`
	Location    string          `json:"location" gorm:"type:text"`
	Description string          `json:"description" gorm:"type:text"`
	Active      bool            `json:"active" gorm:"not null"`
	RelayPin    int             `json:"relay_pin" gorm:"not null"`
	MaxPowerKwh decimal.Decimal `json:"max_power_kwh" gorm:"type:numeric(12,4)"`
	CreatedAt   time.Time       `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time       `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Pump) TableName() string { return "pumps" }
