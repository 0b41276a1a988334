package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Relay directives returned to the field controller. They are emitted in
// responses, never stored.
const (
	RelayOn  = "ON"
	RelayOff = "OFF"
)

var (
	ErrInvalidID       = errors.New("invalid_id")
	ErrQuotaOutOfRange = errors.New("quota_out_of_range")
	ErrInvalidReading  = errors.New("invalid_reading")
	ErrPumpNotFound    = errors.New("pump_not_found")
	ErrPumpInactive    = errors.New("pump_inactive")
)

type StartRequest struct {
	PumpID   string          `json:"pump_id"`
	UserID   string          `json:"user_id"`
	QuotaKwh decimal.Decimal `json:"quota_kwh"`
}

type StartResult struct {
	SessionID   string          `json:"session_id"`
	QuotaKwh    decimal.Decimal `json:"quota_kwh"`
	TariffRate  decimal.Decimal `json:"tariff_rate"`
	RelayStatus string          `json:"relay_status"`
}

type UpdateResult struct {
	QuotaExceeded   bool            `json:"quota_exceeded"`
	RelayStatus     string          `json:"relay_status"`
	ActualKwh       decimal.Decimal `json:"actual_kwh"`
	QuotaKwh        decimal.Decimal `json:"quota_kwh"`
	RemainingKwh    decimal.Decimal `json:"remaining_kwh"`
	UsagePercentage decimal.Decimal `json:"usage_percentage"`
}

type StopResult struct {
	RelayStatus string          `json:"relay_status"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	KwhUsed     decimal.Decimal `json:"kwh_used"`
}

type ReadingRequest struct {
	PumpID      string          `json:"pump_id"`
	SessionID   *string         `json:"session_id,omitempty"`
	Voltage     float64         `json:"voltage"`
	Current     float64         `json:"current"`
	Power       float64         `json:"power"`
	EnergyKwh   decimal.Decimal `json:"energy"`
	Frequency   float64         `json:"frequency"`
	PowerFactor float64         `json:"power_factor"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
}

type ReadingResult struct {
	ReadingID     string `json:"reading_id"`
	QuotaExceeded bool   `json:"quota_exceeded"`
	RelayCommand  string `json:"relay_command"`
}

type SessionSnapshot struct {
	SessionID       string          `json:"session_id"`
	UserID          string          `json:"user_id"`
	QuotaKwh        decimal.Decimal `json:"quota_kwh"`
	ActualKwh       decimal.Decimal `json:"actual_kwh"`
	RemainingKwh    decimal.Decimal `json:"remaining_kwh"`
	UsagePercentage decimal.Decimal `json:"usage_percentage"`
	StartedAt       time.Time       `json:"started_at"`
}

type PumpStatusResult struct {
	PumpID         string           `json:"pump_id"`
	PumpName       string           `json:"pump_name"`
	IsActive       bool             `json:"is_active"`
	RelayStatus    string           `json:"relay_status"`
	RelayPin       int              `json:"relay_pin"`
	InUse          bool             `json:"in_use"`
	CurrentSession *SessionSnapshot `json:"current_session"`
}

// Service is the metering engine. It owns the session state machine, the
// quota and cost arithmetic, and the relay directive emitted to the field
// controller. It is identity-agnostic: caller authorization lives at the
// transport boundary.
type Service interface {
	StartSession(ctx context.Context, req StartRequest) (*StartResult, error)
	UpdateSession(ctx context.Context, sessionID string, currentKwh decimal.Decimal) (*UpdateResult, error)
	StopSession(ctx context.Context, sessionID string, finalKwh decimal.Decimal) (*StopResult, error)
	RecordReading(ctx context.Context, req ReadingRequest) (*ReadingResult, error)
	PumpStatus(ctx context.Context, pumpID string) (*PumpStatusResult, error)
}
