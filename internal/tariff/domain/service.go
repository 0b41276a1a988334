package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Service interface {
	// CurrentRate resolves the rate per kWh effective at the given instant.
	// A zero rate means no tariff qualifies; callers treat it as degraded
	// operation, not an error.
	CurrentRate(ctx context.Context, at time.Time) (decimal.Decimal, error)

	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context) ([]Response, error)
	GetByID(ctx context.Context, id string) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Deactivate(ctx context.Context, id string) (*Response, error)
}

type CreateRequest struct {
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	RatePerKwh     decimal.Decimal `json:"rate_per_kwh"`
	EffectiveFrom  *time.Time      `json:"effective_from"`
	EffectiveUntil *time.Time      `json:"effective_until"`
}

type UpdateRequest struct {
	ID             string           `json:"id"`
	Name           *string          `json:"name,omitempty"`
	Description    *string          `json:"description,omitempty"`
	RatePerKwh     *decimal.Decimal `json:"rate_per_kwh,omitempty"`
	Active         *bool            `json:"active,omitempty"`
	EffectiveUntil *time.Time       `json:"effective_until,omitempty"`
}

type Response struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	RatePerKwh     decimal.Decimal `json:"rate_per_kwh"`
	Active         bool            `json:"active"`
	EffectiveFrom  time.Time       `json:"effective_from"`
	EffectiveUntil *time.Time      `json:"effective_until,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

var (
	ErrInvalidName   = errors.New("invalid_name")
	ErrInvalidRate   = errors.New("invalid_rate")
	ErrInvalidWindow = errors.New("invalid_window")
	ErrInvalidID     = errors.New("invalid_id")
	ErrNotFound      = errors.New("not_found")
)

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}
