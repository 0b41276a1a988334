package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context) ([]Response, error)
	GetByID(ctx context.Context, id string) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
}

type CreateRequest struct {
	Name        string          `json:"name"`
	Location    string          `json:"location"`
	Description string          `json:"description"`
	RelayPin    int             `json:"relay_pin"`
	MaxPowerKwh decimal.Decimal `json:"max_power_kwh"`
}

type UpdateRequest struct {
	ID          string           `json:"id"`
	Name        *string          `json:"name,omitempty"`
	Location    *string          `json:"location,omitempty"`
	Description *string          `json:"description,omitempty"`
	Active      *bool            `json:"active,omitempty"`
	RelayPin    *int             `json:"relay_pin,omitempty"`
	MaxPowerKwh *decimal.Decimal `json:"max_power_kwh,omitempty"`
}

type Response struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Location    string          `json:"location"`
	Description string          `json:"description"`
	Active      bool            `json:"active"`
	RelayPin    int             `json:"relay_pin"`
	MaxPowerKwh decimal.Decimal `json:"max_power_kwh"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

var (
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidRelayPin = errors.New("invalid_relay_pin")
	ErrInvalidID       = errors.New("invalid_id")
	ErrNotFound        = errors.New("not_found")
)

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}
