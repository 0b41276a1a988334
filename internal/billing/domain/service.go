package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	sessiondomain "github.com/smallbiznis/irriflow/internal/session/domain"
)

var (
	ErrInvalidID   = errors.New("invalid_id")
	ErrNotFound    = errors.New("not_found")
	ErrAlreadyPaid = errors.New("already_paid")
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, billing *Billing) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Billing, error)
	FindBySession(ctx context.Context, db *gorm.DB, sessionID snowflake.ID) (*Billing, error)
	List(ctx context.Context, db *gorm.DB, limit int) ([]Billing, error)
	MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, paidAt time.Time, method string) error
}

type MarkPaidRequest struct {
	ID            string `json:"-"`
	PaymentMethod string `json:"payment_method"`
}

type Service interface {
	// Generate projects a closed session into a billing row. Calling it
	// again for the same session returns the existing bill unchanged.
	Generate(ctx context.Context, db *gorm.DB, session *sessiondomain.UsageSession, closedAt time.Time) (*Billing, error)

	List(ctx context.Context) ([]Billing, error)
	GetByID(ctx context.Context, id string) (*Billing, error)
	MarkPaid(ctx context.Context, req MarkPaidRequest) (*Billing, error)
}

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}
