package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

// Billing is the settlement record projected from a closed usage session.
// Amount, TariffRate, and KwhUsed are exact copies of the session's final
// figures, so the bill never drifts from what was metered.
type Billing struct {
	ID             snowflake.ID    `json:"id" gorm:"primaryKey"`
	UserID         snowflake.ID    `json:"user_id" gorm:"not null;index"`
	UsageSessionID snowflake.ID    `json:"usage_session_id" gorm:"not null;uniqueIndex"`
	Amount         decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	TariffRate     decimal.Decimal `json:"tariff_rate" gorm:"type:numeric(12,2);not null"`
	KwhUsed        decimal.Decimal `json:"kwh_used" gorm:"type:numeric(12,4);not null"`
	Status         Status          `json:"status" gorm:"type:text;not null"`
	DueDate        time.Time       `json:"due_date" gorm:"not null"`
	PaidAt         *time.Time      `json:"paid_at"`
	PaymentMethod  string          `json:"payment_method"`
	Notes          string          `json:"notes"`
	CreatedAt      time.Time       `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time       `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Billing) TableName() string { return "billings" }

// Overdue reports whether a still-unpaid bill has passed its due date.
func (b *Billing) Overdue(at time.Time) bool {
	return b.Status == StatusPending && at.After(b.DueDate)
}
