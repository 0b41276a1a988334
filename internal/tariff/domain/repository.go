package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, tariff *Tariff) error
	Update(ctx context.Context, db *gorm.DB, tariff *Tariff) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Tariff, error)
	List(ctx context.Context, db *gorm.DB) ([]Tariff, error)
	// FindEffective returns the single tariff governing the given instant, or
	// nil when none qualifies. Overlapping windows resolve to the highest
	// effective_from, then the highest id.
	FindEffective(ctx context.Context, db *gorm.DB, at time.Time) (*Tariff, error)
}
