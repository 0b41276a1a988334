package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, pump *Pump) error
	Update(ctx context.Context, db *gorm.DB, pump *Pump) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Pump, error)
	List(ctx context.Context, db *gorm.DB) ([]Pump, error)
}
