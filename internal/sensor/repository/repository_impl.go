package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	sensordomain "github.com/smallbiznis/irriflow/internal/sensor/domain"
	"github.com/smallbiznis/irriflow/pkg/repository"
)

type repo struct{}

func Provide() sensordomain.Repository {
	return &repo{}
}

func store(db *gorm.DB) repository.Repository[sensordomain.SensorReading] {
	return repository.ProvideStore[sensordomain.SensorReading](db)
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, reading *sensordomain.SensorReading) error {
	return store(db).Create(ctx, reading)
}

func (r *repo) ListByPump(ctx context.Context, db *gorm.DB, pumpID snowflake.ID, limit int) ([]sensordomain.SensorReading, error) {
	if limit <= 0 {
		limit = 100
	}
	readings, err := store(db).Find(ctx, &sensordomain.SensorReading{PumpID: pumpID},
		repository.WithOrder("recorded_at DESC"),
		repository.WithLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	out := make([]sensordomain.SensorReading, 0, len(readings))
	for _, reading := range readings {
		out = append(out, *reading)
	}
	return out, nil
}
