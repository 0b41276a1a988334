package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	pumpdomain "github.com/smallbiznis/irriflow/internal/pump/domain"
	"github.com/smallbiznis/irriflow/pkg/repository"
)

type repo struct{}

func Provide() pumpdomain.Repository {
	return &repo{}
}

func store(db *gorm.DB) repository.Repository[pumpdomain.Pump] {
	return repository.ProvideStore[pumpdomain.Pump](db)
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, pump *pumpdomain.Pump) error {
	return store(db).Create(ctx, pump)
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, pump *pumpdomain.Pump) error {
	return store(db).Update(ctx, int64(pump.ID), map[string]any{
		"name":          pump.Name,
		"location":      pump.Location,
		"description":   pump.Description,
		"active":        pump.Active,
		"relay_pin":     pump.RelayPin,
		"max_power_kwh": pump.MaxPowerKwh,
		"updated_at":    pump.UpdatedAt,
	})
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*pumpdomain.Pump, error) {
	return store(db).FindOne(ctx, &pumpdomain.Pump{ID: id})
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]pumpdomain.Pump, error) {
	pumps, err := store(db).Find(ctx, &pumpdomain.Pump{}, repository.WithOrder("created_at ASC"))
	if err != nil {
		return nil, err
	}
	out := make([]pumpdomain.Pump, 0, len(pumps))
	for _, p := range pumps {
		out = append(out, *p)
	}
	return out, nil
}
