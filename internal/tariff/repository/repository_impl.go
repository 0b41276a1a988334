package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	tariffdomain "github.com/smallbiznis/irriflow/internal/tariff/domain"
	"github.com/smallbiznis/irriflow/pkg/repository"
)

type repo struct{}

func Provide() tariffdomain.Repository {
	return &repo{}
}

func store(db *gorm.DB) repository.Repository[tariffdomain.Tariff] {
	return repository.ProvideStore[tariffdomain.Tariff](db)
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tariff *tariffdomain.Tariff) error {
	return store(db).Create(ctx, tariff)
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, tariff *tariffdomain.Tariff) error {
	return store(db).Update(ctx, int64(tariff.ID), map[string]any{
		"name":            tariff.Name,
		"description":     tariff.Description,
		"rate_per_kwh":    tariff.RatePerKwh,
		"active":          tariff.Active,
		"effective_until": tariff.EffectiveUntil,
		"updated_at":      tariff.UpdatedAt,
	})
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*tariffdomain.Tariff, error) {
	return store(db).FindOne(ctx, &tariffdomain.Tariff{ID: id})
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]tariffdomain.Tariff, error) {
	tariffs, err := store(db).Find(ctx, &tariffdomain.Tariff{},
		repository.WithOrder("effective_from DESC, id DESC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]tariffdomain.Tariff, 0, len(tariffs))
	for _, t := range tariffs {
		out = append(out, *t)
	}
	return out, nil
}

// FindEffective resolves the tariff in force at the given instant. Ties on
// effective_from go to the latest created tariff.
func (r *repo) FindEffective(ctx context.Context, db *gorm.DB, at time.Time) (*tariffdomain.Tariff, error) {
	var tariff tariffdomain.Tariff
	err := db.WithContext(ctx).
		Where("active = ?", true).
		Where("effective_from <= ?", at).
		Where("effective_until IS NULL OR effective_until >= ?", at).
		Order("effective_from DESC, id DESC").
		First(&tariff).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tariff, nil
}
