package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	billingdomain "github.com/smallbiznis/irriflow/internal/billing/domain"
	"github.com/smallbiznis/irriflow/pkg/repository"
)

type repo struct{}

func Provide() billingdomain.Repository {
	return &repo{}
}

func store(db *gorm.DB) repository.Repository[billingdomain.Billing] {
	return repository.ProvideStore[billingdomain.Billing](db)
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, billing *billingdomain.Billing) error {
	return store(db).Create(ctx, billing)
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*billingdomain.Billing, error) {
	return store(db).FindOne(ctx, &billingdomain.Billing{ID: id})
}

func (r *repo) FindBySession(ctx context.Context, db *gorm.DB, sessionID snowflake.ID) (*billingdomain.Billing, error) {
	return store(db).FindOne(ctx, &billingdomain.Billing{UsageSessionID: sessionID})
}

func (r *repo) List(ctx context.Context, db *gorm.DB, limit int) ([]billingdomain.Billing, error) {
	billings, err := store(db).Find(ctx, &billingdomain.Billing{},
		repository.WithOrder("created_at DESC"),
		repository.WithLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	out := make([]billingdomain.Billing, 0, len(billings))
	for _, b := range billings {
		out = append(out, *b)
	}
	return out, nil
}

func (r *repo) MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, paidAt time.Time, method string) error {
	return store(db).Update(ctx, int64(id), map[string]any{
		"status":         billingdomain.StatusPaid,
		"paid_at":        paidAt,
		"payment_method": method,
		"updated_at":     paidAt,
	})
}
