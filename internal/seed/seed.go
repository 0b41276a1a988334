package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	pumpdomain "github.com/smallbiznis/irriflow/internal/pump/domain"
	tariffdomain "github.com/smallbiznis/irriflow/internal/tariff/domain"
)

const defaultTariffName = "Standard Irrigation Tariff"

var defaultPumps = []struct {
	name     string
	location string
	relayPin int
}{
	{name: "Pump 1 - North Field", location: "North Field", relayPin: 17},
	{name: "Pump 2 - South Field", location: "South Field", relayPin: 27},
}

// EnsureDefaults seeds a default tariff and two demo pumps so a fresh
// install meters at a sane rate instead of zero.
func EnsureDefaults(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureDefaultTariffTx(ctx, tx, node); err != nil {
			return err
		}
		return ensureDefaultPumpsTx(ctx, tx, node)
	})
}

func ensureDefaultTariffTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var count int64
	if err := tx.WithContext(ctx).Model(&tariffdomain.Tariff{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	tariff := tariffdomain.Tariff{
		ID:            node.Generate(),
		Name:          defaultTariffName,
		Description:   "Default prepaid rate per kWh",
		RatePerKwh:    decimal.RequireFromString("1500.00"),
		Active:        true,
		EffectiveFrom: time.Unix(0, 0).UTC(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return tx.WithContext(ctx).Create(&tariff).Error
}

func ensureDefaultPumpsTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var count int64
	if err := tx.WithContext(ctx).Model(&pumpdomain.Pump{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	for _, p := range defaultPumps {
		pump := pumpdomain.Pump{
			ID:        node.Generate(),
			Name:      p.name,
			Location:  p.location,
			Active:    true,
			RelayPin:  p.relayPin,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.WithContext(ctx).Create(&pump).Error; err != nil {
			return err
		}
	}
	return nil
}
