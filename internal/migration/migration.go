package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	billingdomain "github.com/smallbiznis/irriflow/internal/billing/domain"
	pumpdomain "github.com/smallbiznis/irriflow/internal/pump/domain"
	sensordomain "github.com/smallbiznis/irriflow/internal/sensor/domain"
	sessiondomain "github.com/smallbiznis/irriflow/internal/session/domain"
	tariffdomain "github.com/smallbiznis/irriflow/internal/tariff/domain"
)

// RunMigrations applies the embedded SQL migrations. Postgres only; other
// dialects go through RunAutoMigrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// RunAutoMigrations builds the schema from the gorm models for mysql and
// sqlite deployments, then adds the constraints gorm cannot express. MySQL
// has no partial indexes, so sqlite is the only non-postgres dialect that
// gets the single-active-session guarantee at the schema level.
func RunAutoMigrations(conn *gorm.DB, dbType string) error {
	if err := conn.AutoMigrate(
		&tariffdomain.Tariff{},
		&pumpdomain.Pump{},
		&sessiondomain.UsageSession{},
		&sensordomain.SensorReading{},
		&billingdomain.Billing{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if dbType == "sqlite" {
		err := conn.Exec(
			`CREATE UNIQUE INDEX IF NOT EXISTS ux_usage_sessions_pump_active ON usage_sessions (pump_id) WHERE status = 'active'`,
		).Error
		if err != nil {
			return fmt.Errorf("create active session index: %w", err)
		}
	}
	return nil
}
