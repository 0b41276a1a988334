package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/smallbiznis/irriflow/internal/config"
	"github.com/smallbiznis/irriflow/internal/seed"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			if err := RunAutoMigrations(conn, cfg.DBType); err != nil {
				return err
			}
		}

		return seed.EnsureDefaults(conn)
	}),
)
