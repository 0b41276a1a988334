package tariff

import (
	"github.com/smallbiznis/irriflow/internal/tariff/repository"
	"github.com/smallbiznis/irriflow/internal/tariff/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tariff.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
