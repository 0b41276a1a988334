package sensor

import (
	"github.com/smallbiznis/irriflow/internal/sensor/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("sensor.store",
	fx.Provide(repository.Provide),
)
