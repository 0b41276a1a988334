package session

import (
	"github.com/smallbiznis/irriflow/internal/session/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("session.store",
	fx.Provide(repository.Provide),
)
