package aggregate

import (
	"github.com/marginlens/marginlens/internal/aggregate/repository"
	"github.com/marginlens/marginlens/internal/aggregate/service"
	"go.uber.org/fx"
)

var Module = fx.Module("aggregate.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
