package event

import (
	"github.com/marginlens/marginlens/internal/event/repository"
	"github.com/marginlens/marginlens/internal/event/service"
	"go.uber.org/fx"
)

var Module = fx.Module("event.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
