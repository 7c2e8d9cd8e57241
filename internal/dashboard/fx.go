package dashboard

import (
	"github.com/marginlens/marginlens/internal/dashboard/repository"
	"github.com/marginlens/marginlens/internal/dashboard/service"
	"go.uber.org/fx"
)

var Module = fx.Module("dashboard.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
