package customer

import (
	"github.com/marginlens/marginlens/internal/customer/repository"
	"github.com/marginlens/marginlens/internal/customer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("customer.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
