package withdrawal

import (
	"github.com/smallbiznis/coopledger/internal/withdrawal/repository"
	"github.com/smallbiznis/coopledger/internal/withdrawal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("withdrawal.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
