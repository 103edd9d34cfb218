package liquidation

import (
	"github.com/smallbiznis/coopledger/internal/liquidation/repository"
	"github.com/smallbiznis/coopledger/internal/liquidation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("liquidation.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
