package receipt

import (
	"github.com/smallbiznis/coopledger/internal/receipt/repository"
	"github.com/smallbiznis/coopledger/internal/receipt/service"
	"go.uber.org/fx"
)

var Module = fx.Module("receipt.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
