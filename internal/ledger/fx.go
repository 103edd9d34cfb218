package ledger

import (
	"github.com/smallbiznis/coopledger/internal/ledger/repository"
	"github.com/smallbiznis/coopledger/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
