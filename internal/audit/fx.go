package audit

import (
	"github.com/smallbiznis/coopledger/internal/audit/repository"
	"github.com/smallbiznis/coopledger/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
