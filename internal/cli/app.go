package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coopledger/internal/audit"
	auditdomain "github.com/smallbiznis/coopledger/internal/audit/domain"
	"github.com/smallbiznis/coopledger/internal/clock"
	"github.com/smallbiznis/coopledger/internal/config"
	"github.com/smallbiznis/coopledger/internal/ledger"
	ledgerdomain "github.com/smallbiznis/coopledger/internal/ledger/domain"
	"github.com/smallbiznis/coopledger/internal/liquidation"
	liquidationdomain "github.com/smallbiznis/coopledger/internal/liquidation/domain"
	"github.com/smallbiznis/coopledger/internal/member"
	memberdomain "github.com/smallbiznis/coopledger/internal/member/domain"
	"github.com/smallbiznis/coopledger/internal/migration"
	"github.com/smallbiznis/coopledger/internal/observability"
	"github.com/smallbiznis/coopledger/internal/receipt"
	receiptdomain "github.com/smallbiznis/coopledger/internal/receipt/domain"
	"github.com/smallbiznis/coopledger/internal/withdrawal"
	withdrawaldomain "github.com/smallbiznis/coopledger/internal/withdrawal/domain"
	"github.com/smallbiznis/coopledger/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
)

// App is the set of services a command runs against.
type App struct {
	Config       config.Config
	DB           *gorm.DB
	Clock        clock.Clock
	Ledger       ledgerdomain.Service
	Members      memberdomain.Service
	Withdrawals  withdrawaldomain.Service
	Liquidations liquidationdomain.Service
	Receipts     receiptdomain.Service
	Audit        auditdomain.Service
}

// Loader builds an App and returns a function releasing it.
type Loader func(ctx context.Context) (*App, func(), error)

const startTimeout = 30 * time.Second

// NewFxLoader starts the dependency graph, migrating the schema on the way.
func NewFxLoader() Loader {
	return func(ctx context.Context) (*App, func(), error) {
		app := &App{}
		fxApp := fx.New(
			fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
				l := &fxevent.ZapLogger{Logger: log.Named("fx")}
				l.UseLogLevel(zapcore.DebugLevel)
				return l
			}),
			config.Module,
			observability.Module,
			fx.Provide(RegisterSnowflake),
			db.Module,
			clock.Module,
			migration.Module,

			audit.Module,
			receipt.Module,
			ledger.Module,
			member.Module,
			withdrawal.Module,
			liquidation.Module,

			fx.Populate(
				&app.Config,
				&app.DB,
				&app.Clock,
				&app.Ledger,
				&app.Members,
				&app.Withdrawals,
				&app.Liquidations,
				&app.Receipts,
				&app.Audit,
			),
		)

		startCtx, cancel := context.WithTimeout(ctx, startTimeout)
		defer cancel()
		if err := fxApp.Start(startCtx); err != nil {
			return nil, nil, fmt.Errorf("start application: %w", err)
		}

		stop := func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), startTimeout)
			defer cancel()
			_ = fxApp.Stop(stopCtx)
		}
		return app, stop, nil
	}
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
