package cli

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/pterm/pterm"
	"github.com/smallbiznis/coopledger/internal/apperror"
	"github.com/smallbiznis/coopledger/internal/config"
	ledgerdomain "github.com/smallbiznis/coopledger/internal/ledger/domain"
	liquidationdomain "github.com/smallbiznis/coopledger/internal/liquidation/domain"
	liquidationrepo "github.com/smallbiznis/coopledger/internal/liquidation/repository"
	liquidationservice "github.com/smallbiznis/coopledger/internal/liquidation/service"
	memberdomain "github.com/smallbiznis/coopledger/internal/member/domain"
	"github.com/smallbiznis/coopledger/internal/testkit"
	withdrawaldomain "github.com/smallbiznis/coopledger/internal/withdrawal/domain"
	withdrawalrepo "github.com/smallbiznis/coopledger/internal/withdrawal/repository"
	withdrawalservice "github.com/smallbiznis/coopledger/internal/withdrawal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	pterm.DisableOutput()
	os.Exit(m.Run())
}

func newTestApp(kit *testkit.Kit) *App {
	return &App{
		Config:  config.Config{DefaultCooperativeID: testkit.CooperativeID},
		DB:      kit.DB,
		Clock:   kit.Clock,
		Ledger:  kit.Ledger,
		Members: kit.Members,
		Withdrawals: withdrawalservice.New(withdrawalservice.Params{
			DB: kit.DB, Log: kit.Log, GenID: kit.GenID, Repo: withdrawalrepo.Provide(),
			Ledger: kit.Ledger, Members: kit.Members, AuditSvc: kit.Audit, Clock: kit.Clock, Policy: kit.Policy,
		}),
		Liquidations: liquidationservice.New(liquidationservice.Params{
			DB: kit.DB, Log: kit.Log, GenID: kit.GenID, Repo: liquidationrepo.Provide(),
			Ledger: kit.Ledger, Receipts: kit.Receipts, Members: kit.Members, AuditSvc: kit.Audit,
			Clock: kit.Clock, Policy: kit.Policy,
		}),
		Receipts: kit.Receipts,
		Audit:    kit.Audit,
	}
}

func run(t *testing.T, app *App, args ...string) error {
	t.Helper()
	cmd, r := newRootCmd(func(context.Context) (*App, func(), error) {
		return app, func() {}, nil
	})
	defer r.close()
	cmd.SetArgs(append(args, "--actor", "treasurer"))
	return cmd.ExecuteContext(context.Background())
}

func TestOperatorWorkflow(t *testing.T) {
	kit := testkit.New(t)
	app := newTestApp(kit)

	require.NoError(t, run(t, app, "member", "enroll", "Ana", "--email", "ana@example.org"))

	members, err := kit.Members.List(kit.Context(), memberdomain.ListMemberRequest{})
	require.NoError(t, err)
	require.Len(t, members, 1)
	ana := members[0]

	accounts, err := kit.Ledger.ListMemberAccounts(kit.Context(), ana.ID)
	require.NoError(t, err)
	var savings ledgerdomain.Account
	for _, account := range accounts {
		if account.AccountType == ledgerdomain.AccountTypeSavings {
			savings = account
		}
	}

	require.NoError(t, run(t, app, "deposit", ana.ID.String(), "100.00"))
	require.NoError(t, run(t, app, "deposit", ana.ID.String(), "25.50", "--account", "contributions"))
	assert.Equal(t, "100.00", kit.Balance(t, savings.ID))

	require.NoError(t, run(t, app, "balance", savings.ID.String()))
	require.NoError(t, run(t, app, "summary", "--fiscal-year", "2024"))
	require.NoError(t, run(t, app, "member", "list", "--active"))
	require.NoError(t, run(t, app, "member", "show", ana.ID.String()))

	require.NoError(t, run(t, app, "withdrawal", "submit", ana.ID.String(), savings.ID.String(), "40.00"))
	pending, err := app.Withdrawals.ListPending(kit.Context(), 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NoError(t, run(t, app, "withdrawal", "pending"))
	require.NoError(t, run(t, app, "withdrawal", "approve", pending[0].ID.String()))

	approved, err := app.Withdrawals.Get(kit.Context(), pending[0].ID)
	require.NoError(t, err)
	assert.Equal(t, withdrawaldomain.StatusApproved, approved.Status)
	require.NotNil(t, approved.ReviewedBy)
	assert.Equal(t, "treasurer", *approved.ReviewedBy)
	assert.Equal(t, "60.00", kit.Balance(t, savings.ID))

	require.NoError(t, run(t, app, "liquidation", "preview", ana.ID.String()))
	assert.Equal(t, "60.00", kit.Balance(t, savings.ID))

	require.NoError(t, run(t, app, "liquidation", "execute", ana.ID.String(), "--type", "exit"))
	assert.Equal(t, "0.00", kit.Balance(t, savings.ID))

	history, err := app.Liquidations.ListByMember(kit.Context(), ana.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, liquidationdomain.TypeExit, history[0].Type)
	require.NotNil(t, history[0].ExecutedBy)
	assert.Equal(t, "treasurer", *history[0].ExecutedBy)
	require.NoError(t, run(t, app, "liquidation", "history", ana.ID.String()))

	err = run(t, app, "liquidation", "execute", ana.ID.String(), "--type", "exit")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 liquidations failed")

	require.NoError(t, run(t, app, "member", "reactivate", ana.ID.String()))
	reactivated, err := kit.Members.GetByID(kit.Context(), ana.ID)
	require.NoError(t, err)
	assert.True(t, reactivated.Active())
}

func TestCommandErrorsCarryKinds(t *testing.T) {
	kit := testkit.New(t)
	app := newTestApp(kit)
	ana, accounts := kit.Enroll(t, "Ana")
	savings := accounts[ledgerdomain.AccountTypeSavings]

	err := run(t, app, "withdrawal", "submit", ana.ID.String(), savings.ID.String(), "10.00")
	require.Error(t, err)
	assert.Equal(t, 5, ExitCode(err))

	err = run(t, app, "deposit", ana.ID.String(), "0")
	require.Error(t, err)
	assert.Equal(t, 2, ExitCode(err))

	err = run(t, app, "balance", "12345")
	require.Error(t, err)
	assert.Equal(t, 3, ExitCode(err))

	err = run(t, app, "deposit", ana.ID.String(), "ten")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid amount")
}

func TestReceiptNext(t *testing.T) {
	kit := testkit.New(t)
	app := newTestApp(kit)

	require.NoError(t, run(t, app, "receipt", "next"))
	require.NoError(t, run(t, app, "receipt", "next", "--cooperative", "2"))

	number, err := kit.Receipts.GenerateReceiptNumber(kit.Context(), testkit.CooperativeID)
	require.NoError(t, err)
	assert.Equal(t, "2025-0002", number)
}

func TestFiscalYearCommandNeedsNoDatabase(t *testing.T) {
	cmd, r := newRootCmd(func(context.Context) (*App, func(), error) {
		return nil, nil, errors.New("database unavailable")
	})
	defer r.close()

	cmd.SetArgs([]string{"fiscal-year", "2025-09-30"})
	require.NoError(t, cmd.Execute())

	cmd.SetArgs([]string{"fiscal-year", "30/09/2025"})
	require.Error(t, cmd.Execute())
}

func TestParseHelpers(t *testing.T) {
	ids, err := parseIDs("member id", []string{"11,12", "13", " "})
	require.NoError(t, err)
	require.Len(t, ids, 3)
	assert.Equal(t, int64(12), ids[1].Int64())

	_, err = parseID("member id", "-4")
	assert.Error(t, err)

	date, err := parseDate("2024-10-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC), date)

	empty, err := parseDate("")
	require.NoError(t, err)
	assert.True(t, empty.IsZero())

	assert.Equal(t, "2024/25", fiscalLabel(2024))
	assert.Equal(t, "2099/00", fiscalLabel(2099))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
	assert.Equal(t, 3, ExitCode(apperror.NotFound("member_not_found")))
	assert.Equal(t, 4, ExitCode(apperror.Conflict("not_pending")))
}
