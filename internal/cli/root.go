// Package cli is the operator command line for the cooperative ledger.
package cli

import (
	"context"
	"errors"
	"os"
	"strings"
	"unicode"

	"github.com/pterm/pterm"
	"github.com/smallbiznis/coopledger/internal/apperror"
	"github.com/smallbiznis/coopledger/internal/coopcontext"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	CooperativeID int64
	Actor         string
}

// runner carries the shared state of one command invocation.
type runner struct {
	load  Loader
	flags *rootFlags
	app   *App
	stop  func()
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	pterm.Error.Prefix = pterm.Prefix{
		Text:  " ERROR ",
		Style: pterm.NewStyle(pterm.BgLightRed, pterm.FgBlack),
	}

	cmd, r := newRootCmd(NewFxLoader())
	err := cmd.Execute()
	r.close()
	if err != nil {
		pterm.Error.Println(capitalize(err.Error()))
		os.Exit(ExitCode(err))
	}
}

func newRootCmd(load Loader) (*cobra.Command, *runner) {
	r := &runner{load: load, flags: &rootFlags{}}

	rootCmd := &cobra.Command{
		Use:           "coopledger",
		Short:         "Cooperative savings ledger and liquidation engine",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.PersistentFlags().Int64Var(&r.flags.CooperativeID, "cooperative", 0, "cooperative id (defaults to DEFAULT_COOPERATIVE)")
	rootCmd.PersistentFlags().StringVar(&r.flags.Actor, "actor", os.Getenv("USER"), "operator recorded on audit entries")

	rootCmd.AddCommand(newMigrateCmd(r))
	rootCmd.AddCommand(newMemberCmd(r))
	rootCmd.AddCommand(newDepositCmd(r))
	rootCmd.AddCommand(newBalanceCmd(r))
	rootCmd.AddCommand(newTransactionCmd(r))
	rootCmd.AddCommand(newTransferCmd(r))
	rootCmd.AddCommand(newSummaryCmd(r))
	rootCmd.AddCommand(newWithdrawalCmd(r))
	rootCmd.AddCommand(newLiquidationCmd(r))
	rootCmd.AddCommand(newReceiptCmd(r))
	rootCmd.AddCommand(newFiscalYearCmd())

	return rootCmd, r
}

// open loads the application once and returns a context scoped to the
// requested cooperative and actor.
func (r *runner) open(cmd *cobra.Command) (context.Context, *App, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if r.app == nil {
		app, stop, err := r.load(ctx)
		if err != nil {
			return nil, nil, err
		}
		r.app, r.stop = app, stop
	}

	cooperativeID := r.flags.CooperativeID
	if cooperativeID == 0 {
		cooperativeID = r.app.Config.DefaultCooperativeID
	}
	if cooperativeID <= 0 {
		return nil, nil, errors.New("a cooperative id is required")
	}

	ctx = coopcontext.WithCooperativeID(ctx, cooperativeID)
	if actor := strings.TrimSpace(r.flags.Actor); actor != "" {
		ctx = coopcontext.WithActor(ctx, actor)
	}
	return ctx, r.app, nil
}

func (r *runner) close() {
	if r.stop != nil {
		r.stop()
		r.stop = nil
	}
	r.app = nil
}

// ExitCode maps an error kind onto a process exit status.
func ExitCode(err error) int {
	switch apperror.KindOf(err) {
	case "":
		return 0
	case apperror.KindValidation:
		return 2
	case apperror.KindNotFound:
		return 3
	case apperror.KindConflict:
		return 4
	case apperror.KindInsufficientBalance:
		return 5
	default:
		return 1
	}
}

func capitalize(msg string) string {
	if msg == "" {
		return msg
	}
	runes := []rune(msg)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
