package cli

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	liquidationdomain "github.com/smallbiznis/coopledger/internal/liquidation/domain"
	"github.com/spf13/cobra"
)

func newLiquidationCmd(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "liquidation",
		Short: "Preview and execute member liquidations",
	}
	cmd.AddCommand(newLiquidationPreviewCmd(r))
	cmd.AddCommand(newLiquidationExecuteCmd(r))
	cmd.AddCommand(newLiquidationHistoryCmd(r))
	return cmd
}

func newLiquidationPreviewCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "preview <member-id>...",
		Short: "Show what a liquidation would pay out, without changing anything",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			memberIDs, err := parseIDs("member id", args)
			if err != nil {
				return err
			}
			ctx, app, err := r.open(cmd)
			if err != nil {
				return err
			}

			data := pterm.TableData{{"Member", "Name", "Savings", "Contributions", "Surplus", "Total", "Last", "Periodic"}}
			for _, memberID := range memberIDs {
				preview, err := app.Liquidations.Preview(ctx, memberID)
				if err != nil {
					data = append(data, []string{memberID.String(), pterm.Red(err.Error()), "", "", "", "", "", ""})
					continue
				}
				row := []string{preview.MemberID.String(), preview.MemberName}
				for _, account := range preview.Accounts {
					row = append(row, money(account.Balance))
				}
				row = append(row, money(preview.Total), optionalYear(preview.LastLiquidationYear), periodicLabel(preview))
				data = append(data, row)
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}
}

type executeFlags struct {
	Type            string
	MemberContinues bool
	Notes           string
}

func newLiquidationExecuteCmd(r *runner) *cobra.Command {
	flags := &executeFlags{}
	cmd := &cobra.Command{
		Use:   "execute <member-id>...",
		Short: "Pay out and zero every account of the given members",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			memberIDs, err := parseIDs("member id", args)
			if err != nil {
				return err
			}
			ctx, app, err := r.open(cmd)
			if err != nil {
				return err
			}

			results, err := app.Liquidations.Execute(ctx, liquidationdomain.ExecuteRequest{
				MemberIDs:       memberIDs,
				Type:            liquidationdomain.Type(flags.Type),
				MemberContinues: flags.MemberContinues,
				Notes:           flags.Notes,
				ExecutedBy:      r.flags.Actor,
			})
			if err != nil {
				return err
			}

			failed := 0
			data := pterm.TableData{{"Member", "Result", "Total", "Receipt"}}
			for _, result := range results {
				if !result.OK() {
					failed++
					data = append(data, []string{result.MemberID.String(), pterm.Red(result.Error), "", ""})
					continue
				}
				receipt, err := app.Receipts.GetByID(ctx, result.Liquidation.ReceiptID)
				if err != nil {
					return err
				}
				data = append(data, []string{
					result.MemberID.String(),
					pterm.Green("liquidated"),
					money(result.Liquidation.TotalAmount),
					receipt.FormattedNumber,
				})
			}
			if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d liquidations failed", failed, len(results))
			}
			pterm.Success.Printf("%d members liquidated\n", len(results))
			return nil
		},
	}
	cmd.Flags().StringVarP(&flags.Type, "type", "t", string(liquidationdomain.TypePeriodic), "liquidation type (periodic, exit)")
	cmd.Flags().BoolVar(&flags.MemberContinues, "continue", false, "keep the member active after a periodic liquidation")
	cmd.Flags().StringVar(&flags.Notes, "notes", "", "notes stored on the liquidation")
	return cmd
}

func newLiquidationHistoryCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "history <member-id>",
		Short: "List past liquidations of a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			memberID, err := parseID("member id", args[0])
			if err != nil {
				return err
			}
			ctx, app, err := r.open(cmd)
			if err != nil {
				return err
			}
			items, err := app.Liquidations.ListByMember(ctx, memberID)
			if err != nil {
				return err
			}

			data := pterm.TableData{{"Fiscal year", "Type", "Total", "Continues", "Executed"}}
			for _, l := range items {
				data = append(data, []string{
					fiscalLabel(l.FiscalYear),
					string(l.Type),
					money(l.TotalAmount),
					strconv.FormatBool(l.MemberContinues),
					l.ExecutedAt.Format(dateLayout),
				})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}
}

func optionalYear(year *int) string {
	if year == nil {
		return "-"
	}
	return fiscalLabel(*year)
}

func periodicLabel(p liquidationdomain.Preview) string {
	switch {
	case p.PeriodicEligible:
		return pterm.Green("eligible")
	case !p.Active:
		return pterm.Gray("inactive")
	case p.LiquidatedThisYear:
		return pterm.Yellow("done this year")
	case p.NextEligibleYear != nil:
		return pterm.Yellow("from " + fiscalLabel(*p.NextEligibleYear))
	}
	return "-"
}
