package cli

import (
	"github.com/pterm/pterm"
	"github.com/smallbiznis/coopledger/internal/coopcontext"
	"github.com/smallbiznis/coopledger/internal/fiscal"
	"github.com/spf13/cobra"
)

func newReceiptCmd(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "receipt",
		Short: "Receipt numbering",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "next",
		Short: "Issue the next receipt number for the current year",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, app, err := r.open(cmd)
			if err != nil {
				return err
			}
			cooperativeID, _ := coopcontext.CooperativeIDFromContext(ctx)
			number, err := app.Receipts.GenerateReceiptNumber(ctx, cooperativeID)
			if err != nil {
				return err
			}
			pterm.Println(number)
			return nil
		},
	})
	return cmd
}

func newFiscalYearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fiscal-year [YYYY-MM-DD]",
		Short: "Print the fiscal year of a date (defaults to today)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			at := nowUTC()
			if len(args) == 1 {
				parsed, err := parseDate(args[0])
				if err != nil {
					return err
				}
				at = parsed
			}
			year := fiscal.Year(at)
			start, end := fiscal.Bounds(year)
			pterm.Info.Printf("%s is in fiscal year %s (%s to %s)\n",
				at.Format(dateLayout), fiscalLabel(year),
				start.Format(dateLayout), end.AddDate(0, 0, -1).Format(dateLayout))
			return nil
		},
	}
}
