package cli

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"
	ledgerdomain "github.com/smallbiznis/coopledger/internal/ledger/domain"
)

func printReceipt(ctx context.Context, app *App, title string, txn ledgerdomain.Transaction) error {
	number := "-"
	if txn.ReceiptID != nil {
		receipt, err := app.Receipts.GetByID(ctx, *txn.ReceiptID)
		if err != nil {
			return err
		}
		number = receipt.FormattedNumber
	}

	pterm.Success.Println(title)
	return pterm.DefaultTable.WithData(pterm.TableData{
		{"Transaction", txn.ID.String()},
		{"Type", string(txn.TransactionType)},
		{"Amount", money(txn.Amount)},
		{"Date", txn.TransactionDate.Format(dateLayout)},
		{"Fiscal year", fiscalLabel(txn.FiscalYear)},
		{"Receipt", number},
	}).Render()
}

// fiscalLabel renders fiscal year 2024 as "2024/25".
func fiscalLabel(year int) string {
	return fmt.Sprintf("%d/%02d", year, (year+1)%100)
}
