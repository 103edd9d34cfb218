package cli

import (
	"strings"

	"github.com/pterm/pterm"
	ledgerdomain "github.com/smallbiznis/coopledger/internal/ledger/domain"
	"github.com/spf13/cobra"
)

type depositFlags struct {
	AccountType string
	Date        string
	Note        string
}

func newDepositCmd(r *runner) *cobra.Command {
	flags := &depositFlags{}
	cmd := &cobra.Command{
		Use:   "deposit <member-id> <amount>",
		Short: "Record a completed deposit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			memberID, err := parseID("member id", args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			date, err := parseDate(flags.Date)
			if err != nil {
				return err
			}
			ctx, app, err := r.open(cmd)
			if err != nil {
				return err
			}

			txn, err := app.Ledger.CreateDeposit(ctx, ledgerdomain.CreateDepositRequest{
				MemberID:    memberID,
				AccountType: ledgerdomain.AccountType(strings.ToLower(flags.AccountType)),
				Amount:      amount,
				Date:        date,
				Note:        flags.Note,
			})
			if err != nil {
				return err
			}
			return printReceipt(ctx, app, "Deposit recorded", txn)
		},
	}
	cmd.Flags().StringVarP(&flags.AccountType, "account", "a", string(ledgerdomain.AccountTypeSavings), "account type (savings, contributions, surplus)")
	cmd.Flags().StringVar(&flags.Date, "date", "", "transaction date (YYYY-MM-DD, defaults to today)")
	cmd.Flags().StringVar(&flags.Note, "note", "", "free text note")
	return cmd
}

func newBalanceCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <account-id>",
		Short: "Show the balance of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := parseID("account id", args[0])
			if err != nil {
				return err
			}
			ctx, app, err := r.open(cmd)
			if err != nil {
				return err
			}
			account, err := app.Ledger.GetAccount(ctx, accountID)
			if err != nil {
				return err
			}
			balance, err := app.Ledger.GetBalance(ctx, accountID)
			if err != nil {
				return err
			}
			pterm.Info.Printf("%s %s: %s\n", account.MemberID, account.AccountType, money(balance))
			return nil
		},
	}
}

type appendFlags struct {
	Type    string
	Date    string
	Note    string
	Pending bool
}

func newTransactionCmd(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transaction",
		Aliases: []string{"tx"},
		Short:   "Work with ledger transactions",
	}
	cmd.AddCommand(newTransactionAppendCmd(r))
	cmd.AddCommand(newTransactionListCmd(r))
	cmd.AddCommand(newTransactionSettleCmd(r))
	return cmd
}

func newTransactionAppendCmd(r *runner) *cobra.Command {
	flags := &appendFlags{}
	cmd := &cobra.Command{
		Use:   "append <account-id> <amount>",
		Short: "Append a credit entry (deposit, adjustment, surplus_distribution)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := parseID("account id", args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			date, err := parseDate(flags.Date)
			if err != nil {
				return err
			}
			ctx, app, err := r.open(cmd)
			if err != nil {
				return err
			}

			txn, err := app.Ledger.AppendTransaction(ctx, ledgerdomain.AppendTransactionRequest{
				AccountID: accountID,
				Type:      ledgerdomain.TransactionType(strings.ToLower(flags.Type)),
				Amount:    amount,
				Date:      date,
				Note:      flags.Note,
				Pending:   flags.Pending,
			})
			if err != nil {
				return err
			}
			if txn.Status == ledgerdomain.TransactionStatusPending {
				pterm.Success.Printf("Pending transaction %s recorded\n", txn.ID)
				return nil
			}
			return printReceipt(ctx, app, "Transaction recorded", txn)
		},
	}
	cmd.Flags().StringVarP(&flags.Type, "type", "t", string(ledgerdomain.TransactionTypeDeposit), "transaction type")
	cmd.Flags().StringVar(&flags.Date, "date", "", "transaction date (YYYY-MM-DD, defaults to today)")
	cmd.Flags().StringVar(&flags.Note, "note", "", "free text note")
	cmd.Flags().BoolVar(&flags.Pending, "pending", false, "record as pending")
	return cmd
}

func newTransactionListCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "list <account-id>",
		Short: "List the entries of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := parseID("account id", args[0])
			if err != nil {
				return err
			}
			ctx, app, err := r.open(cmd)
			if err != nil {
				return err
			}
			txns, err := app.Ledger.ListTransactions(ctx, accountID)
			if err != nil {
				return err
			}

			data := pterm.TableData{{"ID", "Date", "FY", "Type", "Amount", "Status", "Note"}}
			for _, txn := range txns {
				amount := money(txn.SignedAmount())
				if txn.TransactionType.IsDebit() {
					amount = pterm.Red(amount)
				} else {
					amount = pterm.Green(amount)
				}
				data = append(data, []string{
					txn.ID.String(),
					txn.TransactionDate.Format(dateLayout),
					fiscalLabel(txn.FiscalYear),
					string(txn.TransactionType),
					amount,
					string(txn.Status),
					txn.Note,
				})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}
}

func newTransactionSettleCmd(r *runner) *cobra.Command {
	var reverse bool
	cmd := &cobra.Command{
		Use:   "settle <transaction-id>",
		Short: "Complete or reverse a pending transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			txnID, err := parseID("transaction id", args[0])
			if err != nil {
				return err
			}
			ctx, app, err := r.open(cmd)
			if err != nil {
				return err
			}
			status := ledgerdomain.TransactionStatusCompleted
			if reverse {
				status = ledgerdomain.TransactionStatusReversed
			}
			txn, err := app.Ledger.SettleTransaction(ctx, txnID, status)
			if err != nil {
				return err
			}
			pterm.Success.Printf("Transaction %s is %s\n", txn.ID, txn.Status)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reverse, "reverse", false, "reverse instead of completing")
	return cmd
}

type transferFlags struct {
	Date string
	Note string
}

func newTransferCmd(r *runner) *cobra.Command {
	flags := &transferFlags{}
	cmd := &cobra.Command{
		Use:   "transfer <from-account-id> <to-account-id> <amount>",
		Short: "Move money between two accounts of the cooperative",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseID("account id", args[0])
			if err != nil {
				return err
			}
			to, err := parseID("account id", args[1])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			date, err := parseDate(flags.Date)
			if err != nil {
				return err
			}
			ctx, app, err := r.open(cmd)
			if err != nil {
				return err
			}

			result, err := app.Ledger.Transfer(ctx, ledgerdomain.TransferRequest{
				FromAccountID: from,
				ToAccountID:   to,
				Amount:        amount,
				Date:          date,
				Note:          flags.Note,
			})
			if err != nil {
				return err
			}
			receipt, err := app.Receipts.GetByID(ctx, result.ReceiptID)
			if err != nil {
				return err
			}
			pterm.Success.Printf("Transferred %s, receipt %s\n", money(result.Out.Amount), receipt.FormattedNumber)
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.Date, "date", "", "transaction date (YYYY-MM-DD, defaults to today)")
	cmd.Flags().StringVar(&flags.Note, "note", "", "free text note")
	return cmd
}

type summaryFlags struct {
	ActiveOnly bool
	Search     string
	FiscalYear int
}

func newSummaryCmd(r *runner) *cobra.Command {
	flags := &summaryFlags{}
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Per member balances and cooperative totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, app, err := r.open(cmd)
			if err != nil {
				return err
			}

			filter := ledgerdomain.SavingsSummaryFilter{
				ActiveOnly: flags.ActiveOnly,
				Search:     flags.Search,
			}
			if cmd.Flags().Changed("fiscal-year") {
				year := flags.FiscalYear
				filter.FiscalYear = &year
			}
			summary, err := app.Ledger.GetSavingsSummary(ctx, filter)
			if err != nil {
				return err
			}

			headers := []string{"Member", "Name", "Savings", "Contributions", "Surplus", "Total"}
			if summary.FiscalYear != nil {
				headers = append(headers, "FY"+fiscalLabel(*summary.FiscalYear)+" contributions")
			}
			data := pterm.TableData{headers}
			for _, m := range summary.Members {
				row := []string{m.MemberID.String(), m.Name, money(m.Savings), money(m.Contributions), money(m.Surplus), money(m.Total)}
				if m.FiscalYearContributions != nil {
					row = append(row, money(*m.FiscalYearContributions))
				}
				data = append(data, row)
			}
			totals := summary.Summary
			footer := []string{pterm.Bold.Sprint("Total"), pterm.Bold.Sprintf("%d members", totals.MemberCount),
				money(totals.Savings), money(totals.Contributions), money(totals.Surplus), money(totals.Total)}
			if totals.FiscalYearContributions != nil {
				footer = append(footer, money(*totals.FiscalYearContributions))
			}
			data = append(data, footer)

			pterm.DefaultSection.Println("Savings summary")
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}
	cmd.Flags().BoolVar(&flags.ActiveOnly, "active", false, "only active members")
	cmd.Flags().StringVar(&flags.Search, "search", "", "filter by member name")
	cmd.Flags().IntVar(&flags.FiscalYear, "fiscal-year", 0, "include contributions made in this fiscal year")
	return cmd
}
