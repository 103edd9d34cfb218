package cli

import (
	"github.com/pterm/pterm"
	withdrawaldomain "github.com/smallbiznis/coopledger/internal/withdrawal/domain"
	"github.com/spf13/cobra"
)

func newWithdrawalCmd(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdrawal",
		Short: "Submit and review withdrawal requests",
	}
	cmd.AddCommand(newWithdrawalSubmitCmd(r))
	cmd.AddCommand(newWithdrawalApproveCmd(r))
	cmd.AddCommand(newWithdrawalRejectCmd(r))
	cmd.AddCommand(newWithdrawalPendingCmd(r))
	return cmd
}

func newWithdrawalSubmitCmd(r *runner) *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   "submit <member-id> <account-id> <amount>",
		Short: "Submit a withdrawal request",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			memberID, err := parseID("member id", args[0])
			if err != nil {
				return err
			}
			accountID, err := parseID("account id", args[1])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			ctx, app, err := r.open(cmd)
			if err != nil {
				return err
			}

			req, err := app.Withdrawals.Submit(ctx, withdrawaldomain.SubmitRequest{
				MemberID:  memberID,
				AccountID: accountID,
				Amount:    amount,
				Notes:     notes,
			})
			if err != nil {
				return err
			}
			pterm.Success.Printf("Request %s for %s is pending review\n", req.ID, money(req.RequestedAmount))
			return nil
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "reason given by the member")
	return cmd
}

func newWithdrawalApproveCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <request-id>",
		Short: "Approve a pending request and post the withdrawal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requestID, err := parseID("request id", args[0])
			if err != nil {
				return err
			}
			ctx, app, err := r.open(cmd)
			if err != nil {
				return err
			}

			req, err := app.Withdrawals.Approve(ctx, requestID, r.flags.Actor)
			if err != nil {
				return err
			}
			number := "-"
			if req.ReceiptID != nil {
				receipt, err := app.Receipts.GetByID(ctx, *req.ReceiptID)
				if err != nil {
					return err
				}
				number = receipt.FormattedNumber
			}
			pterm.Success.Printf("Approved %s, receipt %s\n", money(req.RequestedAmount), number)
			return nil
		},
	}
}

func newWithdrawalRejectCmd(r *runner) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <request-id>",
		Short: "Reject a pending request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requestID, err := parseID("request id", args[0])
			if err != nil {
				return err
			}
			ctx, app, err := r.open(cmd)
			if err != nil {
				return err
			}
			req, err := app.Withdrawals.Reject(ctx, requestID, r.flags.Actor, reason)
			if err != nil {
				return err
			}
			pterm.Success.Printf("Request %s rejected\n", req.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason")
	return cmd
}

func newWithdrawalPendingCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List requests awaiting review",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, app, err := r.open(cmd)
			if err != nil {
				return err
			}
			requests, err := app.Withdrawals.ListPending(ctx, 0)
			if err != nil {
				return err
			}

			data := pterm.TableData{{"Request", "Member", "Account", "Amount", "Submitted", "Notes"}}
			for _, req := range requests {
				data = append(data, []string{
					req.ID.String(),
					req.MemberID.String(),
					req.AccountID.String(),
					money(req.RequestedAmount),
					req.CreatedAt.Format(dateLayout),
					req.Notes,
				})
			}
			if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
				return err
			}
			pterm.Info.Printf("Total: %d pending\n", len(requests))
			return nil
		},
	}
}
