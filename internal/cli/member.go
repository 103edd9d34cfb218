package cli

import (
	"fmt"

	"github.com/pterm/pterm"
	memberdomain "github.com/smallbiznis/coopledger/internal/member/domain"
	"github.com/spf13/cobra"
)

func newMemberCmd(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage cooperative members",
	}
	cmd.AddCommand(newMemberEnrollCmd(r))
	cmd.AddCommand(newMemberListCmd(r))
	cmd.AddCommand(newMemberShowCmd(r))
	cmd.AddCommand(newMemberReactivateCmd(r))
	return cmd
}

type enrollFlags struct {
	Email    string
	JoinedAt string
}

func newMemberEnrollCmd(r *runner) *cobra.Command {
	flags := &enrollFlags{}
	cmd := &cobra.Command{
		Use:   "enroll <name>",
		Short: "Enroll a member and open their accounts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			joinedAt, err := parseDate(flags.JoinedAt)
			if err != nil {
				return err
			}
			ctx, app, err := r.open(cmd)
			if err != nil {
				return err
			}

			result, err := app.Members.Enroll(ctx, memberdomain.EnrollRequest{
				Name:     args[0],
				Email:    flags.Email,
				JoinedAt: joinedAt,
			})
			if err != nil {
				return err
			}

			pterm.Success.Printf("Enrolled %s (%s)\n", result.Member.Name, result.Member.ID)
			data := pterm.TableData{{"Account", "Type"}}
			for _, account := range result.Accounts {
				data = append(data, []string{account.ID.String(), string(account.AccountType)})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}
	cmd.Flags().StringVar(&flags.Email, "email", "", "contact email")
	cmd.Flags().StringVar(&flags.JoinedAt, "joined", "", "join date (YYYY-MM-DD, defaults to today)")
	return cmd
}

type memberListFlags struct {
	ActiveOnly bool
	Search     string
}

func newMemberListCmd(r *runner) *cobra.Command {
	flags := &memberListFlags{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List members",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, app, err := r.open(cmd)
			if err != nil {
				return err
			}
			members, err := app.Members.List(ctx, memberdomain.ListMemberRequest{
				ActiveOnly: flags.ActiveOnly,
				Search:     flags.Search,
			})
			if err != nil {
				return err
			}

			data := pterm.TableData{{"ID", "Name", "Status", "Joined"}}
			for _, m := range members {
				status := pterm.Green(string(m.Status))
				if !m.Active() {
					status = pterm.Gray(string(m.Status))
				}
				data = append(data, []string{m.ID.String(), m.Name, status, m.JoinedAt.Format(dateLayout)})
			}
			pterm.DefaultSection.Println("Members")
			if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
				return err
			}
			pterm.Info.Printf("Total: %d members\n", len(members))
			return nil
		},
	}
	cmd.Flags().BoolVar(&flags.ActiveOnly, "active", false, "only active members")
	cmd.Flags().StringVar(&flags.Search, "search", "", "filter by name")
	return cmd
}

func newMemberShowCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "show <member-id>",
		Short: "Show a member with account balances",
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

			m, err := app.Members.GetByID(ctx, memberID)
			if err != nil {
				return err
			}
			accounts, err := app.Ledger.ListMemberAccounts(ctx, memberID)
			if err != nil {
				return err
			}

			pterm.DefaultSection.Printf("%s (%s)\n", m.Name, m.Status)
			data := pterm.TableData{{"Account", "Type", "Balance"}}
			for _, account := range accounts {
				balance, err := app.Ledger.GetBalance(ctx, account.ID)
				if err != nil {
					return err
				}
				data = append(data, []string{account.ID.String(), string(account.AccountType), money(balance)})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}
}

func newMemberReactivateCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "reactivate <member-id>",
		Short: "Reactivate an inactive member",
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
			m, err := app.Members.Reactivate(ctx, memberID)
			if err != nil {
				return fmt.Errorf("reactivate member: %w", err)
			}
			pterm.Success.Printf("%s is active again\n", m.Name)
			return nil
		},
	}
}
