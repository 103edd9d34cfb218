package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/coopledger/internal/apperror"
	"github.com/smallbiznis/coopledger/internal/coopcontext"
	"github.com/smallbiznis/coopledger/internal/ledger/domain"
	receiptdomain "github.com/smallbiznis/coopledger/internal/receipt/domain"
	"github.com/smallbiznis/coopledger/internal/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func amount(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestDepositsAndWithdrawalBalance(t *testing.T) {
	kit := testkit.New(t)
	ctx := kit.Context()
	member, accounts := kit.Enroll(t, "Ana")
	savings := accounts[domain.AccountTypeSavings]

	kit.Deposit(t, member.ID, domain.AccountTypeSavings, "100.00")
	kit.Deposit(t, member.ID, domain.AccountTypeSavings, "50.00")

	err := kit.DB.Transaction(func(tx *gorm.DB) error {
		_, err := kit.Ledger.DebitTx(ctx, tx, domain.DebitRequest{
			AccountID: savings.ID,
			Type:      domain.TransactionTypeWithdrawal,
			Amount:    amount("30.00"),
		})
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, "120.00", kit.Balance(t, savings.ID))
	assert.Equal(t, "0.00", kit.Balance(t, accounts[domain.AccountTypeContributions].ID))
}

func TestEnrollOpensThreeAccounts(t *testing.T) {
	kit := testkit.New(t)
	member, accounts := kit.Enroll(t, "Ana")

	assert.Len(t, accounts, 3)
	for _, accountType := range domain.AccountTypes() {
		account, ok := accounts[accountType]
		require.True(t, ok, accountType)
		assert.Equal(t, member.ID, account.MemberID)
		assert.Equal(t, testkit.CooperativeID, account.CooperativeID)
	}
}

func TestAppendTransactionValidation(t *testing.T) {
	kit := testkit.New(t)
	ctx := kit.Context()
	_, accounts := kit.Enroll(t, "Ana")
	savings := accounts[domain.AccountTypeSavings]

	cases := []struct {
		name string
		req  domain.AppendTransactionRequest
		want error
	}{
		{"zero amount", domain.AppendTransactionRequest{AccountID: savings.ID, Type: domain.TransactionTypeDeposit, Amount: decimal.Zero}, domain.ErrInvalidAmount},
		{"negative amount", domain.AppendTransactionRequest{AccountID: savings.ID, Type: domain.TransactionTypeDeposit, Amount: amount("-5")}, domain.ErrInvalidAmount},
		{"sub-cent amount", domain.AppendTransactionRequest{AccountID: savings.ID, Type: domain.TransactionTypeDeposit, Amount: amount("1.005")}, domain.ErrInvalidAmount},
		{"unknown account", domain.AppendTransactionRequest{AccountID: 999, Type: domain.TransactionTypeDeposit, Amount: amount("5")}, domain.ErrInvalidAccount},
		{"withdrawal reserved", domain.AppendTransactionRequest{AccountID: savings.ID, Type: domain.TransactionTypeWithdrawal, Amount: amount("5")}, domain.ErrReservedTransactionType},
		{"liquidation reserved", domain.AppendTransactionRequest{AccountID: savings.ID, Type: domain.TransactionTypeLiquidation, Amount: amount("5")}, domain.ErrReservedTransactionType},
		{"unknown type", domain.AppendTransactionRequest{AccountID: savings.ID, Type: "gift", Amount: amount("5")}, domain.ErrInvalidTransactionType},
		{"pending debit", domain.AppendTransactionRequest{AccountID: savings.ID, Type: domain.TransactionTypeTransferOut, Amount: amount("5"), Pending: true}, domain.ErrPendingDebit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := kit.Ledger.AppendTransaction(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
			assert.True(t, apperror.IsKind(err, apperror.KindValidation))
		})
	}
	assert.Equal(t, int64(0), kit.Count(t, &domain.Transaction{}))
}

func TestCompletedEntryGetsReceiptAndFiscalYear(t *testing.T) {
	kit := testkit.New(t)
	ctx := kit.Context()
	_, accounts := kit.Enroll(t, "Ana")

	txn, err := kit.Ledger.AppendTransaction(ctx, domain.AppendTransactionRequest{
		AccountID: accounts[domain.AccountTypeSurplus].ID,
		Type:      domain.TransactionTypeSurplusDistribution,
		Amount:    amount("12.50"),
		Date:      time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, txn.Status)
	assert.Equal(t, 2024, txn.FiscalYear)
	require.NotNil(t, txn.ReceiptID)

	receipt, err := kit.Receipts.GetByID(ctx, *txn.ReceiptID)
	require.NoError(t, err)
	assert.Equal(t, "2025-0001", receipt.FormattedNumber)
}

func TestTransferOutIsBalanceChecked(t *testing.T) {
	kit := testkit.New(t)
	ctx := kit.Context()
	member, accounts := kit.Enroll(t, "Ana")
	savings := accounts[domain.AccountTypeSavings]
	kit.Deposit(t, member.ID, domain.AccountTypeSavings, "10.00")

	_, err := kit.Ledger.AppendTransaction(ctx, domain.AppendTransactionRequest{
		AccountID: savings.ID,
		Type:      domain.TransactionTypeTransferOut,
		Amount:    amount("10.01"),
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.True(t, apperror.IsKind(err, apperror.KindInsufficientBalance))
	assert.Equal(t, "10.00", kit.Balance(t, savings.ID))

	_, err = kit.Ledger.AppendTransaction(ctx, domain.AppendTransactionRequest{
		AccountID: savings.ID,
		Type:      domain.TransactionTypeTransferOut,
		Amount:    amount("10.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "0.00", kit.Balance(t, savings.ID))
}

func TestDebitTxRollsBackOnInsufficientBalance(t *testing.T) {
	kit := testkit.New(t)
	ctx := kit.Context()
	member, accounts := kit.Enroll(t, "Ana")
	savings := accounts[domain.AccountTypeSavings]
	kit.Deposit(t, member.ID, domain.AccountTypeSavings, "20.00")
	receiptsBefore := kit.Count(t, &receiptdomain.Receipt{})

	err := kit.DB.Transaction(func(tx *gorm.DB) error {
		_, err := kit.Ledger.DebitTx(ctx, tx, domain.DebitRequest{
			AccountID: savings.ID,
			Type:      domain.TransactionTypeWithdrawal,
			Amount:    amount("20.01"),
		})
		return err
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Equal(t, receiptsBefore, kit.Count(t, &receiptdomain.Receipt{}))
	assert.Equal(t, "20.00", kit.Balance(t, savings.ID))
}

func TestPendingEntrySettlement(t *testing.T) {
	kit := testkit.New(t)
	ctx := kit.Context()
	_, accounts := kit.Enroll(t, "Ana")
	savings := accounts[domain.AccountTypeSavings]

	pending, err := kit.Ledger.AppendTransaction(ctx, domain.AppendTransactionRequest{
		AccountID: savings.ID,
		Type:      domain.TransactionTypeDeposit,
		Amount:    amount("40.00"),
		Pending:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, pending.Status)
	assert.Nil(t, pending.ReceiptID)
	assert.Equal(t, "0.00", kit.Balance(t, savings.ID))

	settled, err := kit.Ledger.SettleTransaction(ctx, pending.ID, domain.TransactionStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, settled.Status)
	assert.NotNil(t, settled.ReceiptID)
	assert.Equal(t, "40.00", kit.Balance(t, savings.ID))

	_, err = kit.Ledger.SettleTransaction(ctx, pending.ID, domain.TransactionStatusReversed)
	assert.ErrorIs(t, err, domain.ErrTransactionNotPending)
	assert.True(t, apperror.IsKind(err, apperror.KindConflict))

	_, err = kit.Ledger.SettleTransaction(ctx, pending.ID, domain.TransactionStatusPending)
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestReversedEntryNeverCounts(t *testing.T) {
	kit := testkit.New(t)
	ctx := kit.Context()
	_, accounts := kit.Enroll(t, "Ana")
	savings := accounts[domain.AccountTypeSavings]

	pending, err := kit.Ledger.AppendTransaction(ctx, domain.AppendTransactionRequest{
		AccountID: savings.ID,
		Type:      domain.TransactionTypeAdjustment,
		Amount:    amount("5.00"),
		Pending:   true,
	})
	require.NoError(t, err)

	reversed, err := kit.Ledger.SettleTransaction(ctx, pending.ID, domain.TransactionStatusReversed)
	require.NoError(t, err)
	assert.Nil(t, reversed.ReceiptID)
	assert.Equal(t, "0.00", kit.Balance(t, savings.ID))

	items, err := kit.Ledger.ListTransactions(ctx, savings.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, domain.TransactionStatusReversed, items[0].Status)
}

func TestTransferBetweenOwnAccounts(t *testing.T) {
	kit := testkit.New(t)
	ctx := kit.Context()
	member, accounts := kit.Enroll(t, "Ana")
	other, otherAccounts := kit.Enroll(t, "Ben")
	kit.Deposit(t, member.ID, domain.AccountTypeSavings, "75.00")
	kit.Deposit(t, other.ID, domain.AccountTypeSavings, "5.00")

	result, err := kit.Ledger.Transfer(ctx, domain.TransferRequest{
		FromAccountID: accounts[domain.AccountTypeSavings].ID,
		ToAccountID:   accounts[domain.AccountTypeContributions].ID,
		Amount:        amount("25.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, result.ReceiptID, *result.Out.ReceiptID)
	assert.Equal(t, result.ReceiptID, *result.In.ReceiptID)
	assert.Equal(t, "50.00", kit.Balance(t, accounts[domain.AccountTypeSavings].ID))
	assert.Equal(t, "25.00", kit.Balance(t, accounts[domain.AccountTypeContributions].ID))

	_, err = kit.Ledger.Transfer(ctx, domain.TransferRequest{
		FromAccountID: accounts[domain.AccountTypeSavings].ID,
		ToAccountID:   otherAccounts[domain.AccountTypeSavings].ID,
		Amount:        amount("1.00"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransfer)

	_, err = kit.Ledger.Transfer(ctx, domain.TransferRequest{
		FromAccountID: accounts[domain.AccountTypeSavings].ID,
		ToAccountID:   accounts[domain.AccountTypeSurplus].ID,
		Amount:        amount("50.01"),
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Equal(t, "0.00", kit.Balance(t, accounts[domain.AccountTypeSurplus].ID))
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	assertDebitsNeverOverdraw(t, testkit.New(t))
}

func TestConcurrentDebitsNeverOverdrawAcrossConnections(t *testing.T) {
	assertDebitsNeverOverdraw(t, testkit.NewShared(t, 8))
}

func assertDebitsNeverOverdraw(t *testing.T, kit *testkit.Kit) {
	t.Helper()
	ctx := kit.Context()
	member, accounts := kit.Enroll(t, "Ana")
	savings := accounts[domain.AccountTypeSavings]
	kit.Deposit(t, member.ID, domain.AccountTypeSavings, "100.00")

	const callers = 8
	results := make([]error, callers)
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			_, results[i] = kit.Ledger.AppendTransaction(ctx, domain.AppendTransactionRequest{
				AccountID: savings.ID,
				Type:      domain.TransactionTypeTransferOut,
				Amount:    amount("30.00"),
			})
			return nil
		})
	}
	require.NoError(t, g.Wait())

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	}
	assert.Equal(t, 3, succeeded)
	assert.Equal(t, "10.00", kit.Balance(t, savings.ID))
}

func TestAccountsOfOtherCooperativesAreHidden(t *testing.T) {
	kit := testkit.New(t)
	_, accounts := kit.Enroll(t, "Ana")
	foreign := coopcontext.WithCooperativeID(context.Background(), 99)

	_, err := kit.Ledger.GetAccount(foreign, accounts[domain.AccountTypeSavings].ID)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = kit.Ledger.AppendTransaction(foreign, domain.AppendTransactionRequest{
		AccountID: accounts[domain.AccountTypeSavings].ID,
		Type:      domain.TransactionTypeDeposit,
		Amount:    amount("1.00"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAccount)
}

func TestGetBalanceUnknownAccount(t *testing.T) {
	kit := testkit.New(t)
	_, err := kit.Ledger.GetBalance(kit.Context(), 12345)
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}

func TestCreateDepositRejectsUnknownAccountType(t *testing.T) {
	kit := testkit.New(t)
	member, _ := kit.Enroll(t, "Ana")

	_, err := kit.Ledger.CreateDeposit(kit.Context(), domain.CreateDepositRequest{
		MemberID:    member.ID,
		AccountType: "checking",
		Amount:      amount("1.00"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAccountType)

	_, err = kit.Ledger.CreateDeposit(kit.Context(), domain.CreateDepositRequest{
		MemberID:    12345,
		AccountType: domain.AccountTypeSavings,
		Amount:      amount("1.00"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAccount)
}
