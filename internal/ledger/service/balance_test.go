package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/coopledger/internal/ledger/domain"
	"github.com/stretchr/testify/assert"
)

func entry(t domain.TransactionType, amount string, status domain.TransactionStatus) domain.Transaction {
	return domain.Transaction{
		TransactionType: t,
		Amount:          decimal.RequireFromString(amount),
		Status:          status,
	}
}

func TestSumEntriesSignTable(t *testing.T) {
	entries := []domain.Transaction{
		entry(domain.TransactionTypeDeposit, "100.00", domain.TransactionStatusCompleted),
		entry(domain.TransactionTypeAdjustment, "5.25", domain.TransactionStatusCompleted),
		entry(domain.TransactionTypeTransferIn, "10.00", domain.TransactionStatusCompleted),
		entry(domain.TransactionTypeSurplusDistribution, "4.75", domain.TransactionStatusCompleted),
		entry(domain.TransactionTypeWithdrawal, "20.00", domain.TransactionStatusCompleted),
		entry(domain.TransactionTypeTransferOut, "30.00", domain.TransactionStatusCompleted),
		entry(domain.TransactionTypeLiquidation, "50.00", domain.TransactionStatusCompleted),
	}
	assert.Equal(t, "20.00", SumEntries(entries).StringFixed(2))
}

func TestSumEntriesIgnoresPendingAndReversed(t *testing.T) {
	entries := []domain.Transaction{
		entry(domain.TransactionTypeDeposit, "100.00", domain.TransactionStatusCompleted),
		entry(domain.TransactionTypeDeposit, "999.00", domain.TransactionStatusPending),
		entry(domain.TransactionTypeDeposit, "1.00", domain.TransactionStatusReversed),
	}
	assert.True(t, SumEntries(entries).Equal(decimal.NewFromInt(100)))
}

func TestSumEntriesKeepsCents(t *testing.T) {
	var entries []domain.Transaction
	for i := 0; i < 10; i++ {
		entries = append(entries, entry(domain.TransactionTypeDeposit, "0.10", domain.TransactionStatusCompleted))
	}
	assert.Equal(t, "1.00", SumEntries(entries).StringFixed(2))
	assert.True(t, SumEntries(nil).IsZero())
}
