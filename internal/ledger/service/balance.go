package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/coopledger/internal/apperror"
	"github.com/smallbiznis/coopledger/internal/ledger/domain"
	"gorm.io/gorm"
)

// Balances are recomputed from the completed entries on every read. There
// is no stored running balance to drift from the log.

func (s *Service) GetBalance(ctx context.Context, accountID snowflake.ID) (decimal.Decimal, error) {
	account, err := s.repo.FindAccount(ctx, s.db, accountID)
	if err != nil {
		return decimal.Zero, apperror.Internal(err)
	}
	if account == nil {
		return decimal.Zero, domain.ErrAccountNotFound
	}
	return s.BalanceTx(ctx, s.db, accountID)
}

func (s *Service) BalanceTx(ctx context.Context, tx *gorm.DB, accountID snowflake.ID) (decimal.Decimal, error) {
	entries, err := s.repo.CompletedEntries(ctx, tx, accountID)
	if err != nil {
		return decimal.Zero, apperror.Internal(err)
	}
	return SumEntries(entries), nil
}

// SumEntries folds completed entries into a balance. Entries in any other
// status are ignored.
func SumEntries(entries []domain.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, entry := range entries {
		if entry.Status != domain.TransactionStatusCompleted {
			continue
		}
		total = total.Add(entry.SignedAmount())
	}
	return total.Round(2)
}
