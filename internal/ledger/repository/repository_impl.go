package repository

import (
	"context"
	"sort"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coopledger/internal/ledger/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertAccount(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO accounts (id, cooperative_id, member_id, account_type, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		account.ID,
		account.CooperativeID,
		account.MemberID,
		account.AccountType,
		account.CreatedAt,
	).Error
}

func (r *repo) FindAccount(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT id, cooperative_id, member_id, account_type, created_at
		 FROM accounts WHERE id = ?`,
		id,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) FindAccountByType(ctx context.Context, db *gorm.DB, memberID snowflake.ID, accountType domain.AccountType) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT id, cooperative_id, member_id, account_type, created_at
		 FROM accounts WHERE member_id = ? AND account_type = ?`,
		memberID,
		accountType,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

// LockAccounts takes row locks on the given accounts in ascending id order.
func (r *repo) LockAccounts(ctx context.Context, db *gorm.DB, ids ...snowflake.ID) ([]domain.Account, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sorted := append([]snowflake.ID(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var accounts []domain.Account
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", sorted).
		Order("id").
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *repo) LockMemberAccounts(ctx context.Context, db *gorm.DB, memberID snowflake.ID) ([]domain.Account, error) {
	var accounts []domain.Account
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("member_id = ?", memberID).
		Order("id").
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *repo) ListMemberAccounts(ctx context.Context, db *gorm.DB, memberID snowflake.ID) ([]domain.Account, error) {
	var accounts []domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT id, cooperative_id, member_id, account_type, created_at
		 FROM accounts WHERE member_id = ? ORDER BY id`,
		memberID,
	).Scan(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *repo) InsertTransaction(ctx context.Context, db *gorm.DB, txn *domain.Transaction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO transactions (
			id, account_id, transaction_type, amount, status, transaction_date,
			fiscal_year, receipt_id, note, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID,
		txn.AccountID,
		txn.TransactionType,
		txn.Amount,
		txn.Status,
		txn.TransactionDate,
		txn.FiscalYear,
		txn.ReceiptID,
		txn.Note,
		txn.CreatedAt,
	).Error
}

const transactionColumns = `id, account_id, transaction_type, amount, status, transaction_date,
	fiscal_year, receipt_id, note, created_at`

func (r *repo) FindTransaction(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Transaction, error) {
	var txn domain.Transaction
	err := db.WithContext(ctx).Raw(
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`,
		id,
	).Scan(&txn).Error
	if err != nil {
		return nil, err
	}
	if txn.ID == 0 {
		return nil, nil
	}
	return &txn, nil
}

func (r *repo) LockTransaction(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Transaction, error) {
	var txns []domain.Transaction
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Limit(1).
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return nil, nil
	}
	return &txns[0], nil
}

// SettleTransaction moves a pending entry to its final status. It reports
// false when the entry was no longer pending.
func (r *repo) SettleTransaction(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.TransactionStatus, receiptID *snowflake.ID) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE transactions SET status = ?, receipt_id = ?
		 WHERE id = ? AND status = ?`,
		status,
		receiptID,
		id,
		domain.TransactionStatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) ListTransactions(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]domain.Transaction, error) {
	var txns []domain.Transaction
	err := db.WithContext(ctx).Raw(
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE account_id = ? ORDER BY transaction_date, id`,
		accountID,
	).Scan(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *repo) CompletedEntries(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]domain.Transaction, error) {
	var txns []domain.Transaction
	err := db.WithContext(ctx).Raw(
		`SELECT id, account_id, transaction_type, amount, status
		 FROM transactions WHERE account_id = ? AND status = ?`,
		accountID,
		domain.TransactionStatusCompleted,
	).Scan(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *repo) ListSummaryMembers(ctx context.Context, db *gorm.DB, cooperativeID int64, activeOnly bool, search string) ([]domain.SummaryMemberRow, error) {
	var rows []domain.SummaryMemberRow
	stmt := db.WithContext(ctx).
		Table("members").
		Select("id, name, status").
		Where("cooperative_id = ?", cooperativeID)
	if activeOnly {
		stmt = stmt.Where("status = ?", "active")
	}
	if search = strings.TrimSpace(search); search != "" {
		stmt = stmt.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	if err := stmt.Order("name, id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) CompletedEntriesByCooperative(ctx context.Context, db *gorm.DB, cooperativeID int64) ([]domain.SummaryEntryRow, error) {
	var rows []domain.SummaryEntryRow
	err := db.WithContext(ctx).Raw(
		`SELECT a.member_id, a.account_type, t.transaction_type, t.amount, t.fiscal_year
		 FROM transactions t
		 JOIN accounts a ON a.id = t.account_id
		 WHERE a.cooperative_id = ? AND t.status = ?`,
		cooperativeID,
		domain.TransactionStatusCompleted,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
