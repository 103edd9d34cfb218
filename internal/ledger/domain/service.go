package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/coopledger/internal/apperror"
	"gorm.io/gorm"
)

type AppendTransactionRequest struct {
	AccountID snowflake.ID
	Type      TransactionType
	Amount    decimal.Decimal
	Date      time.Time
	Note      string
	// Pending records the entry without affecting the balance until it is
	// settled. Debit types cannot be pending.
	Pending bool
}

// DebitRequest is a balance-checked debit posted inside the caller's
// transaction. When ReceiptID is nil a receipt is issued for the entry.
type DebitRequest struct {
	AccountID snowflake.ID
	Type      TransactionType
	Amount    decimal.Decimal
	Date      time.Time
	Note      string
	ReceiptID *snowflake.ID
}

type TransferRequest struct {
	FromAccountID snowflake.ID
	ToAccountID   snowflake.ID
	Amount        decimal.Decimal
	Date          time.Time
	Note          string
}

type TransferResult struct {
	Out       Transaction
	In        Transaction
	ReceiptID snowflake.ID
}

type CreateDepositRequest struct {
	MemberID    snowflake.ID
	AccountType AccountType
	Amount      decimal.Decimal
	Date        time.Time
	Note        string
}

type SavingsSummaryFilter struct {
	// CooperativeID defaults to the cooperative on the context.
	CooperativeID int64
	ActiveOnly    bool
	Search        string
	// FiscalYear, when set, adds the completed contribution deposits dated
	// inside that fiscal year.
	FiscalYear *int
}

type MemberSavings struct {
	MemberID                snowflake.ID     `json:"member_id"`
	Name                    string           `json:"name"`
	Active                  bool             `json:"active"`
	Savings                 decimal.Decimal  `json:"savings"`
	Contributions           decimal.Decimal  `json:"contributions"`
	Surplus                 decimal.Decimal  `json:"surplus"`
	Total                   decimal.Decimal  `json:"total"`
	FiscalYearContributions *decimal.Decimal `json:"fiscal_year_contributions,omitempty"`
}

type SummaryTotals struct {
	MemberCount             int              `json:"member_count"`
	Savings                 decimal.Decimal  `json:"savings"`
	Contributions           decimal.Decimal  `json:"contributions"`
	Surplus                 decimal.Decimal  `json:"surplus"`
	Total                   decimal.Decimal  `json:"total"`
	FiscalYearContributions *decimal.Decimal `json:"fiscal_year_contributions,omitempty"`
}

type SavingsSummary struct {
	Members    []MemberSavings `json:"members"`
	Summary    SummaryTotals   `json:"summary"`
	FiscalYear *int            `json:"fiscal_year,omitempty"`
}

type Service interface {
	// GetBalance is a snapshot read that may be stale by the time the
	// caller acts on it.
	GetBalance(ctx context.Context, accountID snowflake.ID) (decimal.Decimal, error)
	// BalanceTx reads the balance through tx. It is authoritative only when
	// tx holds the account row lock.
	BalanceTx(ctx context.Context, tx *gorm.DB, accountID snowflake.ID) (decimal.Decimal, error)

	AppendTransaction(ctx context.Context, req AppendTransactionRequest) (Transaction, error)
	DebitTx(ctx context.Context, tx *gorm.DB, req DebitRequest) (Transaction, error)
	SettleTransaction(ctx context.Context, id snowflake.ID, status TransactionStatus) (Transaction, error)
	Transfer(ctx context.Context, req TransferRequest) (TransferResult, error)
	ListTransactions(ctx context.Context, accountID snowflake.ID) ([]Transaction, error)
	CreateDeposit(ctx context.Context, req CreateDepositRequest) (Transaction, error)
	GetSavingsSummary(ctx context.Context, filter SavingsSummaryFilter) (SavingsSummary, error)

	GetAccount(ctx context.Context, id snowflake.ID) (Account, error)
	ListMemberAccounts(ctx context.Context, memberID snowflake.ID) ([]Account, error)
	// OpenAccountsTx creates one account of every type for a new member.
	OpenAccountsTx(ctx context.Context, tx *gorm.DB, cooperativeID int64, memberID snowflake.ID) ([]Account, error)
	// LockMemberAccountsTx locks every account of the member in id order.
	LockMemberAccountsTx(ctx context.Context, tx *gorm.DB, memberID snowflake.ID) ([]Account, error)
}

type Repository interface {
	InsertAccount(ctx context.Context, db *gorm.DB, account *Account) error
	FindAccount(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Account, error)
	FindAccountByType(ctx context.Context, db *gorm.DB, memberID snowflake.ID, accountType AccountType) (*Account, error)
	LockAccounts(ctx context.Context, db *gorm.DB, ids ...snowflake.ID) ([]Account, error)
	LockMemberAccounts(ctx context.Context, db *gorm.DB, memberID snowflake.ID) ([]Account, error)
	ListMemberAccounts(ctx context.Context, db *gorm.DB, memberID snowflake.ID) ([]Account, error)

	InsertTransaction(ctx context.Context, db *gorm.DB, txn *Transaction) error
	FindTransaction(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Transaction, error)
	LockTransaction(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Transaction, error)
	SettleTransaction(ctx context.Context, db *gorm.DB, id snowflake.ID, status TransactionStatus, receiptID *snowflake.ID) (bool, error)
	ListTransactions(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]Transaction, error)
	CompletedEntries(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]Transaction, error)

	ListSummaryMembers(ctx context.Context, db *gorm.DB, cooperativeID int64, activeOnly bool, search string) ([]SummaryMemberRow, error)
	CompletedEntriesByCooperative(ctx context.Context, db *gorm.DB, cooperativeID int64) ([]SummaryEntryRow, error)
}

// SummaryMemberRow is a member as read for the savings summary.
type SummaryMemberRow struct {
	ID     snowflake.ID
	Name   string
	Status string
}

// SummaryEntryRow is a completed entry joined with its account owner.
type SummaryEntryRow struct {
	MemberID        snowflake.ID
	AccountType     AccountType
	TransactionType TransactionType
	Amount          decimal.Decimal
	FiscalYear      int
}

var (
	ErrInvalidCooperative      = apperror.Validation("invalid_cooperative")
	ErrInvalidAmount           = apperror.Validation("invalid_amount")
	ErrInvalidAccount          = apperror.Validation("invalid_account")
	ErrInvalidAccountType      = apperror.Validation("invalid_account_type")
	ErrInvalidTransactionType  = apperror.Validation("invalid_transaction_type")
	ErrReservedTransactionType = apperror.Validation("reserved_transaction_type")
	ErrPendingDebit            = apperror.Validation("pending_debit_not_allowed")
	ErrInvalidStatus           = apperror.Validation("invalid_status")
	ErrInvalidTransfer         = apperror.Validation("invalid_transfer")
	ErrAccountNotFound         = apperror.NotFound("account_not_found")
	ErrTransactionNotFound     = apperror.NotFound("transaction_not_found")
	ErrTransactionNotPending   = apperror.Conflict("transaction_not_pending")
	ErrInsufficientBalance     = apperror.InsufficientBalance("insufficient_balance")
)
