package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// AccountType classifies a member's money. Every member owns exactly one
// account of each type.
type AccountType string

const (
	AccountTypeSavings       AccountType = "savings"
	AccountTypeContributions AccountType = "contributions"
	AccountTypeSurplus       AccountType = "surplus"
)

// AccountTypes lists the account types in presentation order.
func AccountTypes() []AccountType {
	return []AccountType{AccountTypeSavings, AccountTypeContributions, AccountTypeSurplus}
}

func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeSavings, AccountTypeContributions, AccountTypeSurplus:
		return true
	}
	return false
}

type TransactionType string

const (
	TransactionTypeDeposit             TransactionType = "deposit"
	TransactionTypeWithdrawal          TransactionType = "withdrawal"
	TransactionTypeAdjustment          TransactionType = "adjustment"
	TransactionTypeTransferIn          TransactionType = "transfer_in"
	TransactionTypeTransferOut         TransactionType = "transfer_out"
	TransactionTypeSurplusDistribution TransactionType = "surplus_distribution"
	TransactionTypeLiquidation         TransactionType = "liquidation"
)

// Sign is +1 for entries that add to a balance, -1 for entries that draw it
// down and 0 for unknown types.
func (t TransactionType) Sign() int {
	switch t {
	case TransactionTypeDeposit,
		TransactionTypeAdjustment,
		TransactionTypeTransferIn,
		TransactionTypeSurplusDistribution:
		return 1
	case TransactionTypeWithdrawal,
		TransactionTypeTransferOut,
		TransactionTypeLiquidation:
		return -1
	}
	return 0
}

func (t TransactionType) Valid() bool { return t.Sign() != 0 }

func (t TransactionType) IsDebit() bool { return t.Sign() < 0 }

// Reserved types are only posted by the withdrawal workflow and the
// liquidation engine.
func (t TransactionType) Reserved() bool {
	return t == TransactionTypeWithdrawal || t == TransactionTypeLiquidation
}

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusReversed  TransactionStatus = "reversed"
)

// Account is a typed money bucket owned by a member. Accounts are never
// deleted.
type Account struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	CooperativeID int64        `gorm:"not null;index" json:"cooperative_id"`
	MemberID      snowflake.ID `gorm:"not null;uniqueIndex:ux_accounts_member_type,priority:1" json:"member_id"`
	AccountType   AccountType  `gorm:"type:text;not null;uniqueIndex:ux_accounts_member_type,priority:2" json:"account_type"`
	CreatedAt     time.Time    `gorm:"not null" json:"created_at"`
}

func (Account) TableName() string { return "accounts" }

// Transaction is one entry of the append-only ledger. Completed entries are
// immutable; pending entries may only move to completed or reversed.
type Transaction struct {
	ID              snowflake.ID      `gorm:"primaryKey" json:"id"`
	AccountID       snowflake.ID      `gorm:"not null;index" json:"account_id"`
	TransactionType TransactionType   `gorm:"type:text;not null" json:"transaction_type"`
	Amount          decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"amount"`
	Status          TransactionStatus `gorm:"type:text;not null;index" json:"status"`
	TransactionDate time.Time         `gorm:"not null" json:"transaction_date"`
	FiscalYear      int               `gorm:"not null;index" json:"fiscal_year"`
	ReceiptID       *snowflake.ID     `gorm:"index" json:"receipt_id,omitempty"`
	Note            string            `gorm:"type:text" json:"note,omitempty"`
	CreatedAt       time.Time         `gorm:"not null" json:"created_at"`
}

func (Transaction) TableName() string { return "transactions" }

// SignedAmount returns the entry's contribution to its account balance.
func (t Transaction) SignedAmount() decimal.Decimal {
	return t.Amount.Mul(decimal.NewFromInt(int64(t.TransactionType.Sign())))
}
