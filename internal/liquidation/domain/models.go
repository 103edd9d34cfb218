package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/coopledger/internal/ledger/domain"
)

type Type string

const (
	// TypePeriodic pays out balances while membership usually continues.
	TypePeriodic Type = "periodic"
	// TypeExit pays out balances and ends membership.
	TypeExit Type = "exit"
)

func (t Type) Valid() bool { return t == TypePeriodic || t == TypeExit }

// Liquidation records one payout of a member's balances. A member has at
// most one per fiscal year.
type Liquidation struct {
	ID                  snowflake.ID    `gorm:"primaryKey" json:"id"`
	CooperativeID       int64           `gorm:"not null;index" json:"cooperative_id"`
	MemberID            snowflake.ID    `gorm:"not null;uniqueIndex:ux_liquidations_member_year,priority:1" json:"member_id"`
	FiscalYear          int             `gorm:"not null;uniqueIndex:ux_liquidations_member_year,priority:2" json:"fiscal_year"`
	Type                Type            `gorm:"type:text;not null" json:"type"`
	SavingsAmount       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"savings_amount"`
	ContributionsAmount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"contributions_amount"`
	SurplusAmount       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"surplus_amount"`
	TotalAmount         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	MemberContinues     bool            `gorm:"not null" json:"member_continues"`
	Notes               string          `gorm:"type:text" json:"notes,omitempty"`
	ReceiptID           snowflake.ID    `gorm:"not null" json:"receipt_id"`
	ExecutedBy          *string         `gorm:"type:text" json:"executed_by,omitempty"`
	ExecutedAt          time.Time       `gorm:"not null" json:"executed_at"`
}

func (Liquidation) TableName() string { return "liquidations" }

// PerAccountAmounts returns the paid out amount keyed by account type.
func (l Liquidation) PerAccountAmounts() map[ledgerdomain.AccountType]decimal.Decimal {
	return map[ledgerdomain.AccountType]decimal.Decimal{
		ledgerdomain.AccountTypeSavings:       l.SavingsAmount,
		ledgerdomain.AccountTypeContributions: l.ContributionsAmount,
		ledgerdomain.AccountTypeSurplus:       l.SurplusAmount,
	}
}
