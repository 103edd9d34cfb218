package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/coopledger/internal/apperror"
	ledgerdomain "github.com/smallbiznis/coopledger/internal/ledger/domain"
	"gorm.io/gorm"
)

type AccountBalance struct {
	AccountID   snowflake.ID             `json:"account_id"`
	AccountType ledgerdomain.AccountType `json:"account_type"`
	Balance     decimal.Decimal          `json:"balance"`
}

// Preview is what a liquidation would pay out right now. It is a snapshot.
type Preview struct {
	MemberID            snowflake.ID     `json:"member_id"`
	MemberName          string           `json:"member_name"`
	Active              bool             `json:"active"`
	FiscalYear          int              `json:"fiscal_year"`
	Accounts            []AccountBalance `json:"accounts"`
	Total               decimal.Decimal  `json:"total"`
	LastLiquidationYear *int             `json:"last_liquidation_year,omitempty"`
	// LiquidatedThisYear is set when the member was already liquidated in
	// the current fiscal year.
	LiquidatedThisYear bool `json:"liquidated_this_year"`
	// PeriodicEligible reports whether a periodic liquidation would pass
	// the interval policy today.
	PeriodicEligible bool `json:"periodic_eligible"`
	NextEligibleYear *int `json:"next_eligible_year,omitempty"`
}

type ExecuteRequest struct {
	MemberIDs       []snowflake.ID
	Type            Type
	MemberContinues bool
	Notes           string
	// ExecutedBy defaults to the actor on the context.
	ExecutedBy string
}

// Result is the outcome for one member of a batch.
type Result struct {
	MemberID    snowflake.ID `json:"member_id"`
	Liquidation *Liquidation `json:"liquidation,omitempty"`
	Err         error        `json:"-"`
	Error       string       `json:"error,omitempty"`
}

func (r Result) OK() bool { return r.Err == nil }

type Service interface {
	Preview(ctx context.Context, memberID snowflake.ID) (Preview, error)
	// Execute liquidates each member in its own transaction. The returned
	// error covers only a malformed request; per-member failures are
	// reported in the results in input order.
	Execute(ctx context.Context, req ExecuteRequest) ([]Result, error)
	ListByMember(ctx context.Context, memberID snowflake.ID) ([]Liquidation, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, liquidation *Liquidation) error
	FindByMemberAndYear(ctx context.Context, db *gorm.DB, memberID snowflake.ID, fiscalYear int) (*Liquidation, error)
	LastForMember(ctx context.Context, db *gorm.DB, memberID snowflake.ID) (*Liquidation, error)
	ListByMember(ctx context.Context, db *gorm.DB, memberID snowflake.ID) ([]Liquidation, error)
}

var (
	ErrInvalidType         = apperror.Validation("invalid_liquidation_type")
	ErrNoMembers           = apperror.Validation("no_members")
	ErrInvalidMember       = apperror.Validation("invalid_member")
	ErrInactiveMember      = apperror.Validation("inactive_member")
	ErrNoAccounts          = apperror.Validation("member_has_no_accounts")
	ErrAlreadyLiquidated   = apperror.Conflict("already_liquidated_this_fiscal_year")
	ErrIntervalNotElapsed  = apperror.Conflict("periodic_interval_not_elapsed")
	ErrInsufficientBalance = apperror.InsufficientBalance("insufficient_balance")
)
