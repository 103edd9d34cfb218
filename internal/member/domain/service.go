package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coopledger/internal/apperror"
	ledgerdomain "github.com/smallbiznis/coopledger/internal/ledger/domain"
	"gorm.io/gorm"
)

type EnrollRequest struct {
	Name     string
	Email    string
	JoinedAt time.Time
}

type EnrollResult struct {
	Member   Member                 `json:"member"`
	Accounts []ledgerdomain.Account `json:"accounts"`
}

type ListMemberRequest struct {
	ActiveOnly bool
	Search     string
}

// Registry is the member lifecycle seen by the liquidation engine.
type Registry interface {
	GetByID(ctx context.Context, id snowflake.ID) (Member, error)
	// GetByIDTx reads the member through tx, so callers deciding on the
	// member's status see the same snapshot they later write in.
	GetByIDTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (Member, error)
	// Deactivate marks the member inactive through tx. Deactivating an
	// inactive member is a no-op.
	Deactivate(ctx context.Context, tx *gorm.DB, id snowflake.ID) error
}

type Service interface {
	Registry
	Enroll(ctx context.Context, req EnrollRequest) (EnrollResult, error)
	List(ctx context.Context, req ListMemberRequest) ([]Member, error)
	Reactivate(ctx context.Context, id snowflake.ID) (Member, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, member *Member) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Member, error)
	List(ctx context.Context, db *gorm.DB, cooperativeID int64, filter ListMemberRequest) ([]Member, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to Status, deactivatedAt *time.Time, now time.Time) (bool, error)
}

var (
	ErrInvalidCooperative = apperror.Validation("invalid_cooperative")
	ErrInvalidName        = apperror.Validation("invalid_name")
	ErrInvalidEmail       = apperror.Validation("invalid_email")
	ErrInvalidID          = apperror.Validation("invalid_id")
	ErrNotFound           = apperror.NotFound("member_not_found")
	ErrAlreadyActive      = apperror.Conflict("member_already_active")
)
