package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/coopledger/internal/apperror"
	"gorm.io/gorm"
)

type SubmitRequest struct {
	MemberID  snowflake.ID
	AccountID snowflake.ID
	Amount    decimal.Decimal
	Notes     string
}

type Service interface {
	// Submit records a pending request. The balance check here is advisory;
	// Approve re-checks under the account lock.
	Submit(ctx context.Context, req SubmitRequest) (Request, error)
	Approve(ctx context.Context, requestID snowflake.ID, reviewerID string) (Request, error)
	Reject(ctx context.Context, requestID snowflake.ID, reviewerID, reason string) (Request, error)
	Get(ctx context.Context, requestID snowflake.ID) (Request, error)
	// ListPending defaults to the cooperative on the context when
	// cooperativeID is zero.
	ListPending(ctx context.Context, cooperativeID int64) ([]Request, error)
}

// Review is the terminal state written onto a pending request.
type Review struct {
	Status          Status
	ReviewedBy      string
	ReviewedAt      time.Time
	RejectionReason string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, req *Request) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Request, error)
	// MarkReviewed applies review only while the request is pending and
	// reports whether it did.
	MarkReviewed(ctx context.Context, db *gorm.DB, id snowflake.ID, review Review) (bool, error)
	AttachPosting(ctx context.Context, db *gorm.DB, id, transactionID snowflake.ID, receiptID *snowflake.ID) error
	ListByStatus(ctx context.Context, db *gorm.DB, cooperativeID int64, status Status) ([]Request, error)
}

var (
	ErrInvalidCooperative  = apperror.Validation("invalid_cooperative")
	ErrInvalidAmount       = apperror.Validation("invalid_amount")
	ErrInvalidMember       = apperror.Validation("invalid_member")
	ErrInactiveMember      = apperror.Validation("inactive_member")
	ErrInvalidAccount      = apperror.Validation("invalid_account")
	ErrAccountNotOwned     = apperror.Validation("account_not_owned_by_member")
	ErrAccountNotEligible  = apperror.Validation("account_type_not_withdrawable")
	ErrInvalidReviewer     = apperror.Validation("invalid_reviewer")
	ErrInsufficientBalance = apperror.InsufficientBalance("insufficient_balance")
	ErrNotFound            = apperror.NotFound("withdrawal_request_not_found")
	ErrNotPending          = apperror.Conflict("withdrawal_request_not_pending")
)
