package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Request is a member's ask to take money out of an account. Approved and
// rejected are terminal.
type Request struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	CooperativeID   int64           `gorm:"not null;index:ix_withdrawal_requests_coop_status,priority:1" json:"cooperative_id"`
	MemberID        snowflake.ID    `gorm:"not null;index" json:"member_id"`
	AccountID       snowflake.ID    `gorm:"not null;index" json:"account_id"`
	RequestedAmount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"requested_amount"`
	Status          Status          `gorm:"type:text;not null;index:ix_withdrawal_requests_coop_status,priority:2" json:"status"`
	Notes           string          `gorm:"type:text" json:"notes,omitempty"`
	RejectionReason string          `gorm:"type:text" json:"rejection_reason,omitempty"`
	ReviewedBy      *string         `gorm:"type:text" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time      `json:"reviewed_at,omitempty"`
	TransactionID   *snowflake.ID   `json:"transaction_id,omitempty"`
	ReceiptID       *snowflake.ID   `json:"receipt_id,omitempty"`
	CreatedAt       time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null" json:"updated_at"`
}

func (Request) TableName() string { return "withdrawal_requests" }
