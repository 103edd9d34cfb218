package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Entry is an audit record to be written. The actor defaults to the one on
// the context, then to the system.
type Entry struct {
	CooperativeID int64
	ActorType     ActorType
	ActorID       string
	Action        string
	TargetType    string
	TargetID      string
	Metadata      map[string]any
}

type ListAuditLogRequest struct {
	CooperativeID int64
	Action        string
	TargetType    string
	TargetID      string
	Limit         int
}

type Service interface {
	// AuditLog writes entry through db, which may be the caller's
	// transaction. A failed write never aborts the caller's transaction.
	AuditLog(ctx context.Context, db *gorm.DB, entry Entry) error
	List(ctx context.Context, req ListAuditLogRequest) ([]AuditLog, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListAuditLogRequest) ([]AuditLog, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*AuditLog, error)
}

var (
	ErrInvalidCooperative = errors.New("invalid_cooperative")
	ErrInvalidAction      = errors.New("invalid_action")
)
