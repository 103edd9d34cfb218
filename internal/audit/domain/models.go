package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeSystem   ActorType = "system"
	ActorTypeOperator ActorType = "operator"
)

// AuditLog records who changed what in the ledger.
type AuditLog struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	CooperativeID int64             `gorm:"not null;index" json:"cooperative_id"`
	ActorType     string            `gorm:"type:text;not null" json:"actor_type"`
	ActorID       *string           `gorm:"type:text" json:"actor_id,omitempty"`
	Action        string            `gorm:"type:text;not null;index" json:"action"`
	TargetType    string            `gorm:"type:text;not null" json:"target_type"`
	TargetID      *string           `gorm:"type:text;index" json:"target_id,omitempty"`
	Metadata      datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt     time.Time         `gorm:"not null" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }
