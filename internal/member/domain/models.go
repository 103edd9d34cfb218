package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

type Member struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	CooperativeID int64        `gorm:"not null;index" json:"cooperative_id"`
	Name          string       `gorm:"type:text;not null" json:"name"`
	Email         string       `gorm:"type:text" json:"email,omitempty"`
	Status        Status       `gorm:"type:text;not null;index" json:"status"`
	JoinedAt      time.Time    `gorm:"not null" json:"joined_at"`
	DeactivatedAt *time.Time   `json:"deactivated_at,omitempty"`
	CreatedAt     time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null" json:"updated_at"`
}

func (Member) TableName() string { return "members" }

func (m Member) Active() bool { return m.Status == StatusActive }
