package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Receipt is an issued, human-readable reference printed on member slips.
type Receipt struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	CooperativeID   int64        `gorm:"not null;uniqueIndex:ux_receipts_coop_year_seq,priority:1" json:"cooperative_id"`
	Year            int          `gorm:"not null;uniqueIndex:ux_receipts_coop_year_seq,priority:2" json:"year"`
	Sequence        int64        `gorm:"not null;uniqueIndex:ux_receipts_coop_year_seq,priority:3" json:"sequence"`
	FormattedNumber string       `gorm:"type:text;not null" json:"formatted_number"`
	IssuedAt        time.Time    `gorm:"not null" json:"issued_at"`
}

func (Receipt) TableName() string { return "receipts" }

// Counter is the per (cooperative, year) high-water mark of issued sequences.
type Counter struct {
	CooperativeID int64     `gorm:"primaryKey;autoIncrement:false"`
	Year          int       `gorm:"primaryKey;autoIncrement:false"`
	LastSequence  int64     `gorm:"not null;default:0"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (Counter) TableName() string { return "receipt_counters" }
