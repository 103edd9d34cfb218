package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coopledger/internal/apperror"
	"gorm.io/gorm"
)

type Service interface {
	// Next issues the next receipt for the cooperative and year in its own
	// transaction.
	Next(ctx context.Context, cooperativeID int64, year int) (Receipt, error)
	// IssueTx issues a receipt inside the caller's transaction, numbered in
	// the calendar year of at. The receipt is discarded if tx rolls back.
	IssueTx(ctx context.Context, tx *gorm.DB, cooperativeID int64, at time.Time) (Receipt, error)
	// GenerateReceiptNumber issues a receipt for the current calendar year and
	// returns its formatted number.
	GenerateReceiptNumber(ctx context.Context, cooperativeID int64) (string, error)
	GetByID(ctx context.Context, id snowflake.ID) (Receipt, error)
}

type Repository interface {
	EnsureCounter(ctx context.Context, db *gorm.DB, cooperativeID int64, year int, now time.Time) error
	LockCounter(ctx context.Context, db *gorm.DB, cooperativeID int64, year int) (*Counter, error)
	AdvanceCounter(ctx context.Context, db *gorm.DB, cooperativeID int64, year int, from, to int64, now time.Time) (bool, error)
	Insert(ctx context.Context, db *gorm.DB, receipt *Receipt) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Receipt, error)
}

var (
	ErrInvalidCooperative = apperror.Validation("invalid_cooperative")
	ErrInvalidYear        = apperror.Validation("invalid_year")
	ErrNotFound           = apperror.NotFound("receipt_not_found")
	// ErrSequenceExhausted is returned once every retry lost the sequence race.
	ErrSequenceExhausted = apperror.New(apperror.KindInternal, "receipt_sequence_exhausted")
)
