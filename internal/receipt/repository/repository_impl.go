package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coopledger/internal/receipt/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) EnsureCounter(ctx context.Context, db *gorm.DB, cooperativeID int64, year int, now time.Time) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cooperative_id"}, {Name: "year"}},
			DoNothing: true,
		}).
		Create(&domain.Counter{
			CooperativeID: cooperativeID,
			Year:          year,
			LastSequence:  0,
			UpdatedAt:     now,
		}).Error
}

func (r *repo) LockCounter(ctx context.Context, db *gorm.DB, cooperativeID int64, year int) (*domain.Counter, error) {
	var counter domain.Counter
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("cooperative_id = ? AND year = ?", cooperativeID, year).
		Take(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &counter, nil
}

// AdvanceCounter moves the counter from one value to the next only if no
// other writer has moved it in between.
func (r *repo) AdvanceCounter(ctx context.Context, db *gorm.DB, cooperativeID int64, year int, from, to int64, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE receipt_counters SET last_sequence = ?, updated_at = ?
		 WHERE cooperative_id = ? AND year = ? AND last_sequence = ?`,
		to,
		now,
		cooperativeID,
		year,
		from,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, receipt *domain.Receipt) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO receipts (id, cooperative_id, year, sequence, formatted_number, issued_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		receipt.ID,
		receipt.CooperativeID,
		receipt.Year,
		receipt.Sequence,
		receipt.FormattedNumber,
		receipt.IssuedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Receipt, error) {
	var receipt domain.Receipt
	err := db.WithContext(ctx).Raw(
		`SELECT id, cooperative_id, year, sequence, formatted_number, issued_at
		 FROM receipts WHERE id = ?`,
		id,
	).Scan(&receipt).Error
	if err != nil {
		return nil, err
	}
	if receipt.ID == 0 {
		return nil, nil
	}
	return &receipt, nil
}
