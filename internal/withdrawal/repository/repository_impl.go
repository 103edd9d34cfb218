package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coopledger/internal/withdrawal/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, req *domain.Request) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO withdrawal_requests (
			id, cooperative_id, member_id, account_id, requested_amount, status,
			notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID,
		req.CooperativeID,
		req.MemberID,
		req.AccountID,
		req.RequestedAmount,
		req.Status,
		req.Notes,
		req.CreatedAt,
		req.UpdatedAt,
	).Error
}

const requestColumns = `id, cooperative_id, member_id, account_id, requested_amount, status,
	notes, rejection_reason, reviewed_by, reviewed_at, transaction_id, receipt_id,
	created_at, updated_at`

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Request, error) {
	var req domain.Request
	err := db.WithContext(ctx).Raw(
		`SELECT `+requestColumns+` FROM withdrawal_requests WHERE id = ?`,
		id,
	).Scan(&req).Error
	if err != nil {
		return nil, err
	}
	if req.ID == 0 {
		return nil, nil
	}
	return &req, nil
}

func (r *repo) MarkReviewed(ctx context.Context, db *gorm.DB, id snowflake.ID, review domain.Review) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE withdrawal_requests
		 SET status = ?, reviewed_by = ?, reviewed_at = ?, rejection_reason = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		review.Status,
		review.ReviewedBy,
		review.ReviewedAt,
		review.RejectionReason,
		review.ReviewedAt,
		id,
		domain.StatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) AttachPosting(ctx context.Context, db *gorm.DB, id, transactionID snowflake.ID, receiptID *snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE withdrawal_requests SET transaction_id = ?, receipt_id = ? WHERE id = ?`,
		transactionID,
		receiptID,
		id,
	).Error
}

func (r *repo) ListByStatus(ctx context.Context, db *gorm.DB, cooperativeID int64, status domain.Status) ([]domain.Request, error) {
	var items []domain.Request
	err := db.WithContext(ctx).Raw(
		`SELECT `+requestColumns+` FROM withdrawal_requests
		 WHERE cooperative_id = ? AND status = ?
		 ORDER BY created_at, id`,
		cooperativeID,
		status,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
