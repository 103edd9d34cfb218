package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coopledger/internal/member/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, member *domain.Member) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO members (id, cooperative_id, name, email, status, joined_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		member.ID,
		member.CooperativeID,
		member.Name,
		member.Email,
		member.Status,
		member.JoinedAt,
		member.CreatedAt,
		member.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Member, error) {
	var member domain.Member
	err := db.WithContext(ctx).Raw(
		`SELECT id, cooperative_id, name, email, status, joined_at, deactivated_at, created_at, updated_at
		 FROM members WHERE id = ?`,
		id,
	).Scan(&member).Error
	if err != nil {
		return nil, err
	}
	if member.ID == 0 {
		return nil, nil
	}
	return &member, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, cooperativeID int64, filter domain.ListMemberRequest) ([]domain.Member, error) {
	var members []domain.Member
	stmt := db.WithContext(ctx).
		Model(&domain.Member{}).
		Where("cooperative_id = ?", cooperativeID)
	if filter.ActiveOnly {
		stmt = stmt.Where("status = ?", domain.StatusActive)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		stmt = stmt.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	if err := stmt.Order("name, id").Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.Status, deactivatedAt *time.Time, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE members SET status = ?, deactivated_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		to,
		deactivatedAt,
		now,
		id,
		from,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
