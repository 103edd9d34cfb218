package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coopledger/internal/liquidation/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, l *domain.Liquidation) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO liquidations (
			id, cooperative_id, member_id, fiscal_year, type,
			savings_amount, contributions_amount, surplus_amount, total_amount,
			member_continues, notes, receipt_id, executed_by, executed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID,
		l.CooperativeID,
		l.MemberID,
		l.FiscalYear,
		l.Type,
		l.SavingsAmount,
		l.ContributionsAmount,
		l.SurplusAmount,
		l.TotalAmount,
		l.MemberContinues,
		l.Notes,
		l.ReceiptID,
		l.ExecutedBy,
		l.ExecutedAt,
	).Error
}

const liquidationColumns = `id, cooperative_id, member_id, fiscal_year, type,
	savings_amount, contributions_amount, surplus_amount, total_amount,
	member_continues, notes, receipt_id, executed_by, executed_at`

func (r *repo) FindByMemberAndYear(ctx context.Context, db *gorm.DB, memberID snowflake.ID, fiscalYear int) (*domain.Liquidation, error) {
	var l domain.Liquidation
	err := db.WithContext(ctx).Raw(
		`SELECT `+liquidationColumns+` FROM liquidations WHERE member_id = ? AND fiscal_year = ?`,
		memberID,
		fiscalYear,
	).Scan(&l).Error
	if err != nil {
		return nil, err
	}
	if l.ID == 0 {
		return nil, nil
	}
	return &l, nil
}

func (r *repo) LastForMember(ctx context.Context, db *gorm.DB, memberID snowflake.ID) (*domain.Liquidation, error) {
	var l domain.Liquidation
	err := db.WithContext(ctx).Raw(
		`SELECT `+liquidationColumns+` FROM liquidations WHERE member_id = ?
		 ORDER BY fiscal_year DESC LIMIT 1`,
		memberID,
	).Scan(&l).Error
	if err != nil {
		return nil, err
	}
	if l.ID == 0 {
		return nil, nil
	}
	return &l, nil
}

func (r *repo) ListByMember(ctx context.Context, db *gorm.DB, memberID snowflake.ID) ([]domain.Liquidation, error) {
	var items []domain.Liquidation
	err := db.WithContext(ctx).Raw(
		`SELECT `+liquidationColumns+` FROM liquidations WHERE member_id = ? ORDER BY fiscal_year DESC`,
		memberID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
