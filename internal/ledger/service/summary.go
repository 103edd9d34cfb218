package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/coopledger/internal/apperror"
	"github.com/smallbiznis/coopledger/internal/coopcontext"
	"github.com/smallbiznis/coopledger/internal/ledger/domain"
)

func (s *Service) GetSavingsSummary(ctx context.Context, filter domain.SavingsSummaryFilter) (domain.SavingsSummary, error) {
	cooperativeID := filter.CooperativeID
	if cooperativeID == 0 {
		cooperativeID, _ = coopcontext.CooperativeIDFromContext(ctx)
	}
	if cooperativeID <= 0 {
		return domain.SavingsSummary{}, domain.ErrInvalidCooperative
	}

	members, err := s.repo.ListSummaryMembers(ctx, s.db, cooperativeID, filter.ActiveOnly, filter.Search)
	if err != nil {
		return domain.SavingsSummary{}, apperror.Internal(err)
	}
	entries, err := s.repo.CompletedEntriesByCooperative(ctx, s.db, cooperativeID)
	if err != nil {
		return domain.SavingsSummary{}, apperror.Internal(err)
	}

	type bucket struct {
		byType     map[domain.AccountType]decimal.Decimal
		fiscalYear decimal.Decimal
	}
	buckets := make(map[snowflake.ID]*bucket, len(members))
	for _, m := range members {
		buckets[m.ID] = &bucket{byType: map[domain.AccountType]decimal.Decimal{}}
	}

	for _, e := range entries {
		b, ok := buckets[e.MemberID]
		if !ok {
			continue
		}
		signed := e.Amount.Mul(decimal.NewFromInt(int64(e.TransactionType.Sign())))
		b.byType[e.AccountType] = b.byType[e.AccountType].Add(signed)
		if filter.FiscalYear != nil &&
			e.FiscalYear == *filter.FiscalYear &&
			e.AccountType == domain.AccountTypeContributions &&
			e.TransactionType == domain.TransactionTypeDeposit {
			b.fiscalYear = b.fiscalYear.Add(e.Amount)
		}
	}

	out := domain.SavingsSummary{
		Members:    make([]domain.MemberSavings, 0, len(members)),
		FiscalYear: filter.FiscalYear,
	}
	totals := domain.SummaryTotals{
		Savings:       decimal.Zero,
		Contributions: decimal.Zero,
		Surplus:       decimal.Zero,
		Total:         decimal.Zero,
	}
	fiscalTotal := decimal.Zero

	for _, m := range members {
		b := buckets[m.ID]
		row := domain.MemberSavings{
			MemberID:      m.ID,
			Name:          m.Name,
			Active:        m.Status == "active",
			Savings:       b.byType[domain.AccountTypeSavings].Round(2),
			Contributions: b.byType[domain.AccountTypeContributions].Round(2),
			Surplus:       b.byType[domain.AccountTypeSurplus].Round(2),
		}
		row.Total = row.Savings.Add(row.Contributions).Add(row.Surplus)
		if filter.FiscalYear != nil {
			amount := b.fiscalYear.Round(2)
			row.FiscalYearContributions = &amount
			fiscalTotal = fiscalTotal.Add(amount)
		}

		totals.Savings = totals.Savings.Add(row.Savings)
		totals.Contributions = totals.Contributions.Add(row.Contributions)
		totals.Surplus = totals.Surplus.Add(row.Surplus)
		totals.Total = totals.Total.Add(row.Total)
		out.Members = append(out.Members, row)
	}

	totals.MemberCount = len(out.Members)
	if filter.FiscalYear != nil {
		totals.FiscalYearContributions = &fiscalTotal
	}
	out.Summary = totals
	return out, nil
}
