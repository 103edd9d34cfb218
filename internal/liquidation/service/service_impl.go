package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/coopledger/internal/apperror"
	auditdomain "github.com/smallbiznis/coopledger/internal/audit/domain"
	"github.com/smallbiznis/coopledger/internal/clock"
	"github.com/smallbiznis/coopledger/internal/config"
	"github.com/smallbiznis/coopledger/internal/coopcontext"
	"github.com/smallbiznis/coopledger/internal/fiscal"
	ledgerdomain "github.com/smallbiznis/coopledger/internal/ledger/domain"
	"github.com/smallbiznis/coopledger/internal/liquidation/domain"
	memberdomain "github.com/smallbiznis/coopledger/internal/member/domain"
	obsmetrics "github.com/smallbiznis/coopledger/internal/observability/metrics"
	"github.com/smallbiznis/coopledger/internal/observability/tracing"
	receiptdomain "github.com/smallbiznis/coopledger/internal/receipt/domain"
	dbpkg "github.com/smallbiznis/coopledger/pkg/db"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	Ledger     ledgerdomain.Service
	Receipts   receiptdomain.Service
	Members    memberdomain.Registry
	AuditSvc   auditdomain.Service  `optional:"true"`
	Clock      clock.Clock          `optional:"true"`
	Policy     *config.PolicyHolder `optional:"true"`
	ObsMetrics *obsmetrics.Metrics  `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	ledger     ledgerdomain.Service
	receipts   receiptdomain.Service
	members    memberdomain.Registry
	auditSvc   auditdomain.Service
	clock      clock.Clock
	policy     *config.PolicyHolder
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("liquidation.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		ledger:     p.Ledger,
		receipts:   p.Receipts,
		members:    p.Members,
		auditSvc:   p.AuditSvc,
		clock:      clock.OrSystem(p.Clock),
		policy:     p.Policy,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Preview(ctx context.Context, memberID snowflake.ID) (domain.Preview, error) {
	member, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		return domain.Preview{}, err
	}

	accounts, err := s.ledger.ListMemberAccounts(ctx, memberID)
	if err != nil {
		return domain.Preview{}, err
	}

	preview := domain.Preview{
		MemberID:   member.ID,
		MemberName: member.Name,
		Active:     member.Active(),
		FiscalYear: fiscal.Year(s.clock.Now().UTC()),
		Accounts:   make([]domain.AccountBalance, 0, len(accounts)),
		Total:      decimal.Zero,
	}
	for _, account := range orderAccounts(accounts) {
		balance, err := s.ledger.GetBalance(ctx, account.ID)
		if err != nil {
			return domain.Preview{}, err
		}
		preview.Accounts = append(preview.Accounts, domain.AccountBalance{
			AccountID:   account.ID,
			AccountType: account.AccountType,
			Balance:     balance,
		})
		preview.Total = preview.Total.Add(balance)
	}

	last, err := s.repo.LastForMember(ctx, s.db, memberID)
	if err != nil {
		return domain.Preview{}, apperror.Internal(err)
	}
	if last != nil {
		year := last.FiscalYear
		preview.LastLiquidationYear = &year
		preview.LiquidatedThisYear = year == preview.FiscalYear
	}

	eligible, next := s.periodicEligibility(last, preview.FiscalYear)
	preview.PeriodicEligible = eligible && !preview.LiquidatedThisYear && member.Active()
	preview.NextEligibleYear = next
	return preview, nil
}

func (s *Service) Execute(ctx context.Context, req domain.ExecuteRequest) ([]domain.Result, error) {
	liquidationType := domain.Type(strings.ToLower(strings.TrimSpace(string(req.Type))))
	if !liquidationType.Valid() {
		return nil, domain.ErrInvalidType
	}
	if len(req.MemberIDs) == 0 {
		return nil, domain.ErrNoMembers
	}

	executedBy := strings.TrimSpace(req.ExecutedBy)
	if executedBy == "" {
		executedBy = coopcontext.ActorFromContext(ctx)
	}
	req.Type = liquidationType
	req.ExecutedBy = executedBy
	req.Notes = strings.TrimSpace(req.Notes)

	results := make([]domain.Result, 0, len(req.MemberIDs))
	for _, memberID := range req.MemberIDs {
		if err := ctx.Err(); err != nil {
			results = append(results, failed(memberID, apperror.Internal(err)))
			continue
		}

		liquidation, err := s.executeOne(ctx, memberID, req)
		if err != nil {
			s.obsMetrics.RecordLiquidation(ctx, string(liquidationType), "failed", 0)
			s.log.Warn("liquidation failed",
				zap.String("member_id", memberID.String()),
				zap.String("type", string(liquidationType)),
				zap.Error(err),
			)
			results = append(results, failed(memberID, err))
			continue
		}

		total, _ := liquidation.TotalAmount.Float64()
		s.obsMetrics.RecordLiquidation(ctx, string(liquidationType), "succeeded", total)
		s.log.Info("member liquidated",
			zap.String("member_id", memberID.String()),
			zap.String("type", string(liquidationType)),
			zap.Int("fiscal_year", liquidation.FiscalYear),
			zap.String("total", liquidation.TotalAmount.StringFixed(2)),
		)
		results = append(results, domain.Result{MemberID: memberID, Liquidation: &liquidation})
	}
	return results, nil
}

func (s *Service) ListByMember(ctx context.Context, memberID snowflake.ID) ([]domain.Liquidation, error) {
	if _, err := s.members.GetByID(ctx, memberID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListByMember(ctx, s.db, memberID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return items, nil
}

func (s *Service) executeOne(ctx context.Context, memberID snowflake.ID, req domain.ExecuteRequest) (out domain.Liquidation, err error) {
	ctx, span := tracing.Start(ctx, "liquidation.executeOne",
		attribute.String("member_id", memberID.String()),
		attribute.String("liquidation_type", string(req.Type)),
	)
	defer func() { tracing.End(span, err) }()

	if memberID == 0 {
		return domain.Liquidation{}, domain.ErrInvalidMember
	}

	now := s.clock.Now().UTC()
	fiscalYear := fiscal.Year(now)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		accounts, err := s.ledger.LockMemberAccountsTx(ctx, tx, memberID)
		if err != nil {
			return err
		}

		// Read after the account locks so a concurrent liquidation of the
		// same member has either committed or not started.
		member, err := s.members.GetByIDTx(ctx, tx, memberID)
		if err != nil {
			if errors.Is(err, memberdomain.ErrNotFound) {
				return apperror.Wrap(domain.ErrInvalidMember, "member %s not found", memberID)
			}
			return err
		}

		existing, err := s.repo.FindByMemberAndYear(ctx, tx, memberID, fiscalYear)
		if err != nil {
			return apperror.Internal(err)
		}
		if existing != nil {
			return apperror.Wrap(domain.ErrAlreadyLiquidated, "member %s fiscal year %d", memberID, fiscalYear)
		}

		if !member.Active() {
			return domain.ErrInactiveMember
		}
		if len(accounts) == 0 {
			return domain.ErrNoAccounts
		}

		if req.Type == domain.TypePeriodic {
			last, err := s.repo.LastForMember(ctx, tx, memberID)
			if err != nil {
				return apperror.Internal(err)
			}
			if eligible, next := s.periodicEligibility(last, fiscalYear); !eligible {
				return apperror.Wrap(domain.ErrIntervalNotElapsed, "next periodic liquidation in fiscal year %d", *next)
			}
		}

		balances := make(map[ledgerdomain.AccountType]decimal.Decimal, len(accounts))
		for _, account := range accounts {
			balance, err := s.ledger.BalanceTx(ctx, tx, account.ID)
			if err != nil {
				return err
			}
			if balance.IsNegative() {
				return apperror.Internal(fmt.Errorf("account %s has negative balance %s", account.ID, balance.StringFixed(2)))
			}
			balances[account.AccountType] = balance
		}

		receipt, err := s.receipts.IssueTx(ctx, tx, member.CooperativeID, now)
		if err != nil {
			return err
		}

		total := decimal.Zero
		for _, account := range orderAccounts(accounts) {
			balance := balances[account.AccountType]
			if balance.IsZero() {
				continue
			}
			if _, err := s.ledger.DebitTx(ctx, tx, ledgerdomain.DebitRequest{
				AccountID: account.ID,
				Type:      ledgerdomain.TransactionTypeLiquidation,
				Amount:    balance,
				Date:      now,
				Note:      liquidationNote(req.Type, fiscalYear, req.Notes),
				ReceiptID: &receipt.ID,
			}); err != nil {
				if errors.Is(err, ledgerdomain.ErrInsufficientBalance) {
					return fmt.Errorf("%w: %w", domain.ErrInsufficientBalance, err)
				}
				return err
			}
			total = total.Add(balance)
		}

		liquidation := domain.Liquidation{
			ID:                  s.genID.Generate(),
			CooperativeID:       member.CooperativeID,
			MemberID:            memberID,
			FiscalYear:          fiscalYear,
			Type:                req.Type,
			SavingsAmount:       balances[ledgerdomain.AccountTypeSavings].Round(2),
			ContributionsAmount: balances[ledgerdomain.AccountTypeContributions].Round(2),
			SurplusAmount:       balances[ledgerdomain.AccountTypeSurplus].Round(2),
			TotalAmount:         total.Round(2),
			MemberContinues:     req.MemberContinues && req.Type == domain.TypePeriodic,
			Notes:               req.Notes,
			ReceiptID:           receipt.ID,
			ExecutedAt:          now,
		}
		if req.ExecutedBy != "" {
			executedBy := req.ExecutedBy
			liquidation.ExecutedBy = &executedBy
		}
		if err := s.repo.Insert(ctx, tx, &liquidation); err != nil {
			if dbpkg.IsDuplicateKeyErr(err) {
				return domain.ErrAlreadyLiquidated
			}
			return apperror.Internal(err)
		}

		if !liquidation.MemberContinues {
			if err := s.members.Deactivate(ctx, tx, memberID); err != nil {
				return err
			}
		}

		s.audit(ctx, tx, liquidation, receipt.FormattedNumber)
		out = liquidation
		return nil
	})
	if err != nil {
		return domain.Liquidation{}, err
	}
	return out, nil
}

// periodicEligibility applies the interval policy against the member's most
// recent liquidation. next is the first fiscal year a periodic liquidation
// would be allowed, or nil when there is no restriction.
func (s *Service) periodicEligibility(last *domain.Liquidation, currentYear int) (bool, *int) {
	interval := s.policy.Get().Liquidation.PeriodicIntervalYears
	if interval <= 0 || last == nil {
		return true, nil
	}
	next := last.FiscalYear + interval
	return fiscal.YearsBetween(last.FiscalYear, currentYear) >= interval, &next
}

func (s *Service) audit(ctx context.Context, tx *gorm.DB, l domain.Liquidation, receiptNumber string) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(ctx, tx, auditdomain.Entry{
		CooperativeID: l.CooperativeID,
		ActorID:       stringValue(l.ExecutedBy),
		Action:        "liquidation.executed",
		TargetType:    "member",
		TargetID:      l.MemberID.String(),
		Metadata: map[string]any{
			"liquidation_id":   l.ID.String(),
			"type":             string(l.Type),
			"fiscal_year":      l.FiscalYear,
			"total":            l.TotalAmount.StringFixed(2),
			"receipt":          receiptNumber,
			"member_continues": l.MemberContinues,
		},
	}); err != nil {
		s.log.Warn("failed to write liquidation audit log", zap.Error(err))
	}
}

func orderAccounts(accounts []ledgerdomain.Account) []ledgerdomain.Account {
	byType := make(map[ledgerdomain.AccountType]ledgerdomain.Account, len(accounts))
	for _, account := range accounts {
		byType[account.AccountType] = account
	}
	ordered := make([]ledgerdomain.Account, 0, len(accounts))
	for _, accountType := range ledgerdomain.AccountTypes() {
		if account, ok := byType[accountType]; ok {
			ordered = append(ordered, account)
		}
	}
	return ordered
}

func liquidationNote(t domain.Type, fiscalYear int, notes string) string {
	note := fmt.Sprintf("%s liquidation FY%d", t, fiscalYear)
	if notes != "" {
		note += ": " + notes
	}
	return note
}

func failed(memberID snowflake.ID, err error) domain.Result {
	return domain.Result{MemberID: memberID, Err: err, Error: err.Error()}
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
