package service

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coopledger/internal/apperror"
	auditdomain "github.com/smallbiznis/coopledger/internal/audit/domain"
	"github.com/smallbiznis/coopledger/internal/clock"
	"github.com/smallbiznis/coopledger/internal/config"
	"github.com/smallbiznis/coopledger/internal/coopcontext"
	ledgerdomain "github.com/smallbiznis/coopledger/internal/ledger/domain"
	memberdomain "github.com/smallbiznis/coopledger/internal/member/domain"
	obsmetrics "github.com/smallbiznis/coopledger/internal/observability/metrics"
	"github.com/smallbiznis/coopledger/internal/observability/tracing"
	"github.com/smallbiznis/coopledger/internal/withdrawal/domain"
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
	members    memberdomain.Registry
	auditSvc   auditdomain.Service
	clock      clock.Clock
	policy     *config.PolicyHolder
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("withdrawal.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		ledger:     p.Ledger,
		members:    p.Members,
		auditSvc:   p.AuditSvc,
		clock:      clock.OrSystem(p.Clock),
		policy:     p.Policy,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Submit(ctx context.Context, req domain.SubmitRequest) (domain.Request, error) {
	if !req.Amount.IsPositive() || !req.Amount.Equal(req.Amount.Round(2)) {
		return domain.Request{}, domain.ErrInvalidAmount
	}
	if req.MemberID == 0 {
		return domain.Request{}, domain.ErrInvalidMember
	}
	if req.AccountID == 0 {
		return domain.Request{}, domain.ErrInvalidAccount
	}

	account, err := s.ledger.GetAccount(ctx, req.AccountID)
	if err != nil {
		if errors.Is(err, ledgerdomain.ErrAccountNotFound) {
			return domain.Request{}, domain.ErrInvalidAccount
		}
		return domain.Request{}, err
	}
	if account.MemberID != req.MemberID {
		return domain.Request{}, domain.ErrAccountNotOwned
	}
	if !slices.Contains(s.policy.Get().Withdrawal.AccountTypes, string(account.AccountType)) {
		return domain.Request{}, apperror.Wrap(domain.ErrAccountNotEligible, "account type %s", account.AccountType)
	}

	member, err := s.members.GetByID(ctx, req.MemberID)
	if err != nil {
		if errors.Is(err, memberdomain.ErrNotFound) {
			return domain.Request{}, domain.ErrInvalidMember
		}
		return domain.Request{}, err
	}
	if !member.Active() {
		return domain.Request{}, domain.ErrInactiveMember
	}

	balance, err := s.ledger.GetBalance(ctx, account.ID)
	if err != nil {
		return domain.Request{}, err
	}
	if req.Amount.GreaterThan(balance) {
		return domain.Request{}, apperror.Wrap(domain.ErrInsufficientBalance,
			"requested %s, available %s", req.Amount.StringFixed(2), balance.StringFixed(2))
	}

	now := s.clock.Now().UTC()
	request := domain.Request{
		ID:              s.genID.Generate(),
		CooperativeID:   account.CooperativeID,
		MemberID:        req.MemberID,
		AccountID:       account.ID,
		RequestedAmount: req.Amount,
		Status:          domain.StatusPending,
		Notes:           strings.TrimSpace(req.Notes),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &request); err != nil {
			return apperror.Internal(err)
		}
		s.audit(ctx, tx, request, "withdrawal.submitted", map[string]any{
			"amount": request.RequestedAmount.StringFixed(2),
		})
		return nil
	})
	if err != nil {
		return domain.Request{}, err
	}
	return request, nil
}

func (s *Service) Approve(ctx context.Context, requestID snowflake.ID, reviewerID string) (out domain.Request, err error) {
	reviewerID = s.reviewer(ctx, reviewerID)
	if reviewerID == "" {
		return domain.Request{}, domain.ErrInvalidReviewer
	}

	ctx, span := tracing.Start(ctx, "withdrawal.Approve", attribute.String("request_id", requestID.String()))
	defer func() { tracing.End(span, err) }()

	now := s.clock.Now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		request, err := s.claim(ctx, tx, requestID, domain.Review{
			Status:     domain.StatusApproved,
			ReviewedBy: reviewerID,
			ReviewedAt: now,
		})
		if err != nil {
			return err
		}

		txn, err := s.ledger.DebitTx(ctx, tx, ledgerdomain.DebitRequest{
			AccountID: request.AccountID,
			Type:      ledgerdomain.TransactionTypeWithdrawal,
			Amount:    request.RequestedAmount,
			Date:      now,
			Note:      request.Notes,
		})
		if err != nil {
			return err
		}
		if err := s.repo.AttachPosting(ctx, tx, request.ID, txn.ID, txn.ReceiptID); err != nil {
			return apperror.Internal(err)
		}

		request.Status = domain.StatusApproved
		request.ReviewedBy = &reviewerID
		request.ReviewedAt = &now
		request.UpdatedAt = now
		request.TransactionID = &txn.ID
		request.ReceiptID = txn.ReceiptID
		out = request

		s.audit(ctx, tx, request, "withdrawal.approved", map[string]any{
			"amount":         request.RequestedAmount.StringFixed(2),
			"transaction_id": txn.ID.String(),
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, ledgerdomain.ErrInsufficientBalance) {
			s.obsMetrics.RecordWithdrawalDecision(ctx, "insufficient_balance")
			s.log.Info("withdrawal approval refused",
				zap.String("request_id", requestID.String()),
				zap.Error(err),
			)
		}
		return domain.Request{}, err
	}

	s.obsMetrics.RecordWithdrawalDecision(ctx, string(domain.StatusApproved))
	s.obsMetrics.RecordTransaction(ctx, string(ledgerdomain.TransactionTypeWithdrawal))
	s.log.Info("withdrawal approved",
		zap.String("request_id", out.ID.String()),
		zap.String("reviewer", reviewerID),
	)
	return out, nil
}

func (s *Service) Reject(ctx context.Context, requestID snowflake.ID, reviewerID, reason string) (domain.Request, error) {
	reviewerID = s.reviewer(ctx, reviewerID)
	if reviewerID == "" {
		return domain.Request{}, domain.ErrInvalidReviewer
	}
	reason = strings.TrimSpace(reason)

	now := s.clock.Now().UTC()
	var out domain.Request
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		request, err := s.claim(ctx, tx, requestID, domain.Review{
			Status:          domain.StatusRejected,
			ReviewedBy:      reviewerID,
			ReviewedAt:      now,
			RejectionReason: reason,
		})
		if err != nil {
			return err
		}

		request.Status = domain.StatusRejected
		request.ReviewedBy = &reviewerID
		request.ReviewedAt = &now
		request.RejectionReason = reason
		request.UpdatedAt = now
		out = request

		s.audit(ctx, tx, request, "withdrawal.rejected", map[string]any{"reason": reason})
		return nil
	})
	if err != nil {
		return domain.Request{}, err
	}

	s.obsMetrics.RecordWithdrawalDecision(ctx, string(domain.StatusRejected))
	return out, nil
}

func (s *Service) Get(ctx context.Context, requestID snowflake.ID) (domain.Request, error) {
	item, err := s.repo.FindByID(ctx, s.db, requestID)
	if err != nil {
		return domain.Request{}, apperror.Internal(err)
	}
	if item == nil || !s.visible(ctx, *item) {
		return domain.Request{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) ListPending(ctx context.Context, cooperativeID int64) ([]domain.Request, error) {
	if cooperativeID == 0 {
		cooperativeID, _ = coopcontext.CooperativeIDFromContext(ctx)
	}
	if cooperativeID <= 0 {
		return nil, domain.ErrInvalidCooperative
	}
	items, err := s.repo.ListByStatus(ctx, s.db, cooperativeID, domain.StatusPending)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return items, nil
}

// claim moves a pending request to its review state inside tx. The
// conditional update holds the row until tx ends, so a concurrent reviewer
// either waits or finds the request terminal.
func (s *Service) claim(ctx context.Context, tx *gorm.DB, requestID snowflake.ID, review domain.Review) (domain.Request, error) {
	request, err := s.repo.FindByID(ctx, tx, requestID)
	if err != nil {
		return domain.Request{}, apperror.Internal(err)
	}
	if request == nil || !s.visible(ctx, *request) {
		return domain.Request{}, domain.ErrNotFound
	}

	claimed, err := s.repo.MarkReviewed(ctx, tx, requestID, review)
	if err != nil {
		return domain.Request{}, apperror.Internal(err)
	}
	if !claimed {
		current, err := s.repo.FindByID(ctx, tx, requestID)
		if err != nil {
			return domain.Request{}, apperror.Internal(err)
		}
		status := request.Status
		if current != nil {
			status = current.Status
		}
		return domain.Request{}, apperror.Wrap(domain.ErrNotPending, "request %s is %s", requestID, status)
	}
	return *request, nil
}

func (s *Service) reviewer(ctx context.Context, reviewerID string) string {
	reviewerID = strings.TrimSpace(reviewerID)
	if reviewerID == "" {
		reviewerID = coopcontext.ActorFromContext(ctx)
	}
	return reviewerID
}

func (s *Service) visible(ctx context.Context, request domain.Request) bool {
	cooperativeID, ok := coopcontext.CooperativeIDFromContext(ctx)
	return !ok || cooperativeID == request.CooperativeID
}

func (s *Service) audit(ctx context.Context, tx *gorm.DB, request domain.Request, action string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["member_id"] = request.MemberID.String()
	metadata["account_id"] = request.AccountID.String()
	if err := s.auditSvc.AuditLog(ctx, tx, auditdomain.Entry{
		CooperativeID: request.CooperativeID,
		Action:        action,
		TargetType:    "withdrawal_request",
		TargetID:      request.ID.String(),
		Metadata:      metadata,
	}); err != nil {
		s.log.Warn("failed to write withdrawal audit log", zap.String("action", action), zap.Error(err))
	}
}
