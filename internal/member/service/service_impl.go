package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coopledger/internal/apperror"
	auditdomain "github.com/smallbiznis/coopledger/internal/audit/domain"
	"github.com/smallbiznis/coopledger/internal/clock"
	"github.com/smallbiznis/coopledger/internal/coopcontext"
	ledgerdomain "github.com/smallbiznis/coopledger/internal/ledger/domain"
	"github.com/smallbiznis/coopledger/internal/member/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Ledger   ledgerdomain.Service
	AuditSvc auditdomain.Service `optional:"true"`
	Clock    clock.Clock         `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	ledger   ledgerdomain.Service
	auditSvc auditdomain.Service
	clock    clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("member.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		ledger:   p.Ledger,
		auditSvc: p.AuditSvc,
		clock:    clock.OrSystem(p.Clock),
	}
}

// Registry exposes the service as the narrower lifecycle interface.
func Registry(svc domain.Service) domain.Registry {
	return svc
}

func (s *Service) Enroll(ctx context.Context, req domain.EnrollRequest) (domain.EnrollResult, error) {
	cooperativeID, ok := coopcontext.CooperativeIDFromContext(ctx)
	if !ok || cooperativeID == 0 {
		return domain.EnrollResult{}, domain.ErrInvalidCooperative
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.EnrollResult{}, domain.ErrInvalidName
	}

	email := strings.TrimSpace(req.Email)
	if email != "" && !strings.Contains(email, "@") {
		return domain.EnrollResult{}, domain.ErrInvalidEmail
	}

	now := s.clock.Now().UTC()
	joinedAt := req.JoinedAt
	if joinedAt.IsZero() {
		joinedAt = now
	}

	member := domain.Member{
		ID:            s.genID.Generate(),
		CooperativeID: cooperativeID,
		Name:          name,
		Email:         email,
		Status:        domain.StatusActive,
		JoinedAt:      joinedAt.UTC(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var accounts []ledgerdomain.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &member); err != nil {
			return apperror.Internal(err)
		}
		opened, err := s.ledger.OpenAccountsTx(ctx, tx, cooperativeID, member.ID)
		if err != nil {
			return err
		}
		accounts = opened

		s.audit(ctx, tx, cooperativeID, "member.enrolled", member.ID, map[string]any{
			"name":  name,
			"email": email,
		})
		return nil
	})
	if err != nil {
		return domain.EnrollResult{}, err
	}

	s.log.Info("member enrolled",
		zap.String("member_id", member.ID.String()),
		zap.Int64("cooperative_id", cooperativeID),
	)
	return domain.EnrollResult{Member: member, Accounts: accounts}, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Member, error) {
	return s.GetByIDTx(ctx, s.db, id)
}

func (s *Service) GetByIDTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (domain.Member, error) {
	if id == 0 {
		return domain.Member{}, domain.ErrInvalidID
	}
	if tx == nil {
		tx = s.db
	}
	item, err := s.repo.FindByID(ctx, tx, id)
	if err != nil {
		return domain.Member{}, apperror.Internal(err)
	}
	if item == nil || !s.visible(ctx, *item) {
		return domain.Member{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListMemberRequest) ([]domain.Member, error) {
	cooperativeID, ok := coopcontext.CooperativeIDFromContext(ctx)
	if !ok || cooperativeID == 0 {
		return nil, domain.ErrInvalidCooperative
	}
	items, err := s.repo.List(ctx, s.db, cooperativeID, req)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return items, nil
}

func (s *Service) Deactivate(ctx context.Context, tx *gorm.DB, id snowflake.ID) error {
	if tx == nil {
		tx = s.db
	}
	item, err := s.repo.FindByID(ctx, tx, id)
	if err != nil {
		return apperror.Internal(err)
	}
	if item == nil {
		return domain.ErrNotFound
	}
	if !item.Active() {
		return nil
	}

	now := s.clock.Now().UTC()
	if _, err := s.repo.UpdateStatus(ctx, tx, id, domain.StatusActive, domain.StatusInactive, &now, now); err != nil {
		return apperror.Internal(err)
	}
	s.audit(ctx, tx, item.CooperativeID, "member.deactivated", id, nil)
	return nil
}

func (s *Service) Reactivate(ctx context.Context, id snowflake.ID) (domain.Member, error) {
	var out domain.Member
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return apperror.Internal(err)
		}
		if item == nil || !s.visible(ctx, *item) {
			return domain.ErrNotFound
		}
		if item.Active() {
			return domain.ErrAlreadyActive
		}

		now := s.clock.Now().UTC()
		updated, err := s.repo.UpdateStatus(ctx, tx, id, domain.StatusInactive, domain.StatusActive, nil, now)
		if err != nil {
			return apperror.Internal(err)
		}
		if !updated {
			return domain.ErrAlreadyActive
		}

		item.Status = domain.StatusActive
		item.DeactivatedAt = nil
		item.UpdatedAt = now
		out = *item

		s.audit(ctx, tx, item.CooperativeID, "member.reactivated", id, nil)
		return nil
	})
	if err != nil {
		return domain.Member{}, err
	}
	return out, nil
}

func (s *Service) visible(ctx context.Context, member domain.Member) bool {
	cooperativeID, ok := coopcontext.CooperativeIDFromContext(ctx)
	return !ok || cooperativeID == member.CooperativeID
}

func (s *Service) audit(ctx context.Context, tx *gorm.DB, cooperativeID int64, action string, memberID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(ctx, tx, auditdomain.Entry{
		CooperativeID: cooperativeID,
		Action:        action,
		TargetType:    "member",
		TargetID:      memberID.String(),
		Metadata:      metadata,
	}); err != nil {
		s.log.Warn("failed to write member audit log", zap.String("action", action), zap.Error(err))
	}
}

