package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coopledger/internal/audit/domain"
	"github.com/smallbiznis/coopledger/internal/audit/masking"
	"github.com/smallbiznis/coopledger/internal/clock"
	"github.com/smallbiznis/coopledger/internal/coopcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Clock clock.Clock `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	clock clock.Clock
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: clock.OrSystem(p.Clock),
	}
}

func (s *Service) AuditLog(ctx context.Context, db *gorm.DB, entry domain.Entry) error {
	action := strings.TrimSpace(entry.Action)
	if action == "" {
		return domain.ErrInvalidAction
	}

	cooperativeID := entry.CooperativeID
	if cooperativeID == 0 {
		cooperativeID, _ = coopcontext.CooperativeIDFromContext(ctx)
	}
	if cooperativeID == 0 {
		return domain.ErrInvalidCooperative
	}

	targetType := strings.TrimSpace(entry.TargetType)
	if targetType == "" {
		targetType = "unknown"
	}

	actorType, actorID := s.resolveActor(ctx, entry.ActorType, entry.ActorID)

	payload := map[string]any{}
	for key, value := range masking.MaskFields(entry.Metadata, masking.SensitiveKeys...) {
		if key == "" {
			continue
		}
		payload[key] = value
	}

	record := domain.AuditLog{
		ID:            s.genID.Generate(),
		CooperativeID: cooperativeID,
		ActorType:     actorType,
		ActorID:       actorID,
		Action:        action,
		TargetType:    targetType,
		TargetID:      normalize(entry.TargetID),
		Metadata:      datatypes.JSONMap(payload),
		CreatedAt:     s.clock.Now().UTC(),
	}

	if db == nil {
		db = s.db
	}
	// The savepoint keeps a failed insert from aborting the caller's work.
	err := db.Transaction(func(sp *gorm.DB) error {
		return s.repo.Insert(ctx, sp, &record)
	})
	if err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req domain.ListAuditLogRequest) ([]domain.AuditLog, error) {
	if req.CooperativeID == 0 {
		req.CooperativeID, _ = coopcontext.CooperativeIDFromContext(ctx)
	}
	if req.CooperativeID == 0 {
		return nil, domain.ErrInvalidCooperative
	}
	if req.Limit <= 0 {
		req.Limit = 50
	}
	if req.Limit > 250 {
		req.Limit = 250
	}
	return s.repo.List(ctx, s.db, req)
}

func (s *Service) resolveActor(ctx context.Context, actorType domain.ActorType, actorID string) (string, *string) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		actorID = coopcontext.ActorFromContext(ctx)
	}
	if actorType == "" {
		if actorID != "" {
			actorType = domain.ActorTypeOperator
		} else {
			actorType = domain.ActorTypeSystem
		}
	}
	return string(actorType), normalize(actorID)
}

func normalize(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
