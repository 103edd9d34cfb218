package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cenkalti/backoff/v5"
	"github.com/smallbiznis/coopledger/internal/apperror"
	"github.com/smallbiznis/coopledger/internal/clock"
	"github.com/smallbiznis/coopledger/internal/config"
	obsmetrics "github.com/smallbiznis/coopledger/internal/observability/metrics"
	"github.com/smallbiznis/coopledger/internal/observability/tracing"
	"github.com/smallbiznis/coopledger/internal/receipt/domain"
	"github.com/smallbiznis/coopledger/internal/receipt/format"
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
	Clock      clock.Clock          `optional:"true"`
	Policy     *config.PolicyHolder `optional:"true"`
	ObsMetrics *obsmetrics.Metrics  `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	clock      clock.Clock
	policy     *config.PolicyHolder
	obsMetrics *obsmetrics.Metrics
	template   string
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("receipt.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		clock:      clock.OrSystem(p.Clock),
		policy:     p.Policy,
		obsMetrics: p.ObsMetrics,
		template:   format.DefaultReceiptNumberTemplate,
	}
}

func (s *Service) Next(ctx context.Context, cooperativeID int64, year int) (domain.Receipt, error) {
	var receipt domain.Receipt
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		issued, err := s.issue(ctx, tx, cooperativeID, year)
		if err != nil {
			return err
		}
		receipt = issued
		return nil
	})
	if err != nil {
		return domain.Receipt{}, err
	}
	return receipt, nil
}

func (s *Service) IssueTx(ctx context.Context, tx *gorm.DB, cooperativeID int64, at time.Time) (domain.Receipt, error) {
	if tx == nil {
		return domain.Receipt{}, apperror.Internal(errors.New("receipt: transaction handle is required"))
	}
	return s.issue(ctx, tx, cooperativeID, at.UTC().Year())
}

func (s *Service) GenerateReceiptNumber(ctx context.Context, cooperativeID int64) (string, error) {
	receipt, err := s.Next(ctx, cooperativeID, s.clock.Now().UTC().Year())
	if err != nil {
		return "", err
	}
	return receipt.FormattedNumber, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Receipt, error) {
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Receipt{}, apperror.Internal(err)
	}
	if item == nil {
		return domain.Receipt{}, domain.ErrNotFound
	}
	return *item, nil
}

// issue retries lost sequence races. Each attempt runs in a savepoint so a
// failed attempt leaves the caller's transaction usable.
func (s *Service) issue(ctx context.Context, tx *gorm.DB, cooperativeID int64, year int) (receipt domain.Receipt, err error) {
	if cooperativeID <= 0 {
		return domain.Receipt{}, domain.ErrInvalidCooperative
	}
	if year <= 0 {
		return domain.Receipt{}, domain.ErrInvalidYear
	}

	ctx, span := tracing.Start(ctx, "receipt.issue",
		attribute.Int64("cooperative_id", cooperativeID),
		attribute.Int("year", year),
	)
	defer func() { tracing.End(span, err) }()

	policy := s.policy.Get().Receipt
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = policy.RetryInitialInterval
	if retry.InitialInterval <= 0 {
		retry.InitialInterval = time.Millisecond
	}

	attempt := 0
	op := func() (domain.Receipt, error) {
		attempt++
		var issued domain.Receipt
		err := tx.Transaction(func(sp *gorm.DB) error {
			r, err := s.issueOnce(ctx, sp, cooperativeID, year)
			if err != nil {
				return err
			}
			issued = r
			return nil
		})
		if err == nil {
			return issued, nil
		}
		if errors.Is(err, apperror.ErrReceiptSequenceConflict) {
			s.obsMetrics.RecordReceiptConflict(ctx)
			s.log.Debug("receipt sequence conflict",
				zap.Int64("cooperative_id", cooperativeID),
				zap.Int("year", year),
				zap.Int("attempt", attempt),
			)
			return domain.Receipt{}, err
		}
		return domain.Receipt{}, backoff.Permanent(err)
	}

	receipt, err = backoff.Retry(ctx, op,
		backoff.WithBackOff(retry),
		backoff.WithMaxTries(uint(policy.MaxAttempts)),
	)
	if err != nil {
		if errors.Is(err, apperror.ErrReceiptSequenceConflict) {
			s.log.Warn("receipt sequence retries exhausted",
				zap.Int64("cooperative_id", cooperativeID),
				zap.Int("year", year),
				zap.Int("attempts", attempt),
			)
			return domain.Receipt{}, fmt.Errorf("%w: %w", domain.ErrSequenceExhausted, err)
		}
		return domain.Receipt{}, apperror.Internal(err)
	}

	s.obsMetrics.RecordReceiptIssued(ctx)
	return receipt, nil
}

func (s *Service) issueOnce(ctx context.Context, tx *gorm.DB, cooperativeID int64, year int) (domain.Receipt, error) {
	now := s.clock.Now().UTC()

	if err := s.repo.EnsureCounter(ctx, tx, cooperativeID, year, now); err != nil {
		return domain.Receipt{}, classify(err)
	}

	counter, err := s.repo.LockCounter(ctx, tx, cooperativeID, year)
	if err != nil {
		return domain.Receipt{}, classify(err)
	}
	if counter == nil {
		return domain.Receipt{}, apperror.ErrReceiptSequenceConflict
	}

	next := counter.LastSequence + 1
	advanced, err := s.repo.AdvanceCounter(ctx, tx, cooperativeID, year, counter.LastSequence, next, now)
	if err != nil {
		return domain.Receipt{}, classify(err)
	}
	if !advanced {
		return domain.Receipt{}, apperror.ErrReceiptSequenceConflict
	}

	number, err := format.FormatReceiptNumber(s.template, year, next)
	if err != nil {
		return domain.Receipt{}, apperror.Internal(err)
	}

	receipt := domain.Receipt{
		ID:              s.genID.Generate(),
		CooperativeID:   cooperativeID,
		Year:            year,
		Sequence:        next,
		FormattedNumber: number,
		IssuedAt:        now,
	}
	if err := s.repo.Insert(ctx, tx, &receipt); err != nil {
		return domain.Receipt{}, classify(err)
	}
	return receipt, nil
}

func classify(err error) error {
	if dbpkg.IsDuplicateKeyErr(err) || dbpkg.IsSerializationErr(err) {
		return apperror.ErrReceiptSequenceConflict
	}
	return apperror.Internal(err)
}
