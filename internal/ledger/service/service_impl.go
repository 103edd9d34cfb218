package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/coopledger/internal/apperror"
	auditdomain "github.com/smallbiznis/coopledger/internal/audit/domain"
	"github.com/smallbiznis/coopledger/internal/clock"
	"github.com/smallbiznis/coopledger/internal/coopcontext"
	"github.com/smallbiznis/coopledger/internal/fiscal"
	"github.com/smallbiznis/coopledger/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/coopledger/internal/observability/metrics"
	"github.com/smallbiznis/coopledger/internal/observability/tracing"
	receiptdomain "github.com/smallbiznis/coopledger/internal/receipt/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxAmount is the largest value a numeric(12,2) column holds.
var maxAmount = decimal.RequireFromString("9999999999.99")

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	Receipts   receiptdomain.Service
	AuditSvc   auditdomain.Service `optional:"true"`
	Clock      clock.Clock         `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	receipts   receiptdomain.Service
	auditSvc   auditdomain.Service
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		receipts:   p.Receipts,
		auditSvc:   p.AuditSvc,
		clock:      clock.OrSystem(p.Clock),
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) AppendTransaction(ctx context.Context, req domain.AppendTransactionRequest) (domain.Transaction, error) {
	txnType := domain.TransactionType(strings.TrimSpace(string(req.Type)))
	if !txnType.Valid() {
		return domain.Transaction{}, domain.ErrInvalidTransactionType
	}
	if txnType.Reserved() {
		return domain.Transaction{}, domain.ErrReservedTransactionType
	}
	if err := validateAmount(req.Amount); err != nil {
		return domain.Transaction{}, err
	}
	if req.AccountID == 0 {
		return domain.Transaction{}, domain.ErrInvalidAccount
	}
	if req.Pending && txnType.IsDebit() {
		return domain.Transaction{}, domain.ErrPendingDebit
	}

	ctx, span := tracing.Start(ctx, "ledger.AppendTransaction",
		attribute.String("transaction_type", string(txnType)),
	)
	var out domain.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if txnType.IsDebit() {
			txn, err := s.DebitTx(ctx, tx, domain.DebitRequest{
				AccountID: req.AccountID,
				Type:      txnType,
				Amount:    req.Amount,
				Date:      req.Date,
				Note:      req.Note,
			})
			if err != nil {
				return err
			}
			out = txn
			return nil
		}

		account, err := s.findAccount(ctx, tx, req.AccountID)
		if err != nil {
			return err
		}
		txn, err := s.credit(ctx, tx, account, txnType, req.Amount, req.Date, req.Note, req.Pending, nil)
		if err != nil {
			return err
		}
		out = txn
		return nil
	})
	tracing.End(span, err)
	if err != nil {
		return domain.Transaction{}, err
	}

	if out.Status == domain.TransactionStatusCompleted {
		s.obsMetrics.RecordTransaction(ctx, string(out.TransactionType))
	}
	return out, nil
}

func (s *Service) DebitTx(ctx context.Context, tx *gorm.DB, req domain.DebitRequest) (domain.Transaction, error) {
	if tx == nil {
		return domain.Transaction{}, apperror.Internal(errors.New("ledger: transaction handle is required"))
	}
	if !req.Type.IsDebit() {
		return domain.Transaction{}, domain.ErrInvalidTransactionType
	}
	if err := validateAmount(req.Amount); err != nil {
		return domain.Transaction{}, err
	}

	locked, err := s.repo.LockAccounts(ctx, tx, req.AccountID)
	if err != nil {
		return domain.Transaction{}, apperror.Internal(err)
	}
	if len(locked) == 0 {
		return domain.Transaction{}, domain.ErrInvalidAccount
	}
	account := locked[0]
	if err := s.checkCooperative(ctx, account); err != nil {
		return domain.Transaction{}, err
	}

	balance, err := s.BalanceTx(ctx, tx, account.ID)
	if err != nil {
		return domain.Transaction{}, err
	}
	if req.Amount.GreaterThan(balance) {
		return domain.Transaction{}, apperror.Wrap(domain.ErrInsufficientBalance,
			"account %s balance %s below %s", account.ID, balance.StringFixed(2), req.Amount.StringFixed(2))
	}

	receiptID := req.ReceiptID
	if receiptID == nil {
		receipt, err := s.receipts.IssueTx(ctx, tx, account.CooperativeID, s.clock.Now())
		if err != nil {
			return domain.Transaction{}, err
		}
		receiptID = &receipt.ID
	}

	txn := s.newTransaction(account.ID, req.Type, req.Amount, req.Date, req.Note, domain.TransactionStatusCompleted)
	txn.ReceiptID = receiptID
	if err := s.repo.InsertTransaction(ctx, tx, &txn); err != nil {
		return domain.Transaction{}, apperror.Internal(err)
	}
	return txn, nil
}

func (s *Service) credit(ctx context.Context, tx *gorm.DB, account domain.Account, txnType domain.TransactionType, amount decimal.Decimal, date time.Time, note string, pending bool, receiptID *snowflake.ID) (domain.Transaction, error) {
	status := domain.TransactionStatusCompleted
	if pending {
		status = domain.TransactionStatusPending
	}

	txn := s.newTransaction(account.ID, txnType, amount, date, note, status)
	if status == domain.TransactionStatusCompleted {
		if receiptID == nil {
			receipt, err := s.receipts.IssueTx(ctx, tx, account.CooperativeID, s.clock.Now())
			if err != nil {
				return domain.Transaction{}, err
			}
			receiptID = &receipt.ID
		}
		txn.ReceiptID = receiptID
	}

	if err := s.repo.InsertTransaction(ctx, tx, &txn); err != nil {
		return domain.Transaction{}, apperror.Internal(err)
	}
	return txn, nil
}

func (s *Service) SettleTransaction(ctx context.Context, id snowflake.ID, status domain.TransactionStatus) (domain.Transaction, error) {
	if status != domain.TransactionStatusCompleted && status != domain.TransactionStatusReversed {
		return domain.Transaction{}, domain.ErrInvalidStatus
	}

	var out domain.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, err := s.repo.LockTransaction(ctx, tx, id)
		if err != nil {
			return apperror.Internal(err)
		}
		if txn == nil {
			return domain.ErrTransactionNotFound
		}
		if txn.Status != domain.TransactionStatusPending {
			return apperror.Wrap(domain.ErrTransactionNotPending, "transaction %s is %s", txn.ID, txn.Status)
		}

		account, err := s.findAccount(ctx, tx, txn.AccountID)
		if err != nil {
			return err
		}

		var receiptID *snowflake.ID
		if status == domain.TransactionStatusCompleted {
			receipt, err := s.receipts.IssueTx(ctx, tx, account.CooperativeID, s.clock.Now())
			if err != nil {
				return err
			}
			receiptID = &receipt.ID
		}

		settled, err := s.repo.SettleTransaction(ctx, tx, txn.ID, status, receiptID)
		if err != nil {
			return apperror.Internal(err)
		}
		if !settled {
			return domain.ErrTransactionNotPending
		}

		txn.Status = status
		txn.ReceiptID = receiptID
		out = *txn

		s.audit(ctx, tx, account.CooperativeID, "ledger.transaction_settled", "transaction", txn.ID.String(), map[string]any{
			"status":     string(status),
			"account_id": account.ID.String(),
		})
		return nil
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	if out.Status == domain.TransactionStatusCompleted {
		s.obsMetrics.RecordTransaction(ctx, string(out.TransactionType))
	}
	return out, nil
}

func (s *Service) Transfer(ctx context.Context, req domain.TransferRequest) (domain.TransferResult, error) {
	if req.FromAccountID == 0 || req.ToAccountID == 0 || req.FromAccountID == req.ToAccountID {
		return domain.TransferResult{}, domain.ErrInvalidTransfer
	}
	if err := validateAmount(req.Amount); err != nil {
		return domain.TransferResult{}, err
	}

	var out domain.TransferResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		accounts, err := s.repo.LockAccounts(ctx, tx, req.FromAccountID, req.ToAccountID)
		if err != nil {
			return apperror.Internal(err)
		}
		if len(accounts) != 2 {
			return domain.ErrInvalidAccount
		}
		from, to := accounts[0], accounts[1]
		if from.ID != req.FromAccountID {
			from, to = to, from
		}
		if from.MemberID != to.MemberID {
			return apperror.Wrap(domain.ErrInvalidTransfer, "accounts belong to different members")
		}
		if err := s.checkCooperative(ctx, from); err != nil {
			return err
		}

		receipt, err := s.receipts.IssueTx(ctx, tx, from.CooperativeID, s.clock.Now())
		if err != nil {
			return err
		}

		outTxn, err := s.DebitTx(ctx, tx, domain.DebitRequest{
			AccountID: from.ID,
			Type:      domain.TransactionTypeTransferOut,
			Amount:    req.Amount,
			Date:      req.Date,
			Note:      req.Note,
			ReceiptID: &receipt.ID,
		})
		if err != nil {
			return err
		}
		inTxn, err := s.credit(ctx, tx, to, domain.TransactionTypeTransferIn, req.Amount, req.Date, req.Note, false, &receipt.ID)
		if err != nil {
			return err
		}

		out = domain.TransferResult{Out: outTxn, In: inTxn, ReceiptID: receipt.ID}
		return nil
	})
	if err != nil {
		return domain.TransferResult{}, err
	}

	s.obsMetrics.RecordTransaction(ctx, string(domain.TransactionTypeTransferOut))
	s.obsMetrics.RecordTransaction(ctx, string(domain.TransactionTypeTransferIn))
	return out, nil
}

func (s *Service) ListTransactions(ctx context.Context, accountID snowflake.ID) ([]domain.Transaction, error) {
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListTransactions(ctx, s.db, accountID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return items, nil
}

func (s *Service) CreateDeposit(ctx context.Context, req domain.CreateDepositRequest) (domain.Transaction, error) {
	if req.MemberID == 0 {
		return domain.Transaction{}, domain.ErrInvalidAccount
	}
	accountType := domain.AccountType(strings.ToLower(strings.TrimSpace(string(req.AccountType))))
	if !accountType.Valid() {
		return domain.Transaction{}, domain.ErrInvalidAccountType
	}

	account, err := s.repo.FindAccountByType(ctx, s.db, req.MemberID, accountType)
	if err != nil {
		return domain.Transaction{}, apperror.Internal(err)
	}
	if account == nil {
		return domain.Transaction{}, apperror.Wrap(domain.ErrInvalidAccount, "member %s has no %s account", req.MemberID, accountType)
	}

	return s.AppendTransaction(ctx, domain.AppendTransactionRequest{
		AccountID: account.ID,
		Type:      domain.TransactionTypeDeposit,
		Amount:    req.Amount,
		Date:      req.Date,
		Note:      req.Note,
	})
}

func (s *Service) GetAccount(ctx context.Context, id snowflake.ID) (domain.Account, error) {
	account, err := s.repo.FindAccount(ctx, s.db, id)
	if err != nil {
		return domain.Account{}, apperror.Internal(err)
	}
	if account == nil {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	if err := s.checkCooperative(ctx, *account); err != nil {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return *account, nil
}

func (s *Service) ListMemberAccounts(ctx context.Context, memberID snowflake.ID) ([]domain.Account, error) {
	items, err := s.repo.ListMemberAccounts(ctx, s.db, memberID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return items, nil
}

func (s *Service) OpenAccountsTx(ctx context.Context, tx *gorm.DB, cooperativeID int64, memberID snowflake.ID) ([]domain.Account, error) {
	if cooperativeID <= 0 {
		return nil, domain.ErrInvalidCooperative
	}
	now := s.clock.Now().UTC()
	accounts := make([]domain.Account, 0, len(domain.AccountTypes()))
	for _, accountType := range domain.AccountTypes() {
		account := domain.Account{
			ID:            s.genID.Generate(),
			CooperativeID: cooperativeID,
			MemberID:      memberID,
			AccountType:   accountType,
			CreatedAt:     now,
		}
		if err := s.repo.InsertAccount(ctx, tx, &account); err != nil {
			return nil, apperror.Internal(err)
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func (s *Service) LockMemberAccountsTx(ctx context.Context, tx *gorm.DB, memberID snowflake.ID) ([]domain.Account, error) {
	accounts, err := s.repo.LockMemberAccounts(ctx, tx, memberID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return accounts, nil
}

func (s *Service) findAccount(ctx context.Context, db *gorm.DB, id snowflake.ID) (domain.Account, error) {
	account, err := s.repo.FindAccount(ctx, db, id)
	if err != nil {
		return domain.Account{}, apperror.Internal(err)
	}
	if account == nil {
		return domain.Account{}, domain.ErrInvalidAccount
	}
	if err := s.checkCooperative(ctx, *account); err != nil {
		return domain.Account{}, err
	}
	return *account, nil
}

// checkCooperative rejects accounts of another cooperative when the context
// is scoped to one.
func (s *Service) checkCooperative(ctx context.Context, account domain.Account) error {
	cooperativeID, ok := coopcontext.CooperativeIDFromContext(ctx)
	if ok && cooperativeID != account.CooperativeID {
		return domain.ErrInvalidAccount
	}
	return nil
}

func (s *Service) newTransaction(accountID snowflake.ID, txnType domain.TransactionType, amount decimal.Decimal, date time.Time, note string, status domain.TransactionStatus) domain.Transaction {
	now := s.clock.Now().UTC()
	if date.IsZero() {
		date = now
	}
	date = date.UTC()
	return domain.Transaction{
		ID:              s.genID.Generate(),
		AccountID:       accountID,
		TransactionType: txnType,
		Amount:          amount.Round(2),
		Status:          status,
		TransactionDate: date,
		FiscalYear:      fiscal.Year(date),
		Note:            strings.TrimSpace(note),
		CreatedAt:       now,
	}
}

func (s *Service) audit(ctx context.Context, tx *gorm.DB, cooperativeID int64, action, targetType, targetID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(ctx, tx, auditdomain.Entry{
		CooperativeID: cooperativeID,
		Action:        action,
		TargetType:    targetType,
		TargetID:      targetID,
		Metadata:      metadata,
	}); err != nil {
		s.log.Warn("failed to write ledger audit log", zap.String("action", action), zap.Error(err))
	}
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return domain.ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(2)) {
		return apperror.Wrap(domain.ErrInvalidAmount, "more than two decimal places")
	}
	if amount.GreaterThan(maxAmount) {
		return apperror.Wrap(domain.ErrInvalidAmount, "exceeds %s", maxAmount.StringFixed(2))
	}
	return nil
}
