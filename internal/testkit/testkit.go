// Package testkit wires the core services over an in-memory database for
// package tests.
package testkit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/coopledger/internal/audit/domain"
	auditrepo "github.com/smallbiznis/coopledger/internal/audit/repository"
	auditservice "github.com/smallbiznis/coopledger/internal/audit/service"
	"github.com/smallbiznis/coopledger/internal/clock"
	"github.com/smallbiznis/coopledger/internal/config"
	"github.com/smallbiznis/coopledger/internal/coopcontext"
	ledgerdomain "github.com/smallbiznis/coopledger/internal/ledger/domain"
	ledgerrepo "github.com/smallbiznis/coopledger/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/coopledger/internal/ledger/service"
	memberdomain "github.com/smallbiznis/coopledger/internal/member/domain"
	memberrepo "github.com/smallbiznis/coopledger/internal/member/repository"
	memberservice "github.com/smallbiznis/coopledger/internal/member/service"
	"github.com/smallbiznis/coopledger/internal/migration"
	receiptdomain "github.com/smallbiznis/coopledger/internal/receipt/domain"
	receiptrepo "github.com/smallbiznis/coopledger/internal/receipt/repository"
	receiptservice "github.com/smallbiznis/coopledger/internal/receipt/service"
	dbpkg "github.com/smallbiznis/coopledger/pkg/db"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CooperativeID is the cooperative every kit context is scoped to.
const CooperativeID int64 = 1

type Kit struct {
	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    *clock.FakeClock
	Policy   *config.PolicyHolder
	Receipts receiptdomain.Service
	Ledger   ledgerdomain.Service
	Members  memberdomain.Service
	Audit    auditdomain.Service
}

// New migrates a fresh database and wires the services. The clock starts
// on 2025-03-03, inside fiscal year 2024.
func New(t testing.TB) *Kit {
	t.Helper()

	db, err := dbpkg.NewTest(migration.Models()...)
	require.NoError(t, err)
	return build(t, db)
}

// NewShared is New over a file backed database with conns pooled
// connections, for tests that need transactions to contend for real.
func NewShared(t testing.TB, conns int) *Kit {
	t.Helper()

	db, err := dbpkg.NewTestFile(filepath.Join(t.TempDir(), "coopledger.db"), conns, migration.Models()...)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return build(t, db)
}

func build(t testing.TB, db *gorm.DB) *Kit {
	t.Helper()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	fake := clock.NewFakeClock(time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC))
	policy := config.DefaultPolicy()
	policy.Receipt.RetryInitialInterval = time.Millisecond
	holder := config.NewStaticPolicyHolder(policy)

	audit := auditservice.NewService(auditservice.Params{
		DB: db, Log: log, GenID: node, Repo: auditrepo.Provide(), Clock: fake,
	})
	receipts := receiptservice.New(receiptservice.Params{
		DB: db, Log: log, GenID: node, Repo: receiptrepo.Provide(), Clock: fake, Policy: holder,
	})
	ledger := ledgerservice.New(ledgerservice.Params{
		DB: db, Log: log, GenID: node, Repo: ledgerrepo.Provide(), Receipts: receipts, AuditSvc: audit, Clock: fake,
	})
	members := memberservice.New(memberservice.Params{
		DB: db, Log: log, GenID: node, Repo: memberrepo.Provide(), Ledger: ledger, AuditSvc: audit, Clock: fake,
	})

	return &Kit{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fake,
		Policy:   holder,
		Receipts: receipts,
		Ledger:   ledger,
		Members:  members,
		Audit:    audit,
	}
}

// Context is scoped to the kit cooperative.
func (k *Kit) Context() context.Context {
	return coopcontext.WithCooperativeID(context.Background(), CooperativeID)
}

// Enroll creates a member and returns it with its accounts keyed by type.
func (k *Kit) Enroll(t testing.TB, name string) (memberdomain.Member, map[ledgerdomain.AccountType]ledgerdomain.Account) {
	t.Helper()
	result, err := k.Members.Enroll(k.Context(), memberdomain.EnrollRequest{Name: name})
	require.NoError(t, err)

	accounts := make(map[ledgerdomain.AccountType]ledgerdomain.Account, len(result.Accounts))
	for _, account := range result.Accounts {
		accounts[account.AccountType] = account
	}
	return result.Member, accounts
}

// Deposit posts a completed deposit of amount into the member's account.
func (k *Kit) Deposit(t testing.TB, memberID snowflake.ID, accountType ledgerdomain.AccountType, amount string) ledgerdomain.Transaction {
	t.Helper()
	txn, err := k.Ledger.CreateDeposit(k.Context(), ledgerdomain.CreateDepositRequest{
		MemberID:    memberID,
		AccountType: accountType,
		Amount:      decimal.RequireFromString(amount),
	})
	require.NoError(t, err)
	return txn
}

// Balance returns the account balance formatted with two decimals.
func (k *Kit) Balance(t testing.TB, accountID snowflake.ID) string {
	t.Helper()
	balance, err := k.Ledger.GetBalance(k.Context(), accountID)
	require.NoError(t, err)
	return balance.StringFixed(2)
}

// Count returns the number of rows in model's table.
func (k *Kit) Count(t testing.TB, model any) int64 {
	t.Helper()
	var count int64
	require.NoError(t, k.DB.Model(model).Count(&count).Error)
	return count
}
