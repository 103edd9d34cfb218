package service_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/coopledger/internal/apperror"
	"github.com/smallbiznis/coopledger/internal/coopcontext"
	ledgerdomain "github.com/smallbiznis/coopledger/internal/ledger/domain"
	receiptdomain "github.com/smallbiznis/coopledger/internal/receipt/domain"
	"github.com/smallbiznis/coopledger/internal/testkit"
	"github.com/smallbiznis/coopledger/internal/withdrawal/domain"
	"github.com/smallbiznis/coopledger/internal/withdrawal/repository"
	"github.com/smallbiznis/coopledger/internal/withdrawal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newService(kit *testkit.Kit) domain.Service {
	return service.New(service.Params{
		DB:       kit.DB,
		Log:      kit.Log,
		GenID:    kit.GenID,
		Repo:     repository.Provide(),
		Ledger:   kit.Ledger,
		Members:  kit.Members,
		AuditSvc: kit.Audit,
		Clock:    kit.Clock,
		Policy:   kit.Policy,
	})
}

func amount(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestSubmitValidation(t *testing.T) {
	kit := testkit.New(t)
	svc := newService(kit)
	ctx := kit.Context()

	ana, anaAccounts := kit.Enroll(t, "Ana")
	_, benAccounts := kit.Enroll(t, "Ben")
	kit.Deposit(t, ana.ID, ledgerdomain.AccountTypeSavings, "50.00")
	kit.Deposit(t, ana.ID, ledgerdomain.AccountTypeContributions, "50.00")

	savings := anaAccounts[ledgerdomain.AccountTypeSavings].ID
	cases := []struct {
		name string
		req  domain.SubmitRequest
		want error
	}{
		{"zero amount", domain.SubmitRequest{MemberID: ana.ID, AccountID: savings, Amount: decimal.Zero}, domain.ErrInvalidAmount},
		{"unknown account", domain.SubmitRequest{MemberID: ana.ID, AccountID: 777, Amount: amount("1")}, domain.ErrInvalidAccount},
		{"foreign account", domain.SubmitRequest{MemberID: ana.ID, AccountID: benAccounts[ledgerdomain.AccountTypeSavings].ID, Amount: amount("1")}, domain.ErrAccountNotOwned},
		{"contributions account", domain.SubmitRequest{MemberID: ana.ID, AccountID: anaAccounts[ledgerdomain.AccountTypeContributions].ID, Amount: amount("1")}, domain.ErrAccountNotEligible},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Submit(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
			assert.True(t, apperror.IsKind(err, apperror.KindValidation))
		})
	}

	_, err := svc.Submit(ctx, domain.SubmitRequest{MemberID: ana.ID, AccountID: savings, Amount: amount("50.01")})
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.True(t, apperror.IsKind(err, apperror.KindInsufficientBalance))

	assert.Equal(t, int64(0), kit.Count(t, &domain.Request{}))
}

func TestApproveDebitsAndIssuesReceipt(t *testing.T) {
	kit := testkit.New(t)
	svc := newService(kit)
	ctx := kit.Context()

	ana, accounts := kit.Enroll(t, "Ana")
	savings := accounts[ledgerdomain.AccountTypeSavings].ID
	kit.Deposit(t, ana.ID, ledgerdomain.AccountTypeSavings, "100.00")

	request, err := svc.Submit(ctx, domain.SubmitRequest{MemberID: ana.ID, AccountID: savings, Amount: amount("30.00"), Notes: "school fees"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, request.Status)

	pending, err := svc.ListPending(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	approved, err := svc.Approve(ctx, request.ID, "treasurer")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, approved.Status)
	require.NotNil(t, approved.ReviewedBy)
	assert.Equal(t, "treasurer", *approved.ReviewedBy)
	require.NotNil(t, approved.TransactionID)
	require.NotNil(t, approved.ReceiptID)
	assert.Equal(t, "70.00", kit.Balance(t, savings))

	receipt, err := kit.Receipts.GetByID(ctx, *approved.ReceiptID)
	require.NoError(t, err)
	assert.Equal(t, "2025-0002", receipt.FormattedNumber)

	stored, err := svc.Get(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, stored.Status)
	assert.Equal(t, *approved.TransactionID, *stored.TransactionID)

	_, err = svc.Approve(ctx, request.ID, "treasurer")
	assert.ErrorIs(t, err, domain.ErrNotPending)
	_, err = svc.Reject(ctx, request.ID, "treasurer", "late")
	assert.ErrorIs(t, err, domain.ErrNotPending)
	assert.True(t, apperror.IsKind(err, apperror.KindConflict))
	assert.Equal(t, "70.00", kit.Balance(t, savings))
}

func TestApproveInsufficientBalanceLeavesRequestPending(t *testing.T) {
	kit := testkit.New(t)
	svc := newService(kit)
	ctx := kit.Context()

	ana, accounts := kit.Enroll(t, "Ana")
	savings := accounts[ledgerdomain.AccountTypeSavings].ID
	kit.Deposit(t, ana.ID, ledgerdomain.AccountTypeSavings, "40.00")

	first, err := svc.Submit(ctx, domain.SubmitRequest{MemberID: ana.ID, AccountID: savings, Amount: amount("30.00")})
	require.NoError(t, err)
	second, err := svc.Submit(ctx, domain.SubmitRequest{MemberID: ana.ID, AccountID: savings, Amount: amount("30.00")})
	require.NoError(t, err)

	_, err = svc.Approve(ctx, first.ID, "treasurer")
	require.NoError(t, err)
	receipts := kit.Count(t, &receiptdomain.Receipt{})

	_, err = svc.Approve(ctx, second.ID, "treasurer")
	assert.ErrorIs(t, err, ledgerdomain.ErrInsufficientBalance)
	assert.True(t, apperror.IsKind(err, apperror.KindInsufficientBalance))

	stored, err := svc.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
	assert.Nil(t, stored.ReviewedBy)
	assert.Equal(t, receipts, kit.Count(t, &receiptdomain.Receipt{}))
	assert.Equal(t, "10.00", kit.Balance(t, savings))
}

func TestRejectIsTerminal(t *testing.T) {
	kit := testkit.New(t)
	svc := newService(kit)
	ctx := coopcontext.WithActor(kit.Context(), "secretary")

	ana, accounts := kit.Enroll(t, "Ana")
	kit.Deposit(t, ana.ID, ledgerdomain.AccountTypeSavings, "10.00")

	request, err := svc.Submit(ctx, domain.SubmitRequest{MemberID: ana.ID, AccountID: accounts[ledgerdomain.AccountTypeSavings].ID, Amount: amount("5.00")})
	require.NoError(t, err)

	rejected, err := svc.Reject(ctx, request.ID, "", "  missing signature ")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, rejected.Status)
	assert.Equal(t, "missing signature", rejected.RejectionReason)
	assert.Equal(t, "secretary", *rejected.ReviewedBy)

	_, err = svc.Approve(ctx, request.ID, "treasurer")
	assert.ErrorIs(t, err, domain.ErrNotPending)
	assert.Equal(t, "10.00", kit.Balance(t, accounts[ledgerdomain.AccountTypeSavings].ID))
}

func TestReviewRequiresReviewerAndKnownRequest(t *testing.T) {
	kit := testkit.New(t)
	svc := newService(kit)

	_, err := svc.Approve(kit.Context(), 1, " ")
	assert.ErrorIs(t, err, domain.ErrInvalidReviewer)

	_, err = svc.Approve(kit.Context(), 1, "treasurer")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.ListPending(context.Background(), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidCooperative)
}

func TestConcurrentApprovalsDebitOnce(t *testing.T) {
	assertApprovalsDebitOnce(t, testkit.New(t))
}

func TestConcurrentApprovalsDebitOnceAcrossConnections(t *testing.T) {
	assertApprovalsDebitOnce(t, testkit.NewShared(t, 6))
}

func assertApprovalsDebitOnce(t *testing.T, kit *testkit.Kit) {
	t.Helper()
	svc := newService(kit)
	ctx := kit.Context()

	ana, accounts := kit.Enroll(t, "Ana")
	savings := accounts[ledgerdomain.AccountTypeSavings].ID
	kit.Deposit(t, ana.ID, ledgerdomain.AccountTypeSavings, "100.00")

	request, err := svc.Submit(ctx, domain.SubmitRequest{MemberID: ana.ID, AccountID: savings, Amount: amount("60.00")})
	require.NoError(t, err)

	var approved, conflicts atomic.Int32
	var g errgroup.Group
	for i := 0; i < 5; i++ {
		g.Go(func() error {
			_, err := svc.Approve(ctx, request.ID, "treasurer")
			switch {
			case err == nil:
				approved.Add(1)
			case apperror.IsKind(err, apperror.KindConflict):
				conflicts.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), approved.Load())
	assert.Equal(t, int32(4), conflicts.Load())
	assert.Equal(t, "40.00", kit.Balance(t, savings))

	txns, err := kit.Ledger.ListTransactions(ctx, savings)
	require.NoError(t, err)
	assert.Len(t, txns, 2)
}
