package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/smallbiznis/coopledger/internal/apperror"
	auditdomain "github.com/smallbiznis/coopledger/internal/audit/domain"
	"github.com/smallbiznis/coopledger/internal/coopcontext"
	ledgerdomain "github.com/smallbiznis/coopledger/internal/ledger/domain"
	"github.com/smallbiznis/coopledger/internal/member/domain"
	"github.com/smallbiznis/coopledger/internal/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestEnrollValidation(t *testing.T) {
	kit := testkit.New(t)

	_, err := kit.Members.Enroll(context.Background(), domain.EnrollRequest{Name: "Ana"})
	assert.ErrorIs(t, err, domain.ErrInvalidCooperative)

	_, err = kit.Members.Enroll(kit.Context(), domain.EnrollRequest{Name: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = kit.Members.Enroll(kit.Context(), domain.EnrollRequest{Name: "Ana", Email: "nope"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	assert.Equal(t, int64(0), kit.Count(t, &domain.Member{}))
	assert.Equal(t, int64(0), kit.Count(t, &ledgerdomain.Account{}))
}

func TestEnrollAndLifecycle(t *testing.T) {
	kit := testkit.New(t)
	ctx := kit.Context()

	result, err := kit.Members.Enroll(ctx, domain.EnrollRequest{Name: " Ana ", Email: "ana@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Ana", result.Member.Name)
	assert.True(t, result.Member.Active())
	assert.Len(t, result.Accounts, 3)

	accounts, err := kit.Ledger.ListMemberAccounts(ctx, result.Member.ID)
	require.NoError(t, err)
	assert.Len(t, accounts, 3)

	require.NoError(t, kit.Members.Deactivate(ctx, kit.DB, result.Member.ID))
	// A second deactivation is a no-op.
	require.NoError(t, kit.Members.Deactivate(ctx, kit.DB, result.Member.ID))

	member, err := kit.Members.GetByID(ctx, result.Member.ID)
	require.NoError(t, err)
	assert.False(t, member.Active())
	assert.NotNil(t, member.DeactivatedAt)

	active, err := kit.Members.List(ctx, domain.ListMemberRequest{ActiveOnly: true})
	require.NoError(t, err)
	assert.Empty(t, active)

	member, err = kit.Members.Reactivate(ctx, result.Member.ID)
	require.NoError(t, err)
	assert.True(t, member.Active())

	_, err = kit.Members.Reactivate(ctx, result.Member.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyActive)

	logs, err := kit.Audit.List(ctx, auditdomain.ListAuditLogRequest{TargetType: "member", TargetID: result.Member.ID.String()})
	require.NoError(t, err)
	assert.Len(t, logs, 3)
}

func TestMembersAreScopedToCooperative(t *testing.T) {
	kit := testkit.New(t)
	member, _ := kit.Enroll(t, "Ana")
	foreign := coopcontext.WithCooperativeID(context.Background(), 2)

	_, err := kit.Members.GetByID(foreign, member.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	items, err := kit.Members.List(foreign, domain.ListMemberRequest{})
	require.NoError(t, err)
	assert.Empty(t, items)

	items, err = kit.Members.List(kit.Context(), domain.ListMemberRequest{Search: "AN"})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestDeactivateUnknownMember(t *testing.T) {
	kit := testkit.New(t)
	err := kit.Members.Deactivate(kit.Context(), nil, 4242)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetByIDTxReadsThroughTransaction(t *testing.T) {
	kit := testkit.New(t)
	ctx := kit.Context()
	ana, _ := kit.Enroll(t, "Ana")
	errAbort := errors.New("abort")

	err := kit.DB.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, kit.Members.Deactivate(ctx, tx, ana.ID))

		inside, err := kit.Members.GetByIDTx(ctx, tx, ana.ID)
		require.NoError(t, err)
		assert.False(t, inside.Active())
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	after, err := kit.Members.GetByID(ctx, ana.ID)
	require.NoError(t, err)
	assert.True(t, after.Active())

	_, err = kit.Members.GetByIDTx(ctx, kit.DB, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}
