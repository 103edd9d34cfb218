package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coopledger/internal/audit/domain"
	"github.com/smallbiznis/coopledger/internal/audit/repository"
	"github.com/smallbiznis/coopledger/internal/coopcontext"
	dbpkg "github.com/smallbiznis/coopledger/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*gorm.DB, domain.Service) {
	t.Helper()
	db, err := dbpkg.NewTest(&domain.AuditLog{})
	require.NoError(t, err)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return db, NewService(Params{DB: db, Log: zap.NewNop(), GenID: node, Repo: repository.Provide()})
}

func TestAuditLogResolvesActorAndMasks(t *testing.T) {
	db, svc := newTestService(t)
	ctx := coopcontext.WithActor(coopcontext.WithCooperativeID(context.Background(), 7), "treasurer-1")

	err := svc.AuditLog(ctx, db, domain.Entry{
		Action:     "member.enrolled",
		TargetType: "member",
		TargetID:   "42",
		Metadata:   map[string]any{"email": "ana@example.com"},
	})
	require.NoError(t, err)

	logs, err := svc.List(ctx, domain.ListAuditLogRequest{TargetID: "42"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, int64(7), logs[0].CooperativeID)
	assert.Equal(t, string(domain.ActorTypeOperator), logs[0].ActorType)
	require.NotNil(t, logs[0].ActorID)
	assert.Equal(t, "treasurer-1", *logs[0].ActorID)
	assert.Equal(t, "****.com", logs[0].Metadata["email"])
}

func TestAuditLogRequiresActionAndCooperative(t *testing.T) {
	db, svc := newTestService(t)

	err := svc.AuditLog(context.Background(), db, domain.Entry{CooperativeID: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidAction)

	err = svc.AuditLog(context.Background(), db, domain.Entry{Action: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidCooperative)
}

func TestAuditLogFailureKeepsCallerTransaction(t *testing.T) {
	db, svc := newTestService(t)
	require.NoError(t, db.Exec(`CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)`).Error)
	require.NoError(t, db.Migrator().DropTable(&domain.AuditLog{}))

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`INSERT INTO notes (id, body) VALUES (1, 'kept')`).Error; err != nil {
			return err
		}
		auditErr := svc.AuditLog(context.Background(), tx, domain.Entry{CooperativeID: 1, Action: "note.created"})
		if auditErr == nil {
			return errors.New("expected audit failure")
		}
		return nil
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Table("notes").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
