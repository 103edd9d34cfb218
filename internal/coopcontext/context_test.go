package coopcontext

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
)

func TestCooperativeIDFromContext(t *testing.T) {
	_, ok := CooperativeIDFromContext(context.Background())
	assert.False(t, ok)

	id, ok := CooperativeIDFromContext(WithCooperativeID(context.Background(), 42))
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	ctx := context.WithValue(context.Background(), CooperativeKey{}, snowflake.ID(7))
	id, ok = CooperativeIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)

	ctx = context.WithValue(context.Background(), CooperativeKey{}, " 9 ")
	id, ok = CooperativeIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, int64(9), id)

	_, ok = CooperativeIDFromContext(WithCooperativeID(context.Background(), 0))
	assert.False(t, ok)
}

func TestActor(t *testing.T) {
	assert.Equal(t, "", ActorFromContext(context.Background()))
	assert.Equal(t, "admin-1", ActorFromContext(WithActor(context.Background(), " admin-1 ")))
}
