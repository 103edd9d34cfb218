package coopcontext

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// CooperativeKey is the context key for the active cooperative ID.
type CooperativeKey struct{}

// ActorKey is the context key for the acting user (reviewer, operator).
type ActorKey struct{}

// WithCooperativeID stores the cooperative ID in the context.
func WithCooperativeID(ctx context.Context, cooperativeID int64) context.Context {
	return context.WithValue(ctx, CooperativeKey{}, cooperativeID)
}

// CooperativeIDFromContext returns the cooperative ID from context, if set.
func CooperativeIDFromContext(ctx context.Context) (int64, bool) {
	if ctx == nil {
		return 0, false
	}
	switch typed := ctx.Value(CooperativeKey{}).(type) {
	case int64:
		return typed, typed != 0
	case int:
		return int64(typed), typed != 0
	case snowflake.ID:
		return typed.Int64(), typed != 0
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil && parsed != 0 {
			return parsed.Int64(), true
		}
	}
	return 0, false
}

// WithActor stores the acting user ID in the context.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, ActorKey{}, strings.TrimSpace(actorID))
}

// ActorFromContext returns the acting user ID, or "" when unset.
func ActorFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	actor, _ := ctx.Value(ActorKey{}).(string)
	return actor
}
