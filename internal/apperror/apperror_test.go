package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	errInvalidAmount := Validation("invalid_amount")

	wrapped := fmt.Errorf("append: %w", errInvalidAmount)
	assert.True(t, errors.Is(wrapped, errInvalidAmount))
	assert.Equal(t, KindValidation, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindValidation))
	assert.False(t, IsKind(wrapped, KindConflict))

	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestInternalKeepsClassifiedErrors(t *testing.T) {
	errNotFound := NotFound("account_not_found")
	assert.Same(t, errNotFound, Internal(errNotFound))

	raw := errors.New("connection reset")
	err := Internal(raw)
	assert.True(t, IsKind(err, KindInternal))
	assert.ErrorIs(t, err, raw)
	assert.Nil(t, Internal(nil))
}

func TestWrap(t *testing.T) {
	errConflict := Conflict("already_liquidated")
	err := Wrap(errConflict, "member %d fiscal year %d", 7, 2025)
	assert.ErrorIs(t, err, errConflict)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Contains(t, err.Error(), "member 7 fiscal year 2025")
}
