package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf_UnwrapsWrappedError(t *testing.T) {
	err := fmt.Errorf("context: %w", NotFoundf("team %s", "t1"))
	assert.Equal(t, NotFound, KindOf(err))
}

func TestKindOf_DefaultsToInternalForPlainError(t *testing.T) {
	assert.Equal(t, Internal, KindOf(errors.New("boom")))
}

func TestIsRetryable_OnlyRetryableProviderErrors(t *testing.T) {
	assert.True(t, IsRetryable(ProviderError(true, nil, "timeout")))
	assert.False(t, IsRetryable(ProviderError(false, nil, "bad request")))
	assert.False(t, IsRetryable(Conflictf("locked")))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestError_IsMatchesByKindNotMessage(t *testing.T) {
	a := NotFoundf("goal %s", "g1")
	b := NotFoundf("task %s", "t1")
	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, Forbiddenf("nope")))
}

func TestWrap_PreservesCauseInUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	wrapped := Wrap(Internal, cause, "dial provider")
	require.ErrorIs(t, wrapped, cause)
	assert.Contains(t, wrapped.Error(), "connection refused")
}

func TestLockedf_IsDistinctKindFromConflict(t *testing.T) {
	locked := Lockedf("%q locked by agent %s, try again in %d seconds", "plan.md", "agent-1", 12)
	assert.Equal(t, Locked, KindOf(locked))
	assert.NotEqual(t, Conflict, KindOf(locked))
	assert.Contains(t, locked.Error(), "locked by agent agent-1")
}
