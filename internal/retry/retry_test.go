package retry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fetchkit/fetchkit/internal/retry"
)

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0

	got, err := retry.Do(context.Background(), 3, func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("transient")
		}

		return "session", nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "session", got)
	assert.Equal(t, 2, attempts)
}

func TestDoExhaustsBudget(t *testing.T) {
	boom := errors.New("no session")
	attempts := 0
	retried := 0

	_, err := retry.Do(context.Background(), 3, func() (struct{}, error) {
		attempts++

		return struct{}{}, boom
	}, func(err error) {
		retried++
		assert.ErrorIs(t, err, boom)
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 2, retried, "the final attempt is not retried")
}

func TestDoFirstAttemptSuccessSkipsRetryCallback(t *testing.T) {
	retried := 0

	got, err := retry.Do(context.Background(), 3, func() (int, error) {
		return 42, nil
	}, func(error) { retried++ })

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Zero(t, retried)
}
