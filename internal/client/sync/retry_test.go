package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dkarpov/papersync/internal/common"
	"github.com/dkarpov/papersync/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:       2,
		BaseDelay:        time.Millisecond,
		BreakerThreshold: 3,
		BreakerCooldown:  time.Minute,
	}
}

func TestExecute_RetriesRetryableUntilSuccess(t *testing.T) {
	m := NewRetryManager(fastPolicy(), testLogger())

	calls := 0
	err := m.Execute(context.Background(), "push", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("%w: connection refused", common.ErrNetwork)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExecute_NonRetryableFailsImmediately(t *testing.T) {
	m := NewRetryManager(fastPolicy(), testLogger())

	calls := 0
	err := m.Execute(context.Background(), "push", func(ctx context.Context) error {
		calls++
		return fmt.Errorf("%w: title required", common.ErrValidation)
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrValidation))
	assert.Equal(t, 1, calls, "validation errors must not be retried")
}

func TestExecute_VersionConflictNotRetried(t *testing.T) {
	m := NewRetryManager(fastPolicy(), testLogger())

	calls := 0
	err := m.Execute(context.Background(), "push", func(ctx context.Context) error {
		calls++
		return common.ErrVersionConflict
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrVersionConflict))
	assert.Equal(t, 1, calls)
}

func TestExecute_ServerFailuresRetriedAndCounted(t *testing.T) {
	m := NewRetryManager(fastPolicy(), testLogger())
	ctx := context.Background()

	calls := 0
	err := m.Execute(ctx, "push", func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return fmt.Errorf("%w: Internal Server Error", common.ErrInternal)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "a server-side failure is transient and retried")

	// a persistent outage must also open the circuit
	for i := 0; i < 3; i++ {
		err := m.Execute(ctx, "pull", func(ctx context.Context) error { return common.ErrInternal })
		require.True(t, errors.Is(err, common.ErrInternal))
	}
	err = m.Execute(ctx, "pull", func(ctx context.Context) error { return nil })
	assert.True(t, errors.Is(err, common.ErrCircuitOpen))
}

func TestExecute_BreakerOpensAfterThreshold(t *testing.T) {
	m := NewRetryManager(fastPolicy(), testLogger())
	ctx := context.Background()

	fail := func(ctx context.Context) error { return common.ErrNetwork }

	// each Execute exhausts its retries and counts as one failure
	for i := 0; i < 3; i++ {
		err := m.Execute(ctx, "push", fail)
		require.True(t, errors.Is(err, common.ErrNetwork))
	}

	// circuit now open: fail fast without invoking op
	calls := 0
	err := m.Execute(ctx, "push", func(ctx context.Context) error {
		calls++
		return nil
	})
	require.True(t, errors.Is(err, common.ErrCircuitOpen))
	assert.Equal(t, 0, calls)

	// a different key is unaffected
	err = m.Execute(ctx, "pull", func(ctx context.Context) error { return nil })
	require.NoError(t, err)
}

func TestExecute_BreakerHalfOpensAfterCooldown(t *testing.T) {
	m := NewRetryManager(fastPolicy(), testLogger())
	ctx := context.Background()

	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		_ = m.Execute(ctx, "push", func(ctx context.Context) error { return common.ErrNetwork })
	}
	err := m.Execute(ctx, "push", func(ctx context.Context) error { return nil })
	require.True(t, errors.Is(err, common.ErrCircuitOpen))

	// after cooldown a probe goes through and success closes the circuit
	now = now.Add(2 * time.Minute)
	err = m.Execute(ctx, "push", func(ctx context.Context) error { return nil })
	require.NoError(t, err)

	err = m.Execute(ctx, "push", func(ctx context.Context) error { return nil })
	require.NoError(t, err)
}

func TestStatus_ReportsBreakers(t *testing.T) {
	m := NewRetryManager(fastPolicy(), testLogger())
	ctx := context.Background()

	_ = m.Execute(ctx, "push", func(ctx context.Context) error { return common.ErrTimeout })

	st := m.Status()
	require.Len(t, st, 1)
	assert.Equal(t, "push", st[0].Key)
	assert.Equal(t, 1, st[0].ConsecutiveFailures)
	assert.False(t, st[0].Open)

	m.Reset()
	assert.Empty(t, m.Status())
}
