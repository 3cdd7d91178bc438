package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkarpov/papersync/internal/common"
	"github.com/dkarpov/papersync/internal/logging"
	"github.com/sethvargo/go-retry"
)

// RetryPolicy configures backoff and circuit breaking for remote calls.
type RetryPolicy struct {
	MaxRetries uint64
	BaseDelay  time.Duration
	// BreakerThreshold consecutive failures open the circuit for a key.
	BreakerThreshold int
	// BreakerCooldown is how long an open circuit rejects calls before a
	// probe is allowed through.
	BreakerCooldown time.Duration
}

// DefaultRetryPolicy mirrors the production defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:       3,
		BaseDelay:        500 * time.Millisecond,
		BreakerThreshold: 5,
		BreakerCooldown:  30 * time.Second,
	}
}

// BreakerStatus is a diagnostics snapshot of one circuit.
type BreakerStatus struct {
	Key                 string
	ConsecutiveFailures int
	Open                bool
	OpenedAt            time.Time
}

type breakerState struct {
	consecutiveFailures int
	openedAt            time.Time
	open                bool
}

// RetryManager executes remote calls with exponential backoff and a circuit
// breaker per key (typically the operation type). It is an explicit service
// object with its own lifecycle, constructed per session, so tests can run
// isolated instances.
type RetryManager struct {
	policy RetryPolicy
	logger logging.Logger
	now    func() time.Time

	mu       sync.Mutex
	breakers map[string]*breakerState
}

// NewRetryManager constructs a RetryManager with the given policy.
func NewRetryManager(policy RetryPolicy, logger logging.Logger) *RetryManager {
	return &RetryManager{
		policy:   policy,
		logger:   logger,
		now:      time.Now,
		breakers: make(map[string]*breakerState),
	}
}

// Retryable reports whether err is worth retrying: network failures,
// timeouts, and server-side internal failures are, validation, identifier,
// auth, and version errors are not.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, common.ErrNetwork),
		errors.Is(err, common.ErrTimeout),
		errors.Is(err, common.ErrInternal),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return false
}

// Execute runs op with retry and circuit breaking under the given key.
// When the circuit is open the call fails fast with ErrCircuitOpen. Only
// retryable failures are retried, with delay baseDelay * 2^attempt.
func (m *RetryManager) Execute(ctx context.Context, key string, op func(ctx context.Context) error) error {
	if err := m.checkBreaker(key); err != nil {
		return err
	}

	b := retry.WithMaxRetries(m.policy.MaxRetries, retry.NewExponential(m.policy.BaseDelay))

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if Retryable(err) {
			m.logger.Debug(ctx, "retryable failure", "key", key, "error", err.Error())
			return retry.RetryableError(err)
		}
		return err
	})

	m.record(ctx, key, err)
	return err
}

// Status returns a snapshot of every circuit the manager has seen.
func (m *RetryManager) Status() []BreakerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]BreakerStatus, 0, len(m.breakers))
	for key, s := range m.breakers {
		result = append(result, BreakerStatus{
			Key:                 key,
			ConsecutiveFailures: s.consecutiveFailures,
			Open:                s.open,
			OpenedAt:            s.openedAt,
		})
	}
	return result
}

// Reset clears all breaker state, used on sign-out.
func (m *RetryManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breakers = make(map[string]*breakerState)
}

func (m *RetryManager) checkBreaker(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.breakers[key]
	if !ok || !s.open {
		return nil
	}
	if m.now().Sub(s.openedAt) >= m.policy.BreakerCooldown {
		// half-open: let one probe through
		s.open = false
		return nil
	}
	return fmt.Errorf("%w: %s", common.ErrCircuitOpen, key)
}

func (m *RetryManager) record(ctx context.Context, key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.breakers[key]
	if !ok {
		s = &breakerState{}
		m.breakers[key] = s
	}

	if err == nil || !Retryable(err) {
		// non-retryable failures indicate a rejected request, not an
		// unhealthy dependency
		s.consecutiveFailures = 0
		s.open = false
		return
	}

	s.consecutiveFailures++
	if s.consecutiveFailures >= m.policy.BreakerThreshold && !s.open {
		s.open = true
		s.openedAt = m.now()
		m.logger.Warn(ctx, "circuit opened", "key", key, "failures", s.consecutiveFailures)
	}
}
