// Package resilience bounds and retries calls to external collaborators.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/edwardbudaza/pdfchat/internal/domain"
	"github.com/edwardbudaza/pdfchat/internal/metrics"
)

// Defaults for Policy fields left at zero.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 200 * time.Millisecond
	DefaultMaxDelay    = 5 * time.Second
	DefaultCallTimeout = 30 * time.Second
)

// Policy configures retries. MaxAttempts counts the first call.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	CallTimeout time.Duration
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.CallTimeout <= 0 {
		p.CallTimeout = DefaultCallTimeout
	}
	return p
}

// Retrier runs calls under a per-attempt deadline and retries retryable upstream failures
// with exponential backoff and jitter.
type Retrier struct {
	policy Policy
	logger *zap.Logger
}

// New creates a Retrier.
func New(p Policy, logger *zap.Logger) *Retrier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrier{policy: p.withDefaults(), logger: logger}
}

// Policy returns the effective policy.
func (r *Retrier) Policy() Policy { return r.policy }

// Do runs fn until it succeeds, fails terminally or attempts run out.
func (r *Retrier) Do(ctx context.Context, service, op string, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, r, service, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Call is Do for operations that return a value.
// The returned error is a *domain.UpstreamError unless the caller's context was canceled
// or fn returned a non-upstream error on a terminal path.
func Call[T any](ctx context.Context, r *Retrier, service, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	start := time.Now()
	attempt := 0

	operation := func() (T, error) {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, r.policy.CallTimeout)
		defer cancel()

		res, err := fn(callCtx)
		if err == nil {
			return res, nil
		}
		err = classify(ctx, callCtx, service, op, err)
		if !domain.IsRetryable(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(newExponential(r.policy), uint64(r.policy.MaxAttempts-1)), ctx)
	notify := func(err error, next time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues(service, op).Inc()
		r.logger.Warn("Retrying upstream call",
			zap.String("service", service),
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", next),
			zap.Error(err),
		)
	}

	res, err := backoff.RetryNotifyWithData(operation, b, notify)

	status := "success"
	if err != nil {
		status = "error"
		if errors.Is(err, context.Canceled) {
			status = "canceled"
		} else if !errors.Is(err, domain.ErrUpstream) {
			// parent deadline reached between attempts
			err = domain.NewUpstreamError(service, op, err)
		}
	}
	metrics.UpstreamCallsTotal.WithLabelValues(service, op, status).Inc()
	metrics.UpstreamCallDuration.WithLabelValues(service, op).Observe(time.Since(start).Seconds())

	return res, err
}

func newExponential(p Policy) *backoff.ExponentialBackOff {
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(p.BaseDelay),
		backoff.WithMaxInterval(p.MaxDelay),
		backoff.WithRandomizationFactor(0.5),
		backoff.WithMaxElapsedTime(0),
	)
}

// classify turns a raw failure into an UpstreamError.
// A per-attempt deadline is retryable; the caller's own cancellation or deadline is not.
func classify(parent, attempt context.Context, service, op string, err error) error {
	if parent.Err() != nil {
		if errors.Is(parent.Err(), context.Canceled) {
			return context.Canceled
		}
		return domain.NewUpstreamError(service, op, err)
	}
	var ue *domain.UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	if errors.Is(attempt.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return domain.NewRetryableError(service, op, err)
	}
	if isTerminal(err) {
		return err
	}
	return domain.NewUpstreamError(service, op, err)
}

// isTerminal reports domain outcomes that are answers, not failures of the collaborator.
func isTerminal(err error) bool {
	for _, target := range []error{
		domain.ErrValidation,
		domain.ErrNotFound,
		domain.ErrNamespaceNotFound,
		domain.ErrConflict,
		domain.ErrAlreadyProcessed,
		domain.ErrParse,
		domain.ErrFetch,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
