package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"b3ingest/pkg/contracts/domain"
)

// FetchRequest identifies one single-shot fetch.
type FetchRequest struct {
	Ticker    string
	StartDate string // YYYY-MM-DD, empty for provider default
	EndDate   string // YYYY-MM-DD, empty for provider default
	Timeout   time.Duration
}

// FetchFunc performs one fetch attempt. It must honor the timeout carried by
// the request against its own transport; the engine does not cancel an
// in-flight attempt.
type FetchFunc func(ctx context.Context, req FetchRequest) (*domain.RawPayload, error)

// FetchOption adjusts one Fetch call.
type FetchOption func(*fetchOptions)

type fetchOptions struct {
	idempotent bool
}

// WithIdempotent marks whether the wrapped operation can be safely repeated.
// Non-idempotent operations are never retried: the engine forces a single
// attempt and logs a warning instead of risking duplicate side effects.
func WithIdempotent(idempotent bool) FetchOption {
	return func(o *fetchOptions) { o.idempotent = idempotent }
}

// Engine executes a single-shot fetch with bounded retries, deterministic
// exponential backoff, failure classification and metrics. One Engine can be
// shared across jobs; per-call state lives on the stack.
type Engine struct {
	cfg     RetryConfig
	metrics *Metrics
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewEngine creates a retry engine. A nil metrics falls back to the shared
// default instance; a nil logger falls back to slog.Default.
func NewEngine(cfg RetryConfig, metrics *Metrics, logger *slog.Logger) *Engine {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if metrics == nil {
		metrics = DefaultMetrics
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
		sleep:   sleepCtx,
	}
}

// Config returns the engine's retry configuration.
func (e *Engine) Config() RetryConfig { return e.cfg }

// Fetch runs fn up to MaxAttempts times. Structural validation failures
// propagate immediately without retry. Transient failures wait the computed
// backoff delay and try again; on exhaustion the last failure is surfaced as
// a NetworkError or FetchError depending on its class.
func (e *Engine) Fetch(ctx context.Context, req FetchRequest, fn FetchFunc, opts ...FetchOption) (*domain.RawPayload, error) {
	options := fetchOptions{idempotent: true}
	for _, opt := range opts {
		opt(&options)
	}

	maxAttempts := e.cfg.MaxAttempts
	if !options.idempotent && maxAttempts > 1 {
		e.logger.Warn("non-idempotent fetch, retries disabled",
			slog.String("ticker", req.Ticker),
			slog.Int("configured_max_attempts", maxAttempts))
		maxAttempts = 1
	}

	if req.Timeout == 0 {
		req.Timeout = e.cfg.Timeout
	}

	statusSet := e.cfg.StatusCodeSet()
	var lastErr error
	var lastClass Class

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		e.metrics.RecordAttempt()
		if attempt > 1 {
			e.metrics.RecordRetry()
		}

		payload, err := fn(ctx, req)
		if err == nil && payload == nil {
			err = NewValidationError(
				fmt.Sprintf("fetch of %s returned no payload", req.Ticker))
		}
		if err == nil {
			if attempt == 1 {
				e.metrics.RecordFirstAttemptSuccess()
			} else {
				e.metrics.RecordSuccessAfterRetry()
			}
			e.logger.Info("fetch succeeded",
				slog.String("ticker", req.Ticker),
				slog.Int("attempt", attempt),
				slog.Int("rows", len(payload.Rows)))
			return payload, nil
		}

		class := Classify(err, statusSet)
		if class == ClassStructural {
			// Validation failures are not transient; no retry, no
			// permanent-failure metric.
			e.logger.Warn("fetch returned structurally invalid payload",
				slog.String("ticker", req.Ticker),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			return nil, err
		}

		lastErr = err
		lastClass = class

		if attempt >= maxAttempts {
			break
		}

		delay := e.cfg.Delay(attempt)
		e.logger.Warn("fetch failed, retrying",
			slog.String("ticker", req.Ticker),
			slog.String("class", class.String()),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.Duration("next_delay", delay),
			slog.String("error", err.Error()))

		if err := e.sleep(ctx, delay); err != nil {
			e.metrics.RecordPermanentFailure()
			return nil, NewFetchError(
				fmt.Sprintf("fetch of %s canceled while waiting to retry", req.Ticker), err)
		}
	}

	e.metrics.RecordPermanentFailure()
	if lastClass == ClassNetwork {
		return nil, NewNetworkError(
			fmt.Sprintf("network failure fetching %s after %d attempts", req.Ticker, maxAttempts), lastErr)
	}
	return nil, NewFetchError(
		fmt.Sprintf("failed to fetch %s after %d attempts", req.Ticker, maxAttempts), lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
