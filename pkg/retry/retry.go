// Package retry runs operations with bounded attempts and context-aware backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "chanarchive/pkg/errors"
	"chanarchive/pkg/logger"
)

// Operation is a unit of work that may be retried
type Operation func() error

// OperationWithResult is a retryable unit of work returning a value
type OperationWithResult[T any] func() (T, error)

// Config holds retry configuration
type Config struct {
	// MaxAttempts counts the first call; 1 disables retrying, 0 means unlimited
	MaxAttempts int
	Backoff     BackoffStrategy
	// RetryIf decides whether an error is worth another attempt
	RetryIf func(error) bool
	// OnRetry runs before each wait
	OnRetry func(attempt int, err error, delay time.Duration)
	Context context.Context
	Logger  logger.Logger
}

// DefaultConfig returns three attempts with exponential backoff
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     DefaultExponentialBackoff(),
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
		Logger:      logger.GetLogger(),
	}
}

// DefaultRetryIf retries transport failures the error taxonomy marks retryable,
// never cancellations, and anything untyped.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var e *errs.Error
	if errors.As(err, &e) {
		if e.Type == errs.ErrorTypeHTTPStatus {
			return errs.IsRetryableStatusCode(e.Code)
		}
		return errs.IsRetryable(e.Type)
	}
	return true
}

func (c *Config) normalize() *Config {
	out := *c
	if out.Backoff == nil {
		out.Backoff = DefaultExponentialBackoff()
	}
	if out.RetryIf == nil {
		out.RetryIf = DefaultRetryIf
	}
	if out.Context == nil {
		out.Context = context.Background()
	}
	if out.Logger == nil {
		out.Logger = logger.NewNopLogger()
	}
	return &out
}

// Do calls op until it succeeds, returns a non-retryable error, runs out of
// attempts or the context is cancelled.
func Do(op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg = cfg.normalize()

	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil {
			if attempt > 1 {
				cfg.Logger.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}

		if !cfg.RetryIf(err) {
			return err
		}
		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			if cfg.MaxAttempts == 1 {
				return err
			}
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, err)
		}

		delay := cfg.Backoff.NextDelay(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		cfg.Logger.WarnWithFields("retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"error":        err.Error(),
			"delay":        delay,
			"max_attempts": cfg.MaxAttempts,
		})

		if werr := Wait(cfg.Context, delay); werr != nil {
			return fmt.Errorf("retry cancelled: %w", werr)
		}
	}
}

// DoWithResult is Do for operations that return a value
func DoWithResult[T any](op OperationWithResult[T], cfg *Config) (T, error) {
	var result T
	err := Do(func() error {
		var opErr error
		result, opErr = op()
		return opErr
	}, cfg)
	return result, err
}
