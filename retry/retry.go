// Package retry provides a generic exponential-backoff execution wrapper
// used by outbound calls to external systems.
package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	syncErrors "github.com/dulcera/syncbridge/errors"
	"github.com/dulcera/syncbridge/logging"
)

// Condition decides whether an error is worth retrying
type Condition func(error) bool

// Config configures an Executor
type Config struct {
	// MaxRetries is the number of retries after the initial attempt
	MaxRetries int

	// BaseDelay is the delay before the first retry
	BaseDelay time.Duration

	// MaxDelay caps the backoff delay
	MaxDelay time.Duration

	// BackoffFactor is the multiplier applied per attempt
	BackoffFactor float64

	// RetryCondition rejects errors that must not be retried.
	// A nil condition retries everything.
	RetryCondition Condition
}

// Executor runs operations with exponential backoff
type Executor struct {
	config Config
	logger *logging.Logger
}

// NewExecutor creates an Executor with the given config
func NewExecutor(config Config, logger *logging.Logger) *Executor {
	if logger == nil {
		logger = logging.Default()
	}
	if config.BackoffFactor <= 1 {
		config.BackoffFactor = 2.0
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	return &Executor{config: config, logger: logger.WithComponent("retry")}
}

// delayFor computes min(baseDelay * factor^attempt, maxDelay)
func (e *Executor) delayFor(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := float64(e.config.BaseDelay)
	for i := 0; i < attempt; i++ {
		delay *= e.config.BackoffFactor
	}

	result := time.Duration(delay)
	if result > e.config.MaxDelay {
		result = e.config.MaxDelay
	}
	return result
}

// Execute runs fn, retrying failures that pass the retry condition with
// exponential backoff. Context cancellation is honored between attempts.
// The last error is returned once attempts are exhausted.
func (e *Executor) Execute(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if err == nil {
		return nil
	}

	if !e.shouldRetry(err) {
		e.logger.Debug("operation failed with non-retryable error",
			"name", name, "error", err)
		return err
	}

	e.logger.Warn("operation failed with retryable error, starting retry sequence",
		"name", name,
		"error", err,
		"max_retries", e.config.MaxRetries)

	for attempt := 0; attempt < e.config.MaxRetries; attempt++ {
		delay := e.delayFor(attempt)
		e.logger.Debug("waiting before retry",
			"name", name,
			"attempt", attempt+1,
			"delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			e.logger.Warn("retry sequence canceled by context",
				"name", name, "error", ctx.Err())
			return ctx.Err()
		case <-timer.C:
		}

		err = fn(ctx)
		if err == nil {
			e.logger.Info("operation succeeded after retry",
				"name", name, "attempt", attempt+1)
			return nil
		}

		if !e.shouldRetry(err) {
			e.logger.Warn("retry failed with non-retryable error",
				"name", name, "attempt", attempt+1, "error", err)
			return err
		}
	}

	e.logger.Error("all retry attempts exhausted",
		"name", name,
		"total_attempts", e.config.MaxRetries+1,
		"final_error", err)
	return err
}

func (e *Executor) shouldRetry(err error) bool {
	if e.config.RetryCondition != nil {
		return e.config.RetryCondition(err)
	}
	return true
}

// IsNetworkError matches timeouts, refused connections, resets and EOFs
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "timeout")
}

// APICondition retries network failures and retryable HTTP statuses
// (5xx, 408, 429 — classified by errors.FromHTTPStatus).
func APICondition(err error) bool {
	return syncErrors.IsRetryable(err) || IsNetworkError(err)
}

// DatabaseCondition retries connection-reset style storage errors
func DatabaseCondition(err error) bool {
	if syncErrors.IsRetryable(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "database is locked")
}

// APIProfile is the preset for calls against external REST APIs
func APIProfile(logger *logging.Logger) *Executor {
	return NewExecutor(Config{
		MaxRetries:     3,
		BaseDelay:      time.Second,
		MaxDelay:       10 * time.Second,
		BackoffFactor:  2.0,
		RetryCondition: APICondition,
	}, logger)
}

// DatabaseProfile is the preset for storage operations
func DatabaseProfile(logger *logging.Logger) *Executor {
	return NewExecutor(Config{
		MaxRetries:     5,
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		BackoffFactor:  1.5,
		RetryCondition: DatabaseCondition,
	}, logger)
}
