// Package retry wraps persistence calls in a bounded exponential backoff.
// Only transient failures are retried; logical errors surface immediately.
package retry

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tamer-online/gameserver/config"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Executor runs operations with retry on transient errors.
type Executor struct {
	maxAttempts uint64
	baseDelay   time.Duration
	logger      *zap.Logger
}

func NewExecutor(cfg config.RetryConfig, logger *zap.Logger) *Executor {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	baseDelay := cfg.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	return &Executor{
		maxAttempts: uint64(maxAttempts),
		baseDelay:   baseDelay,
		logger:      logger,
	}
}

// Do runs op, retrying transient failures with exponential backoff up to
// the configured attempt count. Non-transient errors abort immediately.
func (e *Executor) Do(ctx context.Context, name string, op func() error) error {
	attempt := 0
	wrapped := func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if !Transient(err) {
			return backoff.Permanent(err)
		}
		e.logger.Warn("transient failure, will retry",
			zap.String("op", name),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.baseDelay
	policy := backoff.WithContext(
		backoff.WithMaxRetries(bo, e.maxAttempts-1), ctx)

	if err := backoff.Retry(wrapped, policy); err != nil {
		e.logger.Error("operation failed after retries",
			zap.String("op", name),
			zap.Int("attempts", attempt),
			zap.Error(err))
		return err
	}
	return nil
}

// Transient reports whether the error looks like a recoverable
// infrastructure failure rather than a logical one.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{
		"timeout",
		"timed out",
		"connection refused",
		"connection reset",
		"broken pipe",
		"database is locked",
		"database table is locked",
		"busy",
		"deadlock",
		"try again",
	} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
