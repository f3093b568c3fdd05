// Package retry implements the backoff policy used for calls to the
// classification oracle. Failures are sorted into classes and each class
// carries its own wait schedule:
//
//	Overloaded  (HTTP 529)  exponential, 5s * 2^attempt
//	RateLimited (HTTP 429)  linear, 30s + 10s*attempt
//	Transient   (timeouts)  fixed 5s
//	Permanent               no retry
//
// The sleep function is injectable so the schedule is testable without
// real delays.
package retry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Class int

const (
	Permanent Class = iota
	Overloaded
	RateLimited
	Transient
)

func (c Class) String() string {
	switch c {
	case Overloaded:
		return "overloaded"
	case RateLimited:
		return "rate-limited"
	case Transient:
		return "transient"
	default:
		return "permanent"
	}
}

// Classifier maps an operation error to a retry class.
type Classifier func(err error) Class

type Config struct {
	// MaxRetries is the number of additional attempts after the first,
	// so an always-failing retryable operation runs MaxRetries+1 times.
	MaxRetries int
	Classify   Classifier
	Sleep      func(time.Duration)
	Logger     *zap.Logger
}

func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		Classify:   func(error) Class { return Transient },
		Logger:     zap.NewNop(),
	}
}

// Backoff returns the wait before retry number attempt+1, where attempt is
// zero-based. Permanent errors have no wait; callers should not retry them.
func Backoff(class Class, attempt int) time.Duration {
	switch class {
	case Overloaded:
		return time.Duration(5<<uint(attempt)) * time.Second
	case RateLimited:
		return time.Duration(30+10*attempt) * time.Second
	default:
		return 5 * time.Second
	}
}

// Do runs operation up to cfg.MaxRetries+1 times. Permanent errors and
// context cancellation end the loop immediately; the last error is returned
// once retries are exhausted.
func Do(ctx context.Context, cfg Config, operation func() error) error {
	if cfg.Classify == nil {
		cfg.Classify = func(error) Class { return Transient }
	}

	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := operation()
		if err == nil {
			if attempt > 0 && cfg.Logger != nil {
				cfg.Logger.Info("operation succeeded after retry",
					zap.Int("attempt", attempt+1),
				)
			}
			return nil
		}

		lastErr = err

		class := cfg.Classify(err)
		if class == Permanent {
			return err
		}

		if attempt == cfg.MaxRetries {
			break
		}

		wait := Backoff(class, attempt)
		if cfg.Logger != nil {
			cfg.Logger.Warn("operation failed, retrying",
				zap.Error(err),
				zap.String("class", class.String()),
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", cfg.MaxRetries+1),
				zap.Duration("wait", wait),
			)
		}

		if err := sleep(ctx, cfg.Sleep, wait); err != nil {
			return err
		}
	}

	return lastErr
}

func sleep(ctx context.Context, fn func(time.Duration), d time.Duration) error {
	if fn != nil {
		fn(d)
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
