package batch

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
)

// Retrier re-runs an operation on transient Sheets API failures with pure
// exponential backoff (baseDelay * 2^attempt, no jitter). Non-transient
// failures propagate immediately.
type Retrier struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// sleep is swapped out in tests to observe computed delays.
	sleep func(time.Duration)
}

func NewRetrier(maxAttempts int, baseDelay time.Duration) *Retrier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Retrier{MaxAttempts: maxAttempts, BaseDelay: baseDelay, sleep: time.Sleep}
}

// Do runs op up to MaxAttempts times. The operation must be idempotent
// under retry; there is no cancellation of an attempt already dispatched.
func (r *Retrier) Do(ctx context.Context, label string, op func() error) error {
	var err error
	for attempt := 0; attempt < r.MaxAttempts; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if !IsTransient(err) || attempt == r.MaxAttempts-1 {
			return err
		}
		delay := r.BaseDelay * (1 << attempt)
		slog.WarnContext(ctx, "Transient Sheets API error, retrying",
			"operation", label,
			"attempt", attempt+1,
			"max_attempts", r.MaxAttempts,
			"delay_ms", delay.Milliseconds(),
			"error", err)
		r.sleep(delay)
	}
	return err
}

// IsTransient reports whether a remote failure is worth retrying: a
// rate-limit signal (429 status or quota wording) or a server-side 5xx.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code >= 500 {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "quota")
}
