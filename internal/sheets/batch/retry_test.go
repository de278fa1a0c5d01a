package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/api/googleapi"
)

func TestRetrierSucceedsAfterTransientFailures(t *testing.T) {
	r := NewRetrier(3, 100*time.Millisecond)
	var delays []time.Duration
	r.sleep = func(d time.Duration) { delays = append(delays, d) }

	calls := 0
	err := r.Do(context.Background(), "append", func() error {
		calls++
		if calls < 3 {
			return &googleapi.Error{Code: 429, Message: "Rate limit exceeded"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	// Pure exponential backoff: base, base*2.
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestRetrierNonTransientFailsImmediately(t *testing.T) {
	r := NewRetrier(3, time.Millisecond)
	slept := false
	r.sleep = func(time.Duration) { slept = true }

	calls := 0
	wantErr := &googleapi.Error{Code: 403, Message: "forbidden"}
	err := r.Do(context.Background(), "create", func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected original error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry for 403)", calls)
	}
	if slept {
		t.Error("must not sleep before a non-transient failure propagates")
	}
}

func TestRetrierExhaustsAttempts(t *testing.T) {
	r := NewRetrier(3, time.Millisecond)
	r.sleep = func(time.Duration) {}

	calls := 0
	err := r.Do(context.Background(), "append", func() error {
		calls++
		return &googleapi.Error{Code: 503, Message: "backend error"}
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"Nil", nil, false},
		{"RateLimit429", &googleapi.Error{Code: 429}, true},
		{"ServerError500", &googleapi.Error{Code: 500}, true},
		{"ServerError503", &googleapi.Error{Code: 503}, true},
		{"BadRequest400", &googleapi.Error{Code: 400}, false},
		{"Forbidden403", &googleapi.Error{Code: 403}, false},
		{"QuotaMessage", errors.New("Quota exceeded for group 'WriteGroup'"), true},
		{"RateLimitMessage", errors.New("user rate limit reached"), true},
		{"Plain", errors.New("invalid range"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
