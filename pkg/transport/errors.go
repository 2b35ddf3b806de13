package transport

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"time"
)

// DeliveryError is returned when the relay rejects or cannot receive a
// document. Code is the HTTP status, or 0 when no response was received.
type DeliveryError struct {
	Code    int
	Message string
	Cause   error
}

func (e *DeliveryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("delivery error %d: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("delivery error %d: %s", e.Code, e.Message)
}

func (e *DeliveryError) Unwrap() error { return e.Cause }

// Retryable returns true if the error is transient and delivery may be
// attempted again: rate limiting, 5xx responses and transport failures.
func Retryable(err error) bool {
	var de *DeliveryError
	if !errors.As(err, &de) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch {
	case de.Code == 0:
		return de.Cause != nil
	case de.Code == http.StatusTooManyRequests:
		return true
	case de.Code >= 500:
		return true
	}
	return false
}

// Backoff bounds the wait between attempts. A zero Max caps at
// DefaultBackoff.Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff starts at one second and caps at thirty.
var DefaultBackoff = Backoff{Base: time.Second, Max: 30 * time.Second}

func (b Backoff) wait(attempt int) time.Duration {
	if b.Base <= 0 {
		b = DefaultBackoff
	}
	limit := b.Max
	if limit <= 0 {
		limit = DefaultBackoff.Max
	}
	limit = min(limit, math.MaxInt64/2) // room for jitter
	base := b.Base
	for range attempt {
		if base > limit/2 {
			base = limit
			break
		}
		base *= 2
	}
	base = min(base, limit)
	// ±25% jitter
	jitter := time.Duration(rand.Float64() * float64(base/2))
	return base/4*3 + jitter
}

// WithRetry calls fn up to maxAttempts times, backing off exponentially with
// jitter between retryable failures. It respects context cancellation.
func WithRetry(ctx context.Context, maxAttempts int, b Backoff, fn func(attempt int) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var lastErr error
	for i := range maxAttempts {
		lastErr = fn(i + 1)
		if lastErr == nil {
			return nil
		}
		if !Retryable(lastErr) {
			return lastErr
		}
		if i == maxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.wait(i)):
		}
	}
	return fmt.Errorf("max attempts (%d) exceeded: %w", maxAttempts, lastErr)
}
