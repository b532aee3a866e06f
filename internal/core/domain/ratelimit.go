package domain

import (
	"fmt"
	"time"
)

// RateWindow is a fixed counting window.
type RateWindow string

// Supported windows.
const (
	WindowMinute     RateWindow = "minute"
	WindowTenMinutes RateWindow = "ten_minutes"
	WindowHour       RateWindow = "hour"
)

// Duration returns the window length.
func (w RateWindow) Duration() time.Duration {
	switch w {
	case WindowMinute:
		return time.Minute
	case WindowTenMinutes:
		return 10 * time.Minute
	case WindowHour:
		return time.Hour
	default:
		return 0
	}
}

// IsValid returns true if the window is recognised.
func (w RateWindow) IsValid() bool {
	return w.Duration() > 0
}

// Default rejection messages.
const (
	DefaultBlockReason   = "Rate limit exceeded"
	DefaultBlockedReason = "Too many requests. Try again later."
)

// RatePolicy configures limiting for one route.
type RatePolicy struct {
	// Limit is the number of requests allowed per window.
	Limit int

	// Window is the counting window.
	Window RateWindow

	// BlockThreshold escalates to a block once a window count reaches it.
	// Zero disables blocking.
	BlockThreshold int

	// BlockDuration is how long a block lasts.
	BlockDuration time.Duration

	// BlockReason is reported while blocked. Defaults to DefaultBlockReason.
	BlockReason string
}

// Validate checks the policy is usable.
func (p RatePolicy) Validate() error {
	if p.Limit <= 0 {
		return fmt.Errorf("%w: rate limit must be positive", ErrInvalidInput)
	}
	if !p.Window.IsValid() {
		return fmt.Errorf("%w: unknown rate window %q", ErrInvalidInput, p.Window)
	}
	if p.BlockThreshold > 0 && p.BlockDuration <= 0 {
		return fmt.Errorf("%w: block threshold set without a block duration", ErrInvalidInput)
	}
	return nil
}

// RateCounterKey identifies one fixed-window counter.
type RateCounterKey struct {
	Route       string
	Key         string
	WindowStart int64
}

// RateCounter is a request count within one window.
type RateCounter struct {
	RateCounterKey
	Count int

	// ExpiresAt is the window end; the counter is meaningless afterwards.
	ExpiresAt time.Time
}

// RateBlock rejects a client on a route until a point in time.
type RateBlock struct {
	Route  string
	Key    string
	Until  time.Time
	Reason string
}

// RateDecision is the outcome of a rate-limit check.
type RateDecision struct {
	Allowed bool

	// Remaining is the number of requests left in the window.
	Remaining int

	// Reset is the number of seconds until the window ends or the block expires.
	Reset int

	// Blocked is true when the rejection came from an active block.
	Blocked bool

	// Reason explains a rejection.
	Reason string
}

// Err returns the caller-facing error for a rejected decision, or nil.
func (d RateDecision) Err(route string) error {
	if d.Allowed {
		return nil
	}
	return &RateLimitError{Route: route, RetryAfter: d.Reset, Reason: d.Reason}
}
