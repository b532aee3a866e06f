package driving

import (
	"context"

	"github.com/custodia-labs/corpus/internal/core/domain"
)

// RateLimiter guards driving adapters against abusive clients.
type RateLimiter interface {
	// Check counts a request from key on route and decides whether to allow it.
	Check(ctx context.Context, route, key string) (domain.RateDecision, error)
}
