package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/corpus/internal/core/domain"
)

// RateLimitStore is the durable tier of the rate limiter.
// Writes are best-effort; the in-process tier is authoritative while running.
type RateLimitStore interface {
	// SaveCounters upserts counters. Expired counters may be dropped.
	SaveCounters(ctx context.Context, counters []domain.RateCounter) error

	// SaveBlocks upserts blocks. Expired blocks may be dropped.
	SaveBlocks(ctx context.Context, blocks []domain.RateBlock) error

	// DeleteBlock removes a block.
	DeleteBlock(ctx context.Context, route, key string) error

	// Load returns the counters and blocks still live at now.
	Load(ctx context.Context, now time.Time) ([]domain.RateCounter, []domain.RateBlock, error)

	// Close releases resources.
	Close() error
}
