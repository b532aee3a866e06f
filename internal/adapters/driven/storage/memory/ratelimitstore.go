package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/corpus/internal/core/domain"
	"github.com/custodia-labs/corpus/internal/core/ports/driven"
)

// Ensure RateLimitStore implements the interface.
var _ driven.RateLimitStore = (*RateLimitStore)(nil)

// RateLimitStore is an in-memory driven.RateLimitStore for testing.
type RateLimitStore struct {
	mu       sync.Mutex
	counters map[domain.RateCounterKey]domain.RateCounter
	blocks   map[[2]string]domain.RateBlock
	closed   bool
}

// NewRateLimitStore creates an empty store.
func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{
		counters: make(map[domain.RateCounterKey]domain.RateCounter),
		blocks:   make(map[[2]string]domain.RateBlock),
	}
}

// SaveCounters upserts counters.
func (s *RateLimitStore) SaveCounters(_ context.Context, counters []domain.RateCounter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range counters {
		s.counters[c.RateCounterKey] = c
	}
	return nil
}

// SaveBlocks upserts blocks.
func (s *RateLimitStore) SaveBlocks(_ context.Context, blocks []domain.RateBlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range blocks {
		s.blocks[[2]string{b.Route, b.Key}] = b
	}
	return nil
}

// DeleteBlock removes a block.
func (s *RateLimitStore) DeleteBlock(_ context.Context, route, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blocks, [2]string{route, key})
	return nil
}

// Load returns the counters and blocks still live at now.
func (s *RateLimitStore) Load(_ context.Context, now time.Time) ([]domain.RateCounter, []domain.RateBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var counters []domain.RateCounter
	for _, c := range s.counters {
		if c.ExpiresAt.After(now) {
			counters = append(counters, c)
		}
	}
	var blocks []domain.RateBlock
	for _, b := range s.blocks {
		if b.Until.After(now) {
			blocks = append(blocks, b)
		}
	}
	return counters, blocks, nil
}

// Close marks the store closed.
func (s *RateLimitStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
