package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/corpus/internal/core/domain"
	"github.com/custodia-labs/corpus/internal/core/ports/driven"
	"github.com/custodia-labs/corpus/internal/core/ports/driving"
	"github.com/custodia-labs/corpus/internal/logger"
)

// Ensure RateLimiter implements the interface.
var _ driving.RateLimiter = (*RateLimiter)(nil)

type blockKey struct {
	route string
	key   string
}

// RateLimiter counts requests per route and client in fixed windows.
//
// Counters and blocks live in process memory and are authoritative while
// the process runs. Changed entries are marked dirty and written to the
// optional durable store by Flush; Restore reloads them at startup.
type RateLimiter struct {
	settings *SettingsService
	store    driven.RateLimitStore
	now      func() time.Time

	mu            sync.Mutex
	counters      map[domain.RateCounterKey]*domain.RateCounter
	blocks        map[blockKey]domain.RateBlock
	dirtyCounters map[domain.RateCounterKey]struct{}
	dirtyBlocks   map[blockKey]struct{}
	deletedBlocks map[blockKey]struct{}
}

// RateLimiterOption configures a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithClock replaces the time source.
func WithClock(now func() time.Time) RateLimiterOption {
	return func(l *RateLimiter) {
		l.now = now
	}
}

// NewRateLimiter creates a limiter reading policies from settings.
// store may be nil, in which case limits do not survive a restart.
func NewRateLimiter(settings *SettingsService, store driven.RateLimitStore, opts ...RateLimiterOption) *RateLimiter {
	l := &RateLimiter{
		settings:      settings,
		store:         store,
		now:           time.Now,
		counters:      make(map[domain.RateCounterKey]*domain.RateCounter),
		blocks:        make(map[blockKey]domain.RateBlock),
		dirtyCounters: make(map[domain.RateCounterKey]struct{}),
		dirtyBlocks:   make(map[blockKey]struct{}),
		deletedBlocks: make(map[blockKey]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check counts one request from key on route and decides whether to allow it.
// Routes without a policy are always allowed.
func (l *RateLimiter) Check(_ context.Context, route, key string) (domain.RateDecision, error) {
	policy, ok := l.settings.Snapshot().RateLimits.Policies()[route]
	if !ok {
		return domain.RateDecision{Allowed: true}, nil
	}
	if err := policy.Validate(); err != nil {
		return domain.RateDecision{}, fmt.Errorf("rate policy for %s: %w", route, err)
	}

	now := l.now()
	nowSec := now.Unix()

	l.mu.Lock()
	defer l.mu.Unlock()

	bk := blockKey{route: route, key: key}
	if block, ok := l.blocks[bk]; ok {
		if now.Before(block.Until) {
			reason := block.Reason
			if reason == "" {
				reason = domain.DefaultBlockedReason
			}
			return domain.RateDecision{
				Allowed: false,
				Blocked: true,
				Reset:   ceilSeconds(block.Until.Sub(now)),
				Reason:  reason,
			}, nil
		}
		delete(l.blocks, bk)
		delete(l.dirtyBlocks, bk)
		l.deletedBlocks[bk] = struct{}{}
	}

	size := int64(policy.Window.Duration() / time.Second)
	windowStart := nowSec - nowSec%size
	ck := domain.RateCounterKey{Route: route, Key: key, WindowStart: windowStart}

	counter, ok := l.counters[ck]
	if !ok {
		counter = &domain.RateCounter{RateCounterKey: ck, ExpiresAt: time.Unix(windowStart+size, 0)}
		l.counters[ck] = counter
	}
	counter.Count++
	l.dirtyCounters[ck] = struct{}{}
	reset := int(windowStart + size - nowSec)

	if counter.Count > policy.Limit {
		if policy.BlockThreshold > 0 && counter.Count >= policy.BlockThreshold {
			reason := policy.BlockReason
			if reason == "" {
				reason = domain.DefaultBlockReason
			}
			l.blocks[bk] = domain.RateBlock{Route: route, Key: key, Until: now.Add(policy.BlockDuration), Reason: reason}
			l.dirtyBlocks[bk] = struct{}{}
			delete(l.deletedBlocks, bk)
			logger.Warn("ratelimit: blocking %s on %s for %s after %d requests", key, route, policy.BlockDuration, counter.Count)
		}
		logger.Debug("ratelimit: %s exceeded %d/%s on %s", key, policy.Limit, policy.Window, route)
		return domain.RateDecision{
			Allowed: false,
			Reset:   reset,
			Reason:  domain.DefaultBlockReason,
		}, nil
	}

	remaining := policy.Limit - counter.Count
	if remaining < 0 {
		remaining = 0
	}
	return domain.RateDecision{Allowed: true, Remaining: remaining, Reset: reset}, nil
}

// Flush writes dirty counters and blocks to the durable store and drops
// expired counters from memory. Entries that fail to write stay dirty.
func (l *RateLimiter) Flush(ctx context.Context) error {
	now := l.now()

	l.mu.Lock()
	var counters []domain.RateCounter
	for ck := range l.dirtyCounters {
		if c, ok := l.counters[ck]; ok && c.ExpiresAt.After(now) {
			counters = append(counters, *c)
		}
	}
	var blocks []domain.RateBlock
	for bk := range l.dirtyBlocks {
		if b, ok := l.blocks[bk]; ok {
			blocks = append(blocks, b)
		}
	}
	deleted := make([]blockKey, 0, len(l.deletedBlocks))
	for bk := range l.deletedBlocks {
		deleted = append(deleted, bk)
	}
	l.dirtyCounters = make(map[domain.RateCounterKey]struct{})
	l.dirtyBlocks = make(map[blockKey]struct{})
	l.deletedBlocks = make(map[blockKey]struct{})

	for ck, c := range l.counters {
		if !c.ExpiresAt.After(now) {
			delete(l.counters, ck)
		}
	}
	l.mu.Unlock()

	if l.store == nil {
		return nil
	}

	if err := l.persist(ctx, counters, blocks, deleted); err != nil {
		l.remark(counters, blocks, deleted)
		logger.Warn("ratelimit: flush failed: %v", err)
		return err
	}
	if n := len(counters) + len(blocks) + len(deleted); n > 0 {
		logger.Debug("ratelimit: flushed %d counters, %d blocks, %d unblocks", len(counters), len(blocks), len(deleted))
	}
	return nil
}

func (l *RateLimiter) persist(ctx context.Context, counters []domain.RateCounter, blocks []domain.RateBlock, deleted []blockKey) error {
	if len(counters) > 0 {
		if err := l.store.SaveCounters(ctx, counters); err != nil {
			return fmt.Errorf("saving counters: %w", err)
		}
	}
	if len(blocks) > 0 {
		if err := l.store.SaveBlocks(ctx, blocks); err != nil {
			return fmt.Errorf("saving blocks: %w", err)
		}
	}
	for _, bk := range deleted {
		if err := l.store.DeleteBlock(ctx, bk.route, bk.key); err != nil {
			return fmt.Errorf("deleting block: %w", err)
		}
	}
	return nil
}

// remark marks entries dirty again after a failed flush, unless newer
// state replaced them meanwhile.
func (l *RateLimiter) remark(counters []domain.RateCounter, blocks []domain.RateBlock, deleted []blockKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range counters {
		l.dirtyCounters[c.RateCounterKey] = struct{}{}
	}
	for _, b := range blocks {
		bk := blockKey{route: b.Route, key: b.Key}
		if _, ok := l.blocks[bk]; ok {
			l.dirtyBlocks[bk] = struct{}{}
		}
	}
	for _, bk := range deleted {
		if _, ok := l.blocks[bk]; !ok {
			l.deletedBlocks[bk] = struct{}{}
		}
	}
}

// Restore loads unexpired counters and blocks from the durable store.
// In-memory counts are never lowered by a restore.
func (l *RateLimiter) Restore(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	now := l.now()
	counters, blocks, err := l.store.Load(ctx, now)
	if err != nil {
		return fmt.Errorf("restoring rate limits: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range counters {
		if !c.ExpiresAt.After(now) {
			continue
		}
		existing, ok := l.counters[c.RateCounterKey]
		if ok && existing.Count >= c.Count {
			continue
		}
		restored := c
		l.counters[c.RateCounterKey] = &restored
	}
	for _, b := range blocks {
		if !b.Until.After(now) {
			continue
		}
		l.blocks[blockKey{route: b.Route, key: b.Key}] = b
	}
	logger.Debug("ratelimit: restored %d counters and %d blocks", len(counters), len(blocks))
	return nil
}

// Close flushes pending state and closes the durable store.
func (l *RateLimiter) Close(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	flushErr := l.Flush(ctx)
	if err := l.store.Close(); err != nil {
		return err
	}
	return flushErr
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
