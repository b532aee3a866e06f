package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/corpus/internal/core/domain"
	"github.com/custodia-labs/corpus/internal/core/ports/driven"
	"github.com/custodia-labs/corpus/internal/logger"
)

// cacheKeyRunes is the text prefix length used as the cache key.
const cacheKeyRunes = 100

type cacheEntry struct {
	text   string
	vector []float32
}

// EmbeddingClient batches, throttles and caches calls to an embedding provider.
//
// Texts are embedded in batches; the requests of one batch run concurrently
// on a worker pool sized to the batch, each gated by a minimum request
// interval, and consecutive batches are separated by a fixed delay.
// Failures are returned as *domain.EmbeddingError and never retried.
type EmbeddingClient struct {
	provider driven.EmbeddingProvider
	pool     *ants.Pool
	limiter  *rate.Limiter
	sleep    func(ctx context.Context, d time.Duration) error

	mu         sync.Mutex
	batchSize  int
	batchDelay time.Duration
	cacheSize  int
	cache      map[string]cacheEntry
	order      []string
}

// NewEmbeddingClient creates a client for provider configured by cfg.
// Call Close to release the worker pool.
func NewEmbeddingClient(provider driven.EmbeddingProvider, cfg domain.EmbeddingSettings) (*EmbeddingClient, error) {
	if provider == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	size := cfg.BatchSize
	if size <= 0 {
		size = domain.DefaultBatchSize
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("creating embedding pool: %w", err)
	}

	c := &EmbeddingClient{
		provider:  provider,
		pool:      pool,
		limiter:   rate.NewLimiter(rate.Inf, 1),
		sleep:     sleepContext,
		batchSize: size,
		cache:     make(map[string]cacheEntry),
	}
	c.Configure(cfg)
	return c, nil
}

// Configure applies new batching, throttling and cache settings.
// The cache is trimmed when it shrinks.
func (c *EmbeddingClient) Configure(cfg domain.EmbeddingSettings) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cfg.BatchSize > 0 && cfg.BatchSize != c.batchSize {
		c.batchSize = cfg.BatchSize
		c.pool.Tune(cfg.BatchSize)
	}
	c.batchDelay = cfg.BatchDelay
	if cfg.MinInterval > 0 {
		c.limiter.SetLimit(rate.Every(cfg.MinInterval))
	} else {
		c.limiter.SetLimit(rate.Inf)
	}
	c.cacheSize = cfg.CacheSize
	for len(c.order) > c.cacheSize {
		c.evictOldest()
	}
}

// Embed returns the embedding of one text.
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns one embedding per text, in input order.
func (c *EmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: text %d is empty", domain.ErrInvalidInput, i)
		}
	}

	c.mu.Lock()
	batchSize, batchDelay := c.batchSize, c.batchDelay
	c.mu.Unlock()

	out := make([][]float32, len(texts))
	var pending []int
	for i, text := range texts {
		if v, ok := c.cached(text); ok {
			out[i] = v
			continue
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return out, nil
	}

	batches := (len(pending) + batchSize - 1) / batchSize
	logger.Debug("embed: %d texts, %d cached, %d batches of %d", len(texts), len(texts)-len(pending), batches, batchSize)

	for b := 0; b < batches; b++ {
		if b > 0 && batchDelay > 0 {
			if err := c.sleep(ctx, batchDelay); err != nil {
				return nil, err
			}
		}
		lo := b * batchSize
		hi := lo + batchSize
		if hi > len(pending) {
			hi = len(pending)
		}
		if err := c.runBatch(ctx, texts, pending[lo:hi], out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// runBatch embeds texts at indices concurrently and stores results in out.
func (c *EmbeddingClient) runBatch(ctx context.Context, texts []string, indices []int, out [][]float32) error {
	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
	}

	for _, idx := range indices {
		idx := idx
		wg.Add(1)
		err := c.pool.Submit(func() {
			defer wg.Done()
			v, err := c.request(ctx, texts[idx])
			if err != nil {
				fail(err)
				return
			}
			out[idx] = v
		})
		if err != nil {
			wg.Done()
			fail(fmt.Errorf("submitting embedding request: %w", err))
		}
	}
	wg.Wait()

	if firstErr != nil {
		embedErr := domain.AsEmbeddingError(firstErr)
		logger.Warn("embed: batch failed (%s): %v", embedErr.Kind, embedErr.Cause)
		return embedErr
	}
	for _, idx := range indices {
		c.store(texts[idx], out[idx])
	}
	return nil
}

func (c *EmbeddingClient) request(ctx context.Context, text string) ([]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	vectors, err := c.provider.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, domain.NewEmbeddingError(domain.EmbeddingOther,
			fmt.Errorf("provider returned %d vectors for 1 input", len(vectors)))
	}
	return vectors[0], nil
}

// Dimensions returns the provider's vector size.
func (c *EmbeddingClient) Dimensions() int {
	return c.provider.Dimensions()
}

// ModelName returns the provider's model name.
func (c *EmbeddingClient) ModelName() string {
	return c.provider.ModelName()
}

// Ping checks the provider is reachable.
func (c *EmbeddingClient) Ping(ctx context.Context) error {
	return c.provider.Ping(ctx)
}

// ClearCache drops every cached embedding.
func (c *EmbeddingClient) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]cacheEntry)
	c.order = nil
}

// CacheLen returns the number of cached embeddings.
func (c *EmbeddingClient) CacheLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// Close releases the worker pool.
func (c *EmbeddingClient) Close() error {
	c.pool.Release()
	return nil
}

// cached looks up text. The cache is keyed by a text prefix; an entry
// only answers for the exact text it was stored with.
func (c *EmbeddingClient) cached(text string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[cacheKey(text)]
	if !ok || entry.text != text {
		return nil, false
	}
	return entry.vector, true
}

func (c *EmbeddingClient) store(text string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cacheSize <= 0 {
		return
	}
	key := cacheKey(text)
	if _, ok := c.cache[key]; !ok {
		if len(c.order) >= c.cacheSize {
			c.evictOldest()
		}
		c.order = append(c.order, key)
	}
	c.cache[key] = cacheEntry{text: text, vector: vector}
}

func (c *EmbeddingClient) evictOldest() {
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.cache, oldest)
}

func cacheKey(text string) string {
	n := 0
	for i := range text {
		if n == cacheKeyRunes {
			return text[:i]
		}
		n++
	}
	return text
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
