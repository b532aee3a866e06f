package domain

import "time"

// Default configuration values.
const (
	DefaultChunkSize         = 1000
	DefaultChunkOverlap      = 200
	DefaultPreserveStructure = true

	DefaultRetrievalK     = 5
	DefaultContentWeight  = 0.7
	DefaultMetaWeight     = 0.3
	DefaultScoreThreshold = 0.0

	DefaultCollection = "nutralogos"

	DefaultEmbeddingModel = "text-embedding-3-large"
	DefaultBatchSize      = 5
	DefaultBatchDelay     = 500 * time.Millisecond
	DefaultMinInterval    = 200 * time.Millisecond
	DefaultCacheSize      = 100

	DefaultEnrichmentModel  = "gpt-4o-mini"
	DefaultMaxContextTokens = 120000
	MinContextTokens        = 8000

	DefaultMaxFileSizeMB = 50

	DefaultUploadLimit   = 10
	DefaultSearchLimit   = 60
	DefaultFlushInterval = 5 * time.Second
)

// Route names protected by the rate limiter.
const (
	RouteUpload = "/api/upload"
	RouteSearch = "/api/search"
)

// ChunkingSettings configures the chunking engine.
type ChunkingSettings struct {
	// Size is the target chunk size in tokens.
	Size int

	// Overlap is the overlap between consecutive chunks in tokens.
	Overlap int

	// PreserveStructure prefers paragraph and sentence boundaries.
	PreserveStructure bool
}

// RetrievalSettings configures query-time retrieval.
type RetrievalSettings struct {
	K              int
	ScoreThreshold float64
	ContentWeight  float64
	MetaWeight     float64
}

// VectorSettings configures the vector store layout.
type VectorSettings struct {
	// Collection is the vector store collection name.
	Collection string

	// MultiVector stores a meta vector beside the content vector.
	MultiVector bool
}

// EmbeddingSettings configures the embedding client.
type EmbeddingSettings struct {
	Model       string
	BatchSize   int
	BatchDelay  time.Duration
	MinInterval time.Duration
	CacheSize   int
}

// EnrichmentSettings configures metadata enrichment.
type EnrichmentSettings struct {
	Enabled          bool
	Strategy         SamplingStrategy
	MaxContextTokens int
	Domain           EnrichmentDomain
	Model            string

	// Prompt replaces the built-in domain instruction when non-empty.
	Prompt string
}

// TokenBudget returns the effective enrichment budget in tokens.
func (e EnrichmentSettings) TokenBudget() int {
	if e.MaxContextTokens < MinContextTokens {
		return MinContextTokens
	}
	return e.MaxContextTokens
}

// UploadSettings configures the upload boundary.
type UploadSettings struct {
	MaxFileSizeMB int
}

// MaxBytes returns the size limit in bytes.
func (u UploadSettings) MaxBytes() int64 {
	return int64(u.MaxFileSizeMB) * 1024 * 1024
}

// RateLimitSettings configures the rate limiter policies.
type RateLimitSettings struct {
	Upload        RatePolicy
	Search        RatePolicy
	FlushInterval time.Duration
}

// Policies returns the route policy table.
func (r RateLimitSettings) Policies() map[string]RatePolicy {
	return map[string]RatePolicy{
		RouteUpload: r.Upload,
		RouteSearch: r.Search,
	}
}

// SyncSettings configures background sync.
type SyncSettings struct {
	// Interval runs sync periodically in serve mode. Zero disables it.
	Interval time.Duration
}

// Settings is a validated, typed configuration snapshot.
// It is read fresh for every operation.
type Settings struct {
	Chunking   ChunkingSettings
	Retrieval  RetrievalSettings
	Vector     VectorSettings
	Embedding  EmbeddingSettings
	Enrichment EnrichmentSettings
	Upload     UploadSettings
	RateLimits RateLimitSettings
	Sync       SyncSettings
}

// DefaultSettings returns the fallback configuration.
func DefaultSettings() Settings {
	return Settings{
		Chunking: ChunkingSettings{
			Size:              DefaultChunkSize,
			Overlap:           DefaultChunkOverlap,
			PreserveStructure: DefaultPreserveStructure,
		},
		Retrieval: RetrievalSettings{
			K:              DefaultRetrievalK,
			ScoreThreshold: DefaultScoreThreshold,
			ContentWeight:  DefaultContentWeight,
			MetaWeight:     DefaultMetaWeight,
		},
		Vector: VectorSettings{
			Collection: DefaultCollection,
		},
		Embedding: EmbeddingSettings{
			Model:       DefaultEmbeddingModel,
			BatchSize:   DefaultBatchSize,
			BatchDelay:  DefaultBatchDelay,
			MinInterval: DefaultMinInterval,
			CacheSize:   DefaultCacheSize,
		},
		Enrichment: EnrichmentSettings{
			Enabled:          true,
			Strategy:         StrategyAuto,
			MaxContextTokens: DefaultMaxContextTokens,
			Domain:           DomainNutrition,
			Model:            DefaultEnrichmentModel,
		},
		Upload: UploadSettings{
			MaxFileSizeMB: DefaultMaxFileSizeMB,
		},
		RateLimits: RateLimitSettings{
			Upload:        RatePolicy{Limit: DefaultUploadLimit, Window: WindowHour},
			Search:        RatePolicy{Limit: DefaultSearchLimit, Window: WindowMinute},
			FlushInterval: DefaultFlushInterval,
		},
	}
}

// Sanitize replaces invalid values with defaults and reports what it replaced.
func (s *Settings) Sanitize() []string {
	d := DefaultSettings()
	var fixed []string

	if s.Chunking.Size <= 0 || s.Chunking.Overlap < 0 || s.Chunking.Overlap >= s.Chunking.Size {
		fixed = append(fixed, "chunking size/overlap")
		s.Chunking.Size, s.Chunking.Overlap = d.Chunking.Size, d.Chunking.Overlap
	}
	if s.Retrieval.K <= 0 {
		fixed = append(fixed, "retrieval.k")
		s.Retrieval.K = d.Retrieval.K
	}
	if s.Retrieval.ContentWeight < 0 || s.Retrieval.MetaWeight < 0 ||
		s.Retrieval.ContentWeight+s.Retrieval.MetaWeight == 0 {
		fixed = append(fixed, "retrieval weights")
		s.Retrieval.ContentWeight, s.Retrieval.MetaWeight = d.Retrieval.ContentWeight, d.Retrieval.MetaWeight
	}
	if s.Vector.Collection == "" {
		s.Vector.Collection = d.Vector.Collection
	}
	if s.Embedding.Model == "" {
		s.Embedding.Model = d.Embedding.Model
	}
	if s.Embedding.BatchSize <= 0 {
		fixed = append(fixed, "embedding.batch_size")
		s.Embedding.BatchSize = d.Embedding.BatchSize
	}
	if s.Embedding.BatchDelay < 0 {
		fixed = append(fixed, "embedding.batch_delay_ms")
		s.Embedding.BatchDelay = d.Embedding.BatchDelay
	}
	if s.Embedding.MinInterval < 0 {
		fixed = append(fixed, "embedding.min_interval_ms")
		s.Embedding.MinInterval = d.Embedding.MinInterval
	}
	if s.Embedding.CacheSize < 0 {
		fixed = append(fixed, "embedding.cache_size")
		s.Embedding.CacheSize = d.Embedding.CacheSize
	}
	if !s.Enrichment.Strategy.IsValid() {
		fixed = append(fixed, "enrichment.strategy")
		s.Enrichment.Strategy = d.Enrichment.Strategy
	}
	if !s.Enrichment.Domain.IsValid() {
		fixed = append(fixed, "enrichment.domain")
		s.Enrichment.Domain = d.Enrichment.Domain
	}
	if s.Enrichment.Model == "" {
		s.Enrichment.Model = d.Enrichment.Model
	}
	if s.Enrichment.MaxContextTokens <= 0 {
		s.Enrichment.MaxContextTokens = d.Enrichment.MaxContextTokens
	}
	if s.Upload.MaxFileSizeMB <= 0 {
		fixed = append(fixed, "upload.max_file_size_mb")
		s.Upload.MaxFileSizeMB = d.Upload.MaxFileSizeMB
	}
	if s.RateLimits.Upload.Validate() != nil {
		fixed = append(fixed, "ratelimit.upload")
		s.RateLimits.Upload = d.RateLimits.Upload
	}
	if s.RateLimits.Search.Validate() != nil {
		fixed = append(fixed, "ratelimit.search")
		s.RateLimits.Search = d.RateLimits.Search
	}
	if s.RateLimits.FlushInterval <= 0 {
		s.RateLimits.FlushInterval = d.RateLimits.FlushInterval
	}
	if s.Sync.Interval < 0 {
		s.Sync.Interval = 0
	}
	return fixed
}
