package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/corpus/internal/core/domain"
	"github.com/custodia-labs/corpus/internal/core/ports/driven"
	"github.com/custodia-labs/corpus/internal/logger"
)

// Config keys for settings storage.
const (
	KeyChunkSize         = "chunking.size"
	KeyChunkOverlap      = "chunking.overlap"
	KeyPreserveStructure = "chunking.preserve_structure"

	KeyRetrievalK      = "retrieval.k"
	KeyScoreThreshold  = "retrieval.score_threshold"
	KeyContentWeight   = "retrieval.content_weight"
	KeyMetaWeight      = "retrieval.meta_weight"
	KeyMultiVector     = "vector.multivector_enabled"
	KeyCollection      = "vector.collection"
	KeyEmbedModel      = "embedding.model"
	KeyEmbedBatchSize  = "embedding.batch_size"
	KeyEmbedBatchDelay = "embedding.batch_delay_ms"
	KeyEmbedInterval   = "embedding.min_interval_ms"
	KeyEmbedCacheSize  = "embedding.cache_size"

	KeyEnrichEnabled   = "enrichment.enabled"
	KeyEnrichStrategy  = "enrichment.strategy"
	KeyEnrichMaxTokens = "enrichment.max_context_tokens"
	KeyEnrichDomain    = "enrichment.domain"
	KeyEnrichModel     = "enrichment.model"
	KeyEnrichPrompt    = "enrichment.prompt"

	KeyMaxFileSizeMB = "upload.max_file_size_mb"

	KeyUploadLimit          = "ratelimit.upload.limit"
	KeyUploadWindow         = "ratelimit.upload.window"
	KeyUploadBlockThreshold = "ratelimit.upload.block_threshold"
	KeyUploadBlockMinutes   = "ratelimit.upload.block_minutes"
	KeyUploadBlockReason    = "ratelimit.upload.block_reason"
	KeySearchLimit          = "ratelimit.search.limit"
	KeySearchWindow         = "ratelimit.search.window"
	KeySearchBlockThreshold = "ratelimit.search.block_threshold"
	KeySearchBlockMinutes   = "ratelimit.search.block_minutes"
	KeySearchBlockReason    = "ratelimit.search.block_reason"
	KeyFlushInterval        = "ratelimit.flush_interval_seconds"

	KeySyncInterval = "sync.interval_minutes"
)

// valueKind is the expected type of a config key.
type valueKind int

const (
	kindInt valueKind = iota
	kindFloat
	kindBool
	kindString
)

var knownKeys = map[string]valueKind{
	KeyChunkSize: kindInt, KeyChunkOverlap: kindInt, KeyPreserveStructure: kindBool,
	KeyRetrievalK: kindInt, KeyScoreThreshold: kindFloat,
	KeyContentWeight: kindFloat, KeyMetaWeight: kindFloat,
	KeyMultiVector: kindBool, KeyCollection: kindString,
	KeyEmbedModel: kindString, KeyEmbedBatchSize: kindInt, KeyEmbedBatchDelay: kindInt,
	KeyEmbedInterval: kindInt, KeyEmbedCacheSize: kindInt,
	KeyEnrichEnabled: kindBool, KeyEnrichStrategy: kindString, KeyEnrichMaxTokens: kindInt,
	KeyEnrichDomain: kindString, KeyEnrichModel: kindString, KeyEnrichPrompt: kindString,
	KeyMaxFileSizeMB: kindInt,
	KeyUploadLimit: kindInt, KeyUploadWindow: kindString, KeyUploadBlockThreshold: kindInt,
	KeyUploadBlockMinutes: kindInt, KeyUploadBlockReason: kindString,
	KeySearchLimit: kindInt, KeySearchWindow: kindString, KeySearchBlockThreshold: kindInt,
	KeySearchBlockMinutes: kindInt, KeySearchBlockReason: kindString,
	KeyFlushInterval: kindInt,
	KeySyncInterval:  kindInt,
}

// SettingsService reads typed settings snapshots from the configuration provider.
type SettingsService struct {
	configStore driven.ConfigStore

	// defaultCollection replaces the built-in collection name when set.
	defaultCollection string
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// SetDefaultCollection sets the collection used when vector.collection is
// not configured, e.g. from the environment.
func (s *SettingsService) SetDefaultCollection(name string) {
	s.defaultCollection = strings.TrimSpace(name)
}

// Snapshot reads the configuration and returns validated settings.
// Missing keys take their defaults; invalid values are replaced by
// defaults with a warning. It never fails.
func (s *SettingsService) Snapshot() domain.Settings {
	d := domain.DefaultSettings()
	if s == nil || s.configStore == nil {
		return d
	}
	if s.defaultCollection != "" {
		d.Vector.Collection = s.defaultCollection
	}

	settings := domain.Settings{
		Chunking: domain.ChunkingSettings{
			Size:              s.getInt(KeyChunkSize, d.Chunking.Size),
			Overlap:           s.getInt(KeyChunkOverlap, d.Chunking.Overlap),
			PreserveStructure: s.getBool(KeyPreserveStructure, d.Chunking.PreserveStructure),
		},
		Retrieval: domain.RetrievalSettings{
			K:              s.getInt(KeyRetrievalK, d.Retrieval.K),
			ScoreThreshold: s.getFloat(KeyScoreThreshold, d.Retrieval.ScoreThreshold),
			ContentWeight:  s.getFloat(KeyContentWeight, d.Retrieval.ContentWeight),
			MetaWeight:     s.getFloat(KeyMetaWeight, d.Retrieval.MetaWeight),
		},
		Vector: domain.VectorSettings{
			Collection:  s.getString(KeyCollection, d.Vector.Collection),
			MultiVector: s.getBool(KeyMultiVector, d.Vector.MultiVector),
		},
		Embedding: domain.EmbeddingSettings{
			Model:       s.getString(KeyEmbedModel, d.Embedding.Model),
			BatchSize:   s.getInt(KeyEmbedBatchSize, d.Embedding.BatchSize),
			BatchDelay:  s.getMillis(KeyEmbedBatchDelay, d.Embedding.BatchDelay),
			MinInterval: s.getMillis(KeyEmbedInterval, d.Embedding.MinInterval),
			CacheSize:   s.getInt(KeyEmbedCacheSize, d.Embedding.CacheSize),
		},
		Enrichment: domain.EnrichmentSettings{
			Enabled:          s.getBool(KeyEnrichEnabled, d.Enrichment.Enabled),
			Strategy:         domain.SamplingStrategy(s.getString(KeyEnrichStrategy, string(d.Enrichment.Strategy))),
			MaxContextTokens: s.getInt(KeyEnrichMaxTokens, d.Enrichment.MaxContextTokens),
			Domain:           domain.EnrichmentDomain(s.getString(KeyEnrichDomain, string(d.Enrichment.Domain))),
			Model:            s.getString(KeyEnrichModel, d.Enrichment.Model),
			Prompt:           strings.TrimSpace(s.configStore.GetString(KeyEnrichPrompt)),
		},
		Upload: domain.UploadSettings{
			MaxFileSizeMB: s.getInt(KeyMaxFileSizeMB, d.Upload.MaxFileSizeMB),
		},
		RateLimits: domain.RateLimitSettings{
			Upload: s.getPolicy(d.RateLimits.Upload, KeyUploadLimit, KeyUploadWindow,
				KeyUploadBlockThreshold, KeyUploadBlockMinutes, KeyUploadBlockReason),
			Search: s.getPolicy(d.RateLimits.Search, KeySearchLimit, KeySearchWindow,
				KeySearchBlockThreshold, KeySearchBlockMinutes, KeySearchBlockReason),
			FlushInterval: time.Duration(s.getInt(KeyFlushInterval, int(d.RateLimits.FlushInterval/time.Second))) * time.Second,
		},
		Sync: domain.SyncSettings{
			Interval: time.Duration(s.getInt(KeySyncInterval, 0)) * time.Minute,
		},
	}

	if fixed := settings.Sanitize(); len(fixed) > 0 {
		logger.Warn("settings: invalid values replaced with defaults: %s", strings.Join(fixed, ", "))
	}
	return settings
}

// Set validates and stores a single configuration value.
// The raw string is converted to the key's type.
func (s *SettingsService) Set(key, raw string) error {
	kind, ok := knownKeys[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	value, err := parseValue(kind, raw)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, key, err)
	}
	return s.configStore.Set(key, value)
}

// Keys returns every known setting key, sorted.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(knownKeys))
	for k := range knownKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Path returns the configuration file path.
func (s *SettingsService) Path() string {
	return s.configStore.Path()
}

func (s *SettingsService) getPolicy(def domain.RatePolicy, limitKey, windowKey, thresholdKey, minutesKey, reasonKey string) domain.RatePolicy {
	return domain.RatePolicy{
		Limit:          s.getInt(limitKey, def.Limit),
		Window:         domain.RateWindow(s.getString(windowKey, string(def.Window))),
		BlockThreshold: s.getInt(thresholdKey, def.BlockThreshold),
		BlockDuration:  time.Duration(s.getInt(minutesKey, int(def.BlockDuration/time.Minute))) * time.Minute,
		BlockReason:    s.getString(reasonKey, def.BlockReason),
	}
}

func (s *SettingsService) getString(key, def string) string {
	if v := s.configStore.GetString(key); v != "" {
		return v
	}
	return def
}

func (s *SettingsService) getInt(key string, def int) int {
	v, ok := s.configStore.Get(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		logger.Warn("settings: %s is not a number, using %d", key, def)
		return def
	}
}

func (s *SettingsService) getFloat(key string, def float64) float64 {
	v, ok := s.configStore.Get(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		logger.Warn("settings: %s is not a number, using %g", key, def)
		return def
	}
}

func (s *SettingsService) getBool(key string, def bool) bool {
	v, ok := s.configStore.Get(key)
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		logger.Warn("settings: %s is not a boolean, using %t", key, def)
		return def
	}
	return b
}

func (s *SettingsService) getMillis(key string, def time.Duration) time.Duration {
	return time.Duration(s.getInt(key, int(def/time.Millisecond))) * time.Millisecond
}

func parseValue(kind valueKind, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch kind {
	case kindInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expected an integer, got %q", raw)
		}
		return n, nil
	case kindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("expected a number, got %q", raw)
		}
		return f, nil
	case kindBool:
		switch strings.ToLower(raw) {
		case "true", "yes", "on", "1":
			return true, nil
		case "false", "no", "off", "0":
			return false, nil
		}
		return nil, fmt.Errorf("expected true or false, got %q", raw)
	default:
		return raw, nil
	}
}
