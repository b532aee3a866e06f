package domain

import (
	"fmt"
	"strings"
)

// EnrichmentDomain selects the instruction and schema used for enrichment.
type EnrichmentDomain string

// Supported enrichment domains.
const (
	DomainNutrition EnrichmentDomain = "nutrition"
	DomainSpiritual EnrichmentDomain = "spiritual"
)

// IsValid returns true if the domain is recognised.
func (d EnrichmentDomain) IsValid() bool {
	return d == DomainNutrition || d == DomainSpiritual
}

// SamplingStrategy decides how oversized texts are cut down before enrichment.
type SamplingStrategy string

// Sampling strategies.
const (
	// StrategyAuto sends the full text under budget, otherwise samples.
	StrategyAuto SamplingStrategy = "auto"

	// StrategySampled sends head and tail, half the budget each.
	StrategySampled SamplingStrategy = "sampled"

	// StrategyHierarchical sends head, middle and tail thirds.
	StrategyHierarchical SamplingStrategy = "hierarchical"
)

// IsValid returns true if the strategy is recognised.
func (s SamplingStrategy) IsValid() bool {
	switch s {
	case StrategyAuto, StrategySampled, StrategyHierarchical:
		return true
	default:
		return false
	}
}

// Metadata is structured, best-effort enrichment output.
// Keys follow the JSON returned by the language model (summary, topics,
// suggested_tags, ...). An empty map is a valid value.
type Metadata map[string]any

// String returns the string value for key, or "".
func (m Metadata) String(key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Strings returns the string list for key. Non-string items are skipped.
func (m Metadata) Strings(key string) []string {
	switch v := m[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// IsEmpty reports whether enrichment produced nothing beyond the domain tag.
func (m Metadata) IsEmpty() bool {
	for k := range m {
		if k != "domain" {
			return false
		}
	}
	return true
}
