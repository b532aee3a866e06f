package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/custodia-labs/corpus/internal/core/domain"
	"github.com/custodia-labs/corpus/internal/core/ports/driven"
	"github.com/custodia-labs/corpus/internal/logger"
)

// Enrichment call parameters.
const (
	enrichTemperature = 0.2
	enrichMaxTokens   = 1200
	enrichTimeout     = 60 * time.Second

	// charsPerToken is the rough estimate used for the enrichment budget.
	charsPerToken = 4

	sampleSeparator = "\n\n[...]\n\n"
)

var jsonObject = regexp.MustCompile(`\{[\s\S]*\}`)

const defaultSystemPrompt = "You reply with strictly valid JSON only, without comments or explanations."

const defaultNutritionPrompt = `You are an expert in nutrition science, functional medicine and dietetics. The input is an educational or lecture document. Analyse its content briefly and in a structured way and return the result as JSON. Return ONLY valid JSON.

Format:
{
  "summary": "Short summary and purpose of the document.",
  "topics": ["main topics and key concepts"],
  "target_conditions": ["conditions or diseases the document addresses"],
  "recommended_foods": ["beneficial foods mentioned"],
  "restricted_foods": ["foods to avoid or limit"],
  "author_type": "nutritionist / physician / hormone specialist, etc.",
  "emotional_tone": "educational / supportive / alarming / motivating, etc.",
  "suggested_tags": ["nutrition", "gut health", "hormones"]
}`

const defaultSpiritualPrompt = `You analyse spiritual and philosophical texts. The input is a document converted to text. Analyse it as a whole and output ONLY valid JSON:
{
  "summary": "Short summary of the whole text.",
  "topics": ["main themes"],
  "source_type": "channelled message / philosophical letter / teaching / lecture",
  "named_entities": ["people, organisations, places"],
  "emotional_tone": "uplifting / anxious / prophetic",
  "suggested_tags": ["spirituality", "esotericism"]
}`

// DefaultEnrichmentPrompts returns the built-in prompts keyed by prompt name.
// They seed the prompt store and back it up when a prompt file is blank.
func DefaultEnrichmentPrompts() map[string]string {
	return map[string]string{
		driven.PromptEnrichSystem:    defaultSystemPrompt,
		driven.PromptEnrichNutrition: defaultNutritionPrompt,
		driven.PromptEnrichSpiritual: defaultSpiritualPrompt,
	}
}

func stringArray() map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
}

func stringField() map[string]any {
	return map[string]any{"type": "string"}
}

// metadataSchemas describes the expected shape of the model's answer per domain.
// Every field is optional; only the types are enforced.
func metadataSchemas() map[domain.EnrichmentDomain]map[string]any {
	return map[domain.EnrichmentDomain]map[string]any{
		domain.DomainNutrition: {
			"type": "object",
			"properties": map[string]any{
				"summary":           stringField(),
				"topics":            stringArray(),
				"target_conditions": stringArray(),
				"recommended_foods": stringArray(),
				"restricted_foods":  stringArray(),
				"author_type":       stringField(),
				"emotional_tone":    stringField(),
				"suggested_tags":    stringArray(),
			},
		},
		domain.DomainSpiritual: {
			"type": "object",
			"properties": map[string]any{
				"summary":        stringField(),
				"topics":         stringArray(),
				"source_type":    stringField(),
				"named_entities": stringArray(),
				"emotional_tone": stringField(),
				"suggested_tags": stringArray(),
			},
		},
	}
}

// MetadataEnricher asks a language model for structured metadata about a text.
// Enrichment is best-effort: every failure degrades to empty metadata.
type MetadataEnricher struct {
	llm     driven.LLMService
	prompts driven.PromptStore
	schemas map[domain.EnrichmentDomain]*gojsonschema.Schema
}

// NewMetadataEnricher creates an enricher. Both llm and prompts may be nil;
// without llm enrichment is skipped, without prompts built-in prompts are used.
func NewMetadataEnricher(llm driven.LLMService, prompts driven.PromptStore) *MetadataEnricher {
	schemas := make(map[domain.EnrichmentDomain]*gojsonschema.Schema)
	for d, def := range metadataSchemas() {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(def))
		if err != nil {
			logger.Warn("enrich: %s schema unusable, skipping validation: %v", d, err)
			continue
		}
		schemas[d] = schema
	}
	return &MetadataEnricher{llm: llm, prompts: prompts, schemas: schemas}
}

// Available reports whether a language model is configured.
func (e *MetadataEnricher) Available() bool {
	return e != nil && e.llm != nil
}

// Enrich samples text according to cfg, asks the model for metadata and
// returns it tagged with the domain. It never fails: any error is logged
// and an empty metadata map (domain only) is returned.
func (e *MetadataEnricher) Enrich(ctx context.Context, text string, cfg domain.EnrichmentSettings) domain.Metadata {
	metadata, err := e.enrich(ctx, text, cfg)
	if err != nil {
		logger.Warn("enrich: %v", &domain.EnrichmentError{Cause: err})
		metadata = domain.Metadata{}
	}
	metadata["domain"] = string(cfg.Domain)
	return metadata
}

func (e *MetadataEnricher) enrich(ctx context.Context, text string, cfg domain.EnrichmentSettings) (domain.Metadata, error) {
	if !e.Available() {
		return nil, domain.ErrLLMUnavailable
	}

	sample := SampleText(text, cfg.Strategy, cfg.TokenBudget())
	user := e.userPrompt(cfg, sample)
	system := e.loadPrompt(driven.PromptEnrichSystem)

	callCtx, cancel := context.WithTimeout(ctx, enrichTimeout)
	defer cancel()

	start := time.Now()
	reply, err := e.llm.Complete(callCtx, system, user, driven.CompletionOptions{
		Model:       cfg.Model,
		MaxTokens:   enrichMaxTokens,
		Temperature: enrichTemperature,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("completion: %w", err)
	}
	logger.Debug("enrich: %s reply in %s (%d chars sampled of %d)",
		cfg.Domain, time.Since(start).Round(time.Millisecond), len([]rune(sample)), len([]rune(text)))

	metadata := ParseMetadataJSON(reply)
	if err := e.validate(cfg.Domain, metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}

// userPrompt builds the user message: the configured prompt wins over the
// prompt store, which wins over the built-in domain prompt.
func (e *MetadataEnricher) userPrompt(cfg domain.EnrichmentSettings, sample string) string {
	if cfg.Prompt != "" {
		return cfg.Prompt + "\n\nText to analyse:\n" + sample
	}
	name := driven.PromptEnrichNutrition
	if cfg.Domain == domain.DomainSpiritual {
		name = driven.PromptEnrichSpiritual
	}
	return e.loadPrompt(name) + "\n\nText:\n" + sample
}

func (e *MetadataEnricher) loadPrompt(name string) string {
	if e.prompts != nil {
		prompt, err := e.prompts.Load(name)
		if err == nil && strings.TrimSpace(prompt) != "" {
			return prompt
		}
		if err != nil {
			logger.Debug("enrich: prompt %s unavailable, using built-in: %v", name, err)
		}
	}
	return DefaultEnrichmentPrompts()[name]
}

func (e *MetadataEnricher) validate(d domain.EnrichmentDomain, metadata domain.Metadata) error {
	schema, ok := e.schemas[d]
	if !ok {
		return nil
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(map[string]any(metadata)))
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if result.Valid() {
		return nil
	}
	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return fmt.Errorf("metadata failed validation: %s", strings.Join(details, "; "))
}

// ParseMetadataJSON parses a model reply. It tries the whole reply first,
// then the outermost {...} block, and returns an empty map when neither
// is a JSON object.
func ParseMetadataJSON(reply string) domain.Metadata {
	var out map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(reply)), &out); err == nil && out != nil {
		return out
	}
	if block := jsonObject.FindString(reply); block != "" {
		out = nil
		if err := json.Unmarshal([]byte(block), &out); err == nil && out != nil {
			return out
		}
	}
	return domain.Metadata{}
}

// SampleText cuts text down to the token budget for enrichment.
//
// auto sends the full text when it fits and falls back to sampled;
// sampled sends head and tail, half the budget each; hierarchical sends
// head, middle and tail, a third each. Text that already fits in the
// sampled slices is returned whole.
func SampleText(text string, strategy domain.SamplingStrategy, budgetTokens int) string {
	runes := []rune(text)
	n := len(runes)

	switch strategy {
	case domain.StrategyHierarchical:
		slice := (budgetTokens / 3) * charsPerToken
		if n <= 3*slice {
			return text
		}
		midStart := n/2 - slice
		if midStart < 0 {
			midStart = 0
		}
		head := string(runes[:slice])
		mid := string(runes[midStart : midStart+slice])
		tail := string(runes[n-slice:])
		return head + sampleSeparator + mid + sampleSeparator + tail

	case domain.StrategySampled, domain.StrategyAuto:
		if strategy == domain.StrategyAuto && (n+charsPerToken-1)/charsPerToken <= budgetTokens {
			return text
		}
		slice := (budgetTokens / 2) * charsPerToken
		if n <= 2*slice {
			return text
		}
		return string(runes[:slice]) + sampleSeparator + string(runes[n-slice:])

	default:
		return text
	}
}

// MetaText builds the text embedded into the meta vector space: title,
// tags, topics and summary on separate lines. Empty parts are skipped.
func MetaText(m domain.Metadata) string {
	var parts []string
	if title := m.String("title"); title != "" {
		parts = append(parts, title)
	}

	tags := m.Strings("suggested_tags")
	if len(tags) == 0 {
		tags = m.Strings("tags")
	}
	if len(tags) > 0 {
		parts = append(parts, strings.Join(tags, " "))
	}
	if topics := m.Strings("topics"); len(topics) > 0 {
		parts = append(parts, strings.Join(topics, ", "))
	}

	summary := m.String("summaryShort")
	if summary == "" {
		summary = m.String("summary")
	}
	if summary != "" {
		parts = append(parts, summary)
	}
	return strings.Join(parts, "\n")
}
