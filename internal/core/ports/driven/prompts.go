package driven

// Prompt names used by the enricher.
const (
	PromptEnrichSystem    = "enrich_system"
	PromptEnrichNutrition = "enrich_nutrition"
	PromptEnrichSpiritual = "enrich_spiritual"
)

// PromptStore loads language-model prompt templates by name.
type PromptStore interface {
	// Load returns the prompt for name, or an error if none is known.
	Load(name string) (string, error)
}
