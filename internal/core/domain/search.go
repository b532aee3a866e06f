package domain

// RetrievalOptions overrides the configured retrieval settings for one query.
// Nil fields keep the configured value.
type RetrievalOptions struct {
	// K is the number of results.
	K *int

	// ContentWeight weights the content space score.
	ContentWeight *float64

	// MetaWeight weights the meta space score.
	MetaWeight *float64

	// ScoreThreshold drops merged results below it when positive.
	ScoreThreshold *float64
}

// RetrievalResult is one ranked chunk.
type RetrievalResult struct {
	// ID is the vector point id.
	ID string `json:"id"`

	// Content is the chunk text.
	Content string `json:"content"`

	// Metadata is the denormalized payload metadata.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Score is the merged score.
	Score float64 `json:"score"`

	// ContentScore and MetaScore are the per-space similarities (0 when absent).
	ContentScore float64 `json:"content_score"`
	MetaScore    float64 `json:"meta_score"`
}

// NoContextMessage is the reason reported when retrieval finds nothing usable.
const NoContextMessage = "no relevant context found"

// RetrievalResponse is the answer of the retrieval boundary.
type RetrievalResponse struct {
	// Query is the original query string.
	Query string `json:"query"`

	// Results are sorted by descending score.
	Results []RetrievalResult `json:"results"`

	// NoContext is true when no results are available, either because
	// nothing matched or because retrieval failed and degraded.
	NoContext bool `json:"no_context"`

	// Reason explains NoContext.
	Reason string `json:"reason,omitempty"`

	// MultiVector reports whether the meta space took part.
	MultiVector bool `json:"multi_vector"`
}
