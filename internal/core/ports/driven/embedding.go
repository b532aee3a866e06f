package driven

import "context"

// EmbeddingProvider calls an external embedding model.
// This is an optional service - when nil, sync and retrieval cannot embed.
//
// Batching, throttling and caching live in the core EmbeddingClient;
// providers only translate one request into one API call. Failures are
// returned as *domain.EmbeddingError with a classification.
//
// Implementations may include:
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - OpenAI-compatible inference servers
type EmbeddingProvider interface {
	// Embed generates one embedding per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 1536, 3072).
	// This is determined by the model and must match the vector collection.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
