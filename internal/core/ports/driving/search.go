package driving

import (
	"context"

	"github.com/custodia-labs/corpus/internal/core/domain"
)

// RetrievalService answers queries with ranked chunks.
type RetrievalService interface {
	// Retrieve embeds query and returns merged, ranked results.
	// Provider failures degrade to a response with NoContext set.
	Retrieve(ctx context.Context, query string, opts domain.RetrievalOptions) (*domain.RetrievalResponse, error)
}
