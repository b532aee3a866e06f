package driven

import (
	"context"

	"github.com/custodia-labs/corpus/internal/core/domain"
)

// VectorStore upserts and searches vector points.
type VectorStore interface {
	// CreateCollection creates the collection described by spec.
	// Calling it for an existing collection is a no-op unless spec.Recreate is set.
	CreateCollection(ctx context.Context, spec domain.CollectionSpec) error

	// DeleteCollection drops a collection. A missing collection is not an error.
	DeleteCollection(ctx context.Context, name string) error

	// Upsert writes points into collection. The batch is validated locally
	// with domain.ValidatePoints before any write; an invalid batch writes nothing.
	Upsert(ctx context.Context, collection string, points []domain.VectorPoint) error

	// Search returns candidates sorted by descending similarity.
	Search(ctx context.Context, collection string, query domain.VectorQuery) ([]domain.Candidate, error)

	// Ping validates the store is reachable.
	Ping(ctx context.Context) error
}
