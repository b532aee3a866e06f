package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/corpus/internal/core/domain"
	"github.com/custodia-labs/corpus/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore is an in-memory driven.VectorStore using exact cosine
// similarity. It stands in for the remote store in tests and dry runs.
type VectorStore struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

type collection struct {
	spec   domain.CollectionSpec
	points map[string]domain.VectorPoint
}

// NewVectorStore creates an empty in-memory vector store.
func NewVectorStore() *VectorStore {
	return &VectorStore{collections: make(map[string]*collection)}
}

// CreateCollection creates a collection. Existing collections are kept
// unless spec.Recreate is set.
func (s *VectorStore) CreateCollection(_ context.Context, spec domain.CollectionSpec) error {
	if spec.Name == "" || spec.Dimensions <= 0 {
		return fmt.Errorf("%w: collection needs a name and positive dimensions", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[spec.Name]; ok && !spec.Recreate {
		return nil
	}
	s.collections[spec.Name] = &collection{spec: spec, points: make(map[string]domain.VectorPoint)}
	return nil
}

// DeleteCollection drops a collection.
func (s *VectorStore) DeleteCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

// Upsert validates and stores points. An invalid batch writes nothing.
func (s *VectorStore) Upsert(_ context.Context, name string, points []domain.VectorPoint) error {
	if err := domain.ValidatePoints(points); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		return &domain.VectorStoreError{Op: "upsert", Cause: fmt.Errorf("collection %q: %w", name, domain.ErrNotFound)}
	}
	for _, p := range points {
		if len(p.Content) != c.spec.Dimensions {
			return fmt.Errorf("%w: content dimension %d, collection has %d",
				domain.ErrInvalidInput, len(p.Content), c.spec.Dimensions)
		}
		if p.Meta != nil && !c.hasSpace(domain.SpaceMeta) {
			return fmt.Errorf("%w: collection %q has no meta space", domain.ErrInvalidInput, name)
		}
	}
	for _, p := range points {
		c.points[p.ID] = p
	}
	return nil
}

// Search ranks every point by cosine similarity in the requested space.
func (s *VectorStore) Search(_ context.Context, name string, q domain.VectorQuery) ([]domain.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return nil, &domain.VectorStoreError{Op: "search", Cause: fmt.Errorf("collection %q: %w", name, domain.ErrNotFound)}
	}
	if c.spec.Named() != (q.Space != domain.SpaceDefault) || (q.Space != domain.SpaceDefault && !c.hasSpace(q.Space)) {
		return nil, fmt.Errorf("%w: space %q does not match collection %q", domain.ErrInvalidInput, q.Space, name)
	}

	out := make([]domain.Candidate, 0, len(c.points))
	for _, p := range c.points {
		vec := p.Content
		if q.Space == domain.SpaceMeta {
			vec = p.Meta
		}
		if vec == nil {
			continue
		}
		score := cosine(q.Vector, vec)
		if q.ScoreThreshold > 0 && score < q.ScoreThreshold {
			continue
		}
		out = append(out, domain.Candidate{ID: p.ID, Score: score, Payload: p.Payload})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Ping always succeeds.
func (s *VectorStore) Ping(_ context.Context) error {
	return nil
}

// Count returns the number of points in a collection.
func (s *VectorStore) Count(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.collections[name]; ok {
		return len(c.points)
	}
	return 0
}

// Point returns a stored point by id.
func (s *VectorStore) Point(name, id string) (domain.VectorPoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return domain.VectorPoint{}, false
	}
	p, ok := c.points[id]
	return p, ok
}

func (c *collection) hasSpace(space domain.VectorSpace) bool {
	for _, sp := range c.spec.Spaces {
		if sp == space {
			return true
		}
	}
	return false
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
