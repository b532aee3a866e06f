package domain

import (
	"fmt"
	"math"
)

// VectorSpace names a vector space within a collection.
// The empty space is the single unnamed vector of a single-vector collection.
type VectorSpace string

// Vector spaces used by dual-vector collections.
const (
	SpaceDefault VectorSpace = ""
	SpaceContent VectorSpace = "content"
	SpaceMeta    VectorSpace = "meta"
)

// VectorPoint is one chunk in the vector store.
type VectorPoint struct {
	// ID is stable for a given text hash and chunk index.
	ID string

	// Content is the embedding of the chunk text.
	Content []float32

	// Meta is the embedding of the enrichment summary text.
	// Nil in single-vector mode.
	Meta []float32

	// Payload carries the chunk text and denormalized metadata.
	Payload map[string]any
}

// CollectionSpec describes the collection to create.
type CollectionSpec struct {
	// Name is the collection name.
	Name string

	// Dimensions is the vector size of every space.
	Dimensions int

	// Spaces lists named spaces. Empty means a single unnamed vector.
	Spaces []VectorSpace

	// Recreate drops an existing collection before creating it.
	Recreate bool
}

// Named reports whether the collection uses named vector spaces.
func (c CollectionSpec) Named() bool {
	return len(c.Spaces) > 0
}

// VectorQuery is one nearest-neighbour search.
type VectorQuery struct {
	// Vector is the query embedding.
	Vector []float32

	// Space is the vector space to search. Empty for single-vector collections.
	Space VectorSpace

	// Limit is the maximum number of candidates.
	Limit int

	// ScoreThreshold drops candidates below it when positive.
	ScoreThreshold float64
}

// Candidate is a scored nearest-neighbour hit.
type Candidate struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// ValidatePoints checks a batch before it is sent anywhere: every content
// vector must share one dimension, every meta vector must share one
// dimension, meta vectors must be present on all points or none, and all
// components must be finite. The error wraps ErrInvalidInput.
func ValidatePoints(points []VectorPoint) error {
	if len(points) == 0 {
		return nil
	}

	contentDim := len(points[0].Content)
	metaDim := len(points[0].Meta)
	withMeta := points[0].Meta != nil

	for i := range points {
		p := &points[i]
		if p.ID == "" {
			return fmt.Errorf("%w: point %d has no id", ErrInvalidInput, i)
		}
		if len(p.Content) == 0 {
			return fmt.Errorf("%w: point %d has an empty content vector", ErrInvalidInput, i)
		}
		if len(p.Content) != contentDim {
			return fmt.Errorf("%w: point %d content dimension %d, want %d",
				ErrInvalidInput, i, len(p.Content), contentDim)
		}
		if (p.Meta != nil) != withMeta {
			return fmt.Errorf("%w: point %d meta vector presence differs from batch", ErrInvalidInput, i)
		}
		if withMeta && len(p.Meta) != metaDim {
			return fmt.Errorf("%w: point %d meta dimension %d, want %d",
				ErrInvalidInput, i, len(p.Meta), metaDim)
		}
		if j := firstNonFinite(p.Content); j >= 0 {
			return fmt.Errorf("%w: point %d content component %d is not finite", ErrInvalidInput, i, j)
		}
		if j := firstNonFinite(p.Meta); j >= 0 {
			return fmt.Errorf("%w: point %d meta component %d is not finite", ErrInvalidInput, i, j)
		}
	}
	return nil
}

func firstNonFinite(v []float32) int {
	for i, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return i
		}
	}
	return -1
}
