package driven

import (
	"context"

	"github.com/custodia-labs/corpus/internal/core/domain"
)

// Extractor turns the bytes of one document format into text.
type Extractor interface {
	// Variant returns the document format this extractor handles.
	Variant() domain.DocumentVariant

	// Extensions returns the lowercased file extensions, with leading dot.
	Extensions() []string

	// MediaTypes returns the media types this extractor accepts.
	MediaTypes() []string

	// Validate performs a cheap signature check on the raw bytes.
	Validate(content []byte) bool

	// Extract returns recognisable text or a *domain.ExtractionError.
	Extract(ctx context.Context, content []byte) (string, error)
}

// ExtractorRegistry selects an extractor for a file.
type ExtractorRegistry interface {
	// Select returns the extractor for filename and media type.
	// Returns domain.ErrUnsupportedType when none matches.
	Select(filename, mediaType string) (Extractor, error)

	// SupportedExtensions lists every extension with an extractor.
	SupportedExtensions() []string
}
