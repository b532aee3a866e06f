package normalisers

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/corpus/internal/core/domain"
	"github.com/custodia-labs/corpus/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry dispatches files to extractors. It is immutable after creation.
type Registry struct {
	extractors []driven.Extractor
	byExt      map[string]driven.Extractor
	byType     map[string]driven.Extractor
	exts       []string
}

// NewRegistry creates a registry. Earlier extractors win when two claim the
// same extension or media type.
func NewRegistry(extractors ...driven.Extractor) *Registry {
	r := &Registry{
		extractors: extractors,
		byExt:      make(map[string]driven.Extractor),
		byType:     make(map[string]driven.Extractor),
	}
	for _, e := range extractors {
		for _, ext := range e.Extensions() {
			ext = strings.ToLower(ext)
			if _, ok := r.byExt[ext]; ok {
				continue
			}
			r.byExt[ext] = e
			r.exts = append(r.exts, ext)
		}
		for _, mt := range e.MediaTypes() {
			mt = strings.ToLower(mt)
			if _, ok := r.byType[mt]; !ok {
				r.byType[mt] = e
			}
		}
	}
	return r
}

// Select returns the extractor for a file. The extension decides first,
// the media type second.
func (r *Registry) Select(filename, mediaType string) (driven.Extractor, error) {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" {
		if e, ok := r.byExt[ext]; ok {
			return e, nil
		}
	}
	if mt := baseMediaType(mediaType); mt != "" {
		if e, ok := r.byType[mt]; ok {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %q (supported: %s)",
		domain.ErrUnsupportedType, filepath.Base(filename), strings.Join(r.exts, ", "))
}

// SupportedExtensions lists every registered extension in registration order.
func (r *Registry) SupportedExtensions() []string {
	out := make([]string, len(r.exts))
	copy(out, r.exts)
	return out
}

// Extractors returns the registered extractors.
func (r *Registry) Extractors() []driven.Extractor {
	return r.extractors
}

func baseMediaType(mediaType string) string {
	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(mediaType); err == nil {
		return mt
	}
	return strings.ToLower(mediaType)
}
