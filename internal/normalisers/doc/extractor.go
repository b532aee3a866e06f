// Package doc extracts text from legacy Word 97-2003 documents with antiword.
package doc

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/corpus/internal/core/domain"
	"github.com/custodia-labs/corpus/internal/core/ports/driven"
	"github.com/custodia-labs/corpus/internal/normalisers"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Tool is the external binary used for extraction.
const Tool = "antiword"

// ErrNoText indicates the document body is empty.
var ErrNoText = errors.New("document body is empty")

// OLE compound file signature.
var signature = []byte{0xd0, 0xcf, 0x11, 0xe0}

// Extractor handles DOC documents. Footnotes and endnotes are kept where
// antiword emits them, after the body.
type Extractor struct {
	runner normalisers.CommandRunner
}

// New creates a DOC extractor that shells out to antiword.
func New() *Extractor {
	return NewWithRunner(normalisers.ExecRunner{})
}

// NewWithRunner creates a DOC extractor with a custom command runner.
func NewWithRunner(runner normalisers.CommandRunner) *Extractor {
	return &Extractor{runner: runner}
}

// Variant returns the DOC variant.
func (e *Extractor) Variant() domain.DocumentVariant { return domain.VariantDOC }

// Extensions returns the handled extensions.
func (e *Extractor) Extensions() []string { return []string{".doc"} }

// MediaTypes returns the handled media types.
func (e *Extractor) MediaTypes() []string {
	return []string{"application/msword", "application/vnd.ms-word"}
}

// Validate checks the OLE compound file signature.
func (e *Extractor) Validate(content []byte) bool {
	return bytes.HasPrefix(content, signature)
}

// Extract runs antiword without line wrapping and returns cleaned text.
func (e *Extractor) Extract(ctx context.Context, content []byte) (string, error) {
	if !e.Validate(content) {
		return "", domain.NewExtractionError(domain.VariantDOC, errors.New("missing OLE signature"))
	}

	path, cleanup, err := normalisers.WriteTemp(content, "corpus-*.doc")
	if err != nil {
		return "", domain.NewExtractionError(domain.VariantDOC, err)
	}
	defer cleanup()

	out, err := e.runner.Run(ctx, Tool, "-m", "UTF-8.txt", "-w", "0", path)
	if err != nil {
		return "", domain.NewExtractionError(domain.VariantDOC, fmt.Errorf("%s failed: %w", Tool, err))
	}

	text := normalisers.CleanToolOutput(string(out))
	if text == "" {
		return "", domain.NewExtractionError(domain.VariantDOC, ErrNoText)
	}
	return text, nil
}

// CheckAvailable reports whether antiword is installed.
func CheckAvailable() error {
	return normalisers.CheckAvailable(Tool)
}
