// Package plaintext extracts UTF-8 text files.
package plaintext

import (
	"bytes"
	"context"
	"errors"
	"unicode/utf8"

	"github.com/custodia-labs/corpus/internal/core/domain"
	"github.com/custodia-labs/corpus/internal/core/ports/driven"
	"github.com/custodia-labs/corpus/internal/normalisers"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

const (
	// sniffLen is how much of the file Validate inspects.
	sniffLen = 1000

	// minPrintableRatio is the printable share Validate requires.
	minPrintableRatio = 0.7
)

// ErrNotUTF8 indicates content that is not valid UTF-8.
var ErrNotUTF8 = errors.New("content is not valid UTF-8")

var bom = []byte{0xef, 0xbb, 0xbf}

// Extractor handles plain text documents.
type Extractor struct{}

// New creates a new plain text extractor.
func New() *Extractor {
	return &Extractor{}
}

// Variant returns the plain text variant.
func (e *Extractor) Variant() domain.DocumentVariant { return domain.VariantPlainText }

// Extensions returns the handled extensions.
func (e *Extractor) Extensions() []string { return []string{".txt", ".text"} }

// MediaTypes returns the handled media types.
func (e *Extractor) MediaTypes() []string {
	return []string{"text/plain", "text/txt", "application/txt"}
}

// Validate reports whether the first bytes look like text.
func (e *Extractor) Validate(content []byte) bool {
	head := bytes.TrimPrefix(content, bom)
	if len(head) > sniffLen {
		head = head[:sniffLen]
		// Drop a rune cut in half by the sniff window.
		for i := 0; i < utf8.UTFMax && len(head) > 0 && !utf8.Valid(head); i++ {
			head = head[:len(head)-1]
		}
	}
	return normalisers.PrintableRatio(string(head)) > minPrintableRatio
}

// Extract returns the content without a byte order mark.
func (e *Extractor) Extract(_ context.Context, content []byte) (string, error) {
	content = bytes.TrimPrefix(content, bom)
	if !utf8.Valid(content) {
		return "", domain.NewExtractionError(domain.VariantPlainText, ErrNotUTF8)
	}
	return string(content), nil
}
