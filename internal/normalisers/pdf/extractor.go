// Package pdf extracts text from PDF documents with pdftotext (poppler).
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/corpus/internal/core/domain"
	"github.com/custodia-labs/corpus/internal/core/ports/driven"
	"github.com/custodia-labs/corpus/internal/normalisers"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Tool is the external binary used for extraction.
const Tool = "pdftotext"

// minPrintableRatio is the share of printable runes below which output is
// treated as garbled.
const minPrintableRatio = 0.85

var (
	// ErrEncrypted indicates a password protected or copy protected PDF.
	ErrEncrypted = errors.New("document is encrypted")

	// ErrNoText indicates a PDF without a text layer, such as a scan.
	ErrNoText = errors.New("document has no extractable text layer")

	// ErrGarbled indicates output that is not recognisable text.
	ErrGarbled = errors.New("extracted text is not recognisable")
)

var signature = []byte("%PDF")

// Extractor handles PDF documents.
type Extractor struct {
	runner normalisers.CommandRunner
}

// New creates a PDF extractor that shells out to pdftotext.
func New() *Extractor {
	return NewWithRunner(normalisers.ExecRunner{})
}

// NewWithRunner creates a PDF extractor with a custom command runner.
func NewWithRunner(runner normalisers.CommandRunner) *Extractor {
	return &Extractor{runner: runner}
}

// Variant returns the PDF variant.
func (e *Extractor) Variant() domain.DocumentVariant { return domain.VariantPDF }

// Extensions returns the handled extensions.
func (e *Extractor) Extensions() []string { return []string{".pdf"} }

// MediaTypes returns the handled media types.
func (e *Extractor) MediaTypes() []string { return []string{"application/pdf"} }

// Validate checks the %PDF signature.
func (e *Extractor) Validate(content []byte) bool {
	return bytes.HasPrefix(content, signature)
}

// Extract runs pdftotext and returns cleaned text. Encrypted, empty and
// garbled output are reported as extraction errors rather than text.
func (e *Extractor) Extract(ctx context.Context, content []byte) (string, error) {
	if !e.Validate(content) {
		return "", domain.NewExtractionError(domain.VariantPDF, errors.New("missing %PDF signature"))
	}

	path, cleanup, err := normalisers.WriteTemp(content, "corpus-*.pdf")
	if err != nil {
		return "", domain.NewExtractionError(domain.VariantPDF, err)
	}
	defer cleanup()

	out, err := e.runner.Run(ctx, Tool, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		if isEncryptionDiagnostic(err.Error()) {
			return "", domain.NewExtractionError(domain.VariantPDF, ErrEncrypted)
		}
		return "", domain.NewExtractionError(domain.VariantPDF, fmt.Errorf("%s failed: %w", Tool, err))
	}

	text := normalisers.CleanToolOutput(string(out))
	if text == "" {
		return "", domain.NewExtractionError(domain.VariantPDF, ErrNoText)
	}
	if normalisers.PrintableRatio(text) < minPrintableRatio {
		return "", domain.NewExtractionError(domain.VariantPDF, ErrGarbled)
	}
	return text, nil
}

// CheckAvailable reports whether pdftotext is installed.
func CheckAvailable() error {
	return normalisers.CheckAvailable(Tool)
}

// InstallInstructions returns platform hints for installing pdftotext.
func InstallInstructions() string {
	return `pdftotext is required for PDF extraction.

Install poppler:
  macOS:         brew install poppler
  Debian/Ubuntu: apt install poppler-utils
  Fedora:        dnf install poppler-utils`
}

func isEncryptionDiagnostic(msg string) bool {
	msg = strings.ToLower(msg)
	for _, marker := range []string{"incorrect password", "encrypted", "copying of text from this document is not allowed"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
