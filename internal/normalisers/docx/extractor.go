// Package docx extracts text from Office Open XML word processing documents.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/corpus/internal/core/domain"
	"github.com/custodia-labs/corpus/internal/core/ports/driven"
	"github.com/custodia-labs/corpus/internal/normalisers"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

const documentPart = "word/document.xml"

// ErrNoDocumentPart indicates an archive without word/document.xml.
var ErrNoDocumentPart = errors.New("archive has no " + documentPart)

var signature = []byte{0x50, 0x4b, 0x03, 0x04}

// Extractor handles DOCX documents.
type Extractor struct{}

// New creates a new DOCX extractor.
func New() *Extractor {
	return &Extractor{}
}

// Variant returns the DOCX variant.
func (e *Extractor) Variant() domain.DocumentVariant { return domain.VariantDOCX }

// Extensions returns the handled extensions.
func (e *Extractor) Extensions() []string { return []string{".docx"} }

// MediaTypes returns the handled media types.
func (e *Extractor) MediaTypes() []string {
	return []string{
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}
}

// Validate checks the zip local file header signature.
func (e *Extractor) Validate(content []byte) bool {
	return bytes.HasPrefix(content, signature)
}

// Extract returns the document body text, one line per paragraph.
func (e *Extractor) Extract(_ context.Context, content []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", domain.NewExtractionError(domain.VariantDOCX, fmt.Errorf("open archive: %w", err))
	}

	part, err := readPart(reader, documentPart)
	if err != nil {
		return "", domain.NewExtractionError(domain.VariantDOCX, err)
	}

	text, err := parseDocumentXML(part)
	if err != nil {
		return "", domain.NewExtractionError(domain.VariantDOCX, fmt.Errorf("parse %s: %w", documentPart, err))
	}
	return normalisers.CleanToolOutput(text), nil
}

func readPart(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return data, nil
	}
	return nil, ErrNoDocumentPart
}

// parseDocumentXML walks the WordprocessingML token stream. Text runs are
// concatenated, tabs and breaks are kept, and every paragraph ends a line.
// Paragraphs nested in tables are included.
func parseDocumentXML(content []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))

	var b strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}
