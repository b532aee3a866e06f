package normalisers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/corpus/internal/core/domain"
)

type stubExtractor struct {
	variant domain.DocumentVariant
	exts    []string
	types   []string
}

func (s *stubExtractor) Variant() domain.DocumentVariant { return s.variant }
func (s *stubExtractor) Extensions() []string            { return s.exts }
func (s *stubExtractor) MediaTypes() []string            { return s.types }
func (s *stubExtractor) Validate(_ []byte) bool          { return true }

func (s *stubExtractor) Extract(_ context.Context, content []byte) (string, error) {
	return string(content), nil
}

func testRegistry() *Registry {
	return NewRegistry(
		&stubExtractor{variant: domain.VariantPDF, exts: []string{".pdf"}, types: []string{"application/pdf"}},
		&stubExtractor{variant: domain.VariantPlainText, exts: []string{".txt"}, types: []string{"text/plain"}},
		&stubExtractor{variant: domain.VariantDOCX, exts: []string{".DOCX"}, types: []string{
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		}},
	)
}

func TestRegistry_Select(t *testing.T) {
	r := testRegistry()

	tests := []struct {
		name      string
		filename  string
		mediaType string
		want      domain.DocumentVariant
	}{
		{"by extension", "guide.pdf", "", domain.VariantPDF},
		{"extension is case insensitive", "NOTES.TXT", "", domain.VariantPlainText},
		{"extension wins over media type", "guide.pdf", "text/plain", domain.VariantPDF},
		{"media type fallback", "upload", "text/plain", domain.VariantPlainText},
		{"media type with parameters", "upload.bin", "text/plain; charset=utf-8", domain.VariantPlainText},
		{"registered extension lowercased", "report.docx", "", domain.VariantDOCX},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := r.Select(tt.filename, tt.mediaType)
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.Variant())
		})
	}
}

func TestRegistry_SelectUnsupported(t *testing.T) {
	r := testRegistry()

	e, err := r.Select("photo.jpg", "image/jpeg")
	assert.Nil(t, e)
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
	assert.Contains(t, err.Error(), ".pdf, .txt, .docx")
}

func TestRegistry_FirstRegistrationWins(t *testing.T) {
	r := NewRegistry(
		&stubExtractor{variant: domain.VariantDOC, exts: []string{".doc"}},
		&stubExtractor{variant: domain.VariantDOCX, exts: []string{".doc"}},
	)

	e, err := r.Select("old.doc", "")
	require.NoError(t, err)
	assert.Equal(t, domain.VariantDOC, e.Variant())
	assert.Equal(t, []string{".doc"}, r.SupportedExtensions())
}

func TestRegistry_SupportedExtensionsIsCopy(t *testing.T) {
	r := testRegistry()
	exts := r.SupportedExtensions()
	exts[0] = ".exe"
	assert.Equal(t, ".pdf", r.SupportedExtensions()[0])
	assert.Len(t, r.Extractors(), 3)
}
