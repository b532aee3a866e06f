package doc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/corpus/internal/core/domain"
)

type mockRunner struct {
	output []byte
	err    error
	args   []string
}

func (m *mockRunner) Run(_ context.Context, _ string, args ...string) ([]byte, error) {
	m.args = args
	return m.output, m.err
}

var sampleDOC = append([]byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1}, []byte("body")...)

func TestExtractor_Descriptors(t *testing.T) {
	e := New()
	assert.Equal(t, domain.VariantDOC, e.Variant())
	assert.Equal(t, []string{".doc"}, e.Extensions())
	assert.Contains(t, e.MediaTypes(), "application/msword")
}

func TestValidate(t *testing.T) {
	e := New()
	assert.True(t, e.Validate(sampleDOC))
	assert.False(t, e.Validate([]byte("PK\x03\x04")))
	assert.False(t, e.Validate([]byte{0xd0, 0xcf}))
}

func TestExtract_KeepsNotes(t *testing.T) {
	runner := &mockRunner{output: []byte("Body text[1]\n\n\n\n[1] A footnote   \n")}

	text, err := NewWithRunner(runner).Extract(context.Background(), sampleDOC)
	require.NoError(t, err)
	assert.Equal(t, "Body text[1]\n\n[1] A footnote", text)
	assert.Contains(t, runner.args, "-w")
}

func TestExtract_Failures(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		runner  *mockRunner
	}{
		{"bad signature", []byte("plain"), &mockRunner{}},
		{"tool failure", sampleDOC, &mockRunner{err: errors.New("exit status 1")}},
		{"empty body", sampleDOC, &mockRunner{output: []byte("\n \n")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWithRunner(tt.runner).Extract(context.Background(), tt.content)

			var extErr *domain.ExtractionError
			require.ErrorAs(t, err, &extErr)
			assert.Equal(t, domain.VariantDOC, extErr.Variant)
		})
	}
}
