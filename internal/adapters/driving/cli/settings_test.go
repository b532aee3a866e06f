package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/corpus/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/corpus/internal/core/domain"
	"github.com/custodia-labs/corpus/internal/core/services"
)

func setupSettingsTest(t *testing.T, seed map[string]any) *services.SettingsService {
	t.Helper()
	oldSettings := settingsService
	settingsService = services.NewSettingsService(memory.NewConfigStore(seed))
	t.Cleanup(func() {
		settingsService = oldSettings
		rootCmd.SetIn(nil)
	})
	return settingsService
}

func TestSettingsCmd_Show(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-proj-1234567890abcdef")
	setupSettingsTest(t, map[string]any{
		services.KeyRetrievalK:   int64(8),
		services.KeyMultiVector:  true,
		services.KeySyncInterval: int64(30),
	})

	out, err := execute(t, "settings")
	require.NoError(t, err)

	assert.Contains(t, out, "[Retrieval]")
	assert.Contains(t, out, "K: 8")
	assert.Contains(t, out, "Multi-vector: true")
	assert.Contains(t, out, "API Key: sk-p...cdef")
	assert.Contains(t, out, "Scheduled sync: every 30m0s")
	assert.NotContains(t, out, "1234567890")
}

func TestSettingsCmd_ShowWithoutKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	setupSettingsTest(t, nil)

	out, err := execute(t, "settings", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "API Key: (not set)")
	assert.Contains(t, out, "Scheduled sync: off")
}

func TestSettingsCmd_Set(t *testing.T) {
	svc := setupSettingsTest(t, nil)

	out, err := execute(t, "settings", "set", services.KeyChunkSize, "800")
	require.NoError(t, err)
	assert.Contains(t, out, "chunking.size = 800")
	assert.Equal(t, 800, svc.Snapshot().Chunking.Size)
}

func TestSettingsCmd_SetInvalid(t *testing.T) {
	setupSettingsTest(t, nil)

	_, err := execute(t, "settings", "set", "no.such.key", "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = execute(t, "settings", "set", services.KeyRetrievalK, "many")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to set retrieval.k")
}

func TestSettingsCmd_Keys(t *testing.T) {
	setupSettingsTest(t, nil)

	out, err := execute(t, "settings", "keys")
	require.NoError(t, err)

	lines := strings.Fields(out)
	assert.Contains(t, lines, services.KeyEnrichDomain)
	assert.Contains(t, lines, services.KeySearchLimit)
	assert.IsNonDecreasing(t, lines)
}

func TestSettingsCmd_Enrichment(t *testing.T) {
	svc := setupSettingsTest(t, nil)
	rootCmd.SetIn(strings.NewReader("2\n3\n"))

	out, err := execute(t, "settings", "enrichment")
	require.NoError(t, err)

	assert.Contains(t, out, "1. nutrition (current)")
	assert.Contains(t, out, "Enrichment: spiritual, hierarchical")

	enrich := svc.Snapshot().Enrichment
	assert.Equal(t, domain.DomainSpiritual, enrich.Domain)
	assert.Equal(t, domain.StrategyHierarchical, enrich.Strategy)
}

func TestSettingsCmd_EnrichmentKeepsCurrentOnEmptyInput(t *testing.T) {
	svc := setupSettingsTest(t, map[string]any{services.KeyEnrichDomain: "spiritual"})
	rootCmd.SetIn(strings.NewReader("\n\n"))

	_, err := execute(t, "settings", "enrichment")
	require.NoError(t, err)

	enrich := svc.Snapshot().Enrichment
	assert.Equal(t, domain.DomainSpiritual, enrich.Domain)
	assert.Equal(t, domain.StrategyAuto, enrich.Strategy)
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Short key",
			input:    "abc123",
			expected: "****",
		},
		{
			name:     "Exactly 8 chars",
			input:    "12345678",
			expected: "****",
		},
		{
			name:     "Long key",
			input:    "sk-1234567890abcdef",
			expected: "sk-1...cdef",
		},
		{
			name:     "Very long key",
			input:    "sk-proj-1234567890abcdefghijklmnop",
			expected: "sk-p...mnop",
		},
		{
			name:     "Empty key",
			input:    "",
			expected: "****",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := maskAPIKey(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		maxVal     int
		defaultVal int
		expected   int
	}{
		{
			name:       "Empty input returns default",
			input:      "",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Valid choice within range",
			input:      "3",
			maxVal:     5,
			defaultVal: 1,
			expected:   3,
		},
		{
			name:       "Choice below minimum returns default",
			input:      "0",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Choice above maximum returns default",
			input:      "6",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Invalid input returns default",
			input:      "abc",
			maxVal:     5,
			defaultVal: 2,
			expected:   2,
		},
		{
			name:       "Negative number returns default",
			input:      "-1",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Whitespace returns default",
			input:      "   ",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Maximum value is valid",
			input:      "5",
			maxVal:     5,
			defaultVal: 1,
			expected:   5,
		},
		{
			name:       "Minimum value is valid",
			input:      "1",
			maxVal:     5,
			defaultVal: 3,
			expected:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseChoice(tt.input, tt.maxVal, tt.defaultVal)
			assert.Equal(t, tt.expected, result)
		})
	}
}
