package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/corpus/internal/core/domain"
)

func setupSearchTest(t *testing.T, retrieval *mockRetrievalService) {
	t.Helper()
	oldRetrieval := retrievalService
	retrievalService = retrieval
	resetSearchFlags()
	t.Cleanup(func() {
		retrievalService = oldRetrieval
		resetSearchFlags()
	})
}

// resetSearchFlags clears values and Changed marks left by earlier executions.
func resetSearchFlags() {
	searchK, searchContentWeight, searchMetaWeight, searchThreshold, searchJSON = 0, 0, 0, 0, false
	for _, name := range []string{"k", "content-weight", "meta-weight", "threshold", "json"} {
		searchCmd.Flags().Lookup(name).Changed = false
	}
}

func sampleResponse() *domain.RetrievalResponse {
	return &domain.RetrievalResponse{
		Query:       "protein",
		MultiVector: true,
		Results: []domain.RetrievalResult{
			{
				ID:           "p1",
				Content:      "Protein   builds\nmuscle.",
				Metadata:     map[string]any{"filename": "nutrition.pdf"},
				Score:        0.912,
				ContentScore: 0.95,
				MetaScore:    0.8,
			},
			{ID: "p2", Content: "Legumes.", Score: 0.5},
		},
	}
}

func TestSearchCmd_Use(t *testing.T) {
	assert.Equal(t, "search <query>", searchCmd.Use)
	for _, name := range []string{"k", "content-weight", "meta-weight", "threshold", "json"} {
		assert.NotNil(t, searchCmd.Flags().Lookup(name), name)
	}
}

func TestSearchCmd_RequiresQuery(t *testing.T) {
	setupSearchTest(t, &mockRetrievalService{})

	_, err := execute(t, "search")
	assert.Error(t, err)
}

func TestSearchCmd_JoinsArgsAndKeepsDefaults(t *testing.T) {
	retrieval := &mockRetrievalService{resp: sampleResponse()}
	setupSearchTest(t, retrieval)

	out, err := execute(t, "search", "plant", "protein")
	require.NoError(t, err)

	assert.Equal(t, "plant protein", retrieval.query)
	assert.Equal(t, domain.RetrievalOptions{}, retrieval.lastOpts)

	assert.Contains(t, out, "Results:")
	assert.Contains(t, out, "[1] nutrition.pdf (0.912)")
	assert.Contains(t, out, "content 0.950, meta 0.800")
	assert.Contains(t, out, "Protein builds muscle.")
	assert.Contains(t, out, "[2] p2 (0.500)")
}

func TestSearchCmd_Overrides(t *testing.T) {
	retrieval := &mockRetrievalService{resp: sampleResponse()}
	setupSearchTest(t, retrieval)

	_, err := execute(t, "search", "-k", "3", "--content-weight", "1", "--meta-weight", "0", "--threshold", "0.4", "fibre")
	require.NoError(t, err)

	opts := retrieval.lastOpts
	require.NotNil(t, opts.K)
	require.NotNil(t, opts.ContentWeight)
	require.NotNil(t, opts.MetaWeight)
	require.NotNil(t, opts.ScoreThreshold)
	assert.Equal(t, 3, *opts.K)
	assert.Equal(t, 1.0, *opts.ContentWeight)
	assert.Equal(t, 0.0, *opts.MetaWeight)
	assert.Equal(t, 0.4, *opts.ScoreThreshold)
}

func TestSearchCmd_NoContext(t *testing.T) {
	setupSearchTest(t, &mockRetrievalService{})

	out, err := execute(t, "search", "anything")
	require.NoError(t, err)
	assert.Contains(t, out, "No results: "+domain.NoContextMessage)
}

func TestSearchCmd_JSONOutput(t *testing.T) {
	setupSearchTest(t, &mockRetrievalService{resp: sampleResponse()})

	out, err := execute(t, "search", "--json", "protein")
	require.NoError(t, err)

	var resp domain.RetrievalResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "protein", resp.Query)
	assert.Len(t, resp.Results, 2)
	assert.False(t, resp.NoContext)
}

func TestSearchCmd_ServiceError(t *testing.T) {
	setupSearchTest(t, &mockRetrievalService{err: errors.New("boom")})

	_, err := execute(t, "search", "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search failed")
}

func TestSearchCmd_ServiceNotConfigured(t *testing.T) {
	setupSearchTest(t, &mockRetrievalService{})
	retrievalService = nil

	_, err := execute(t, "search", "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search service not configured")
}

func TestOutputSearchTable_EmptyReason(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)

	outputSearchTable(rootCmd, &domain.RetrievalResponse{NoContext: true})
	assert.Contains(t, buf.String(), "No results: "+domain.NoContextMessage)
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "a b c", snippet("  a\n\tb   c "))

	long := strings.Repeat("é", snippetRunes+10)
	got := snippet(long)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Len(t, []rune(got), snippetRunes+3)
}
