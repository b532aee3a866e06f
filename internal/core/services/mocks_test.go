package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/custodia-labs/corpus/internal/core/domain"
	"github.com/custodia-labs/corpus/internal/core/ports/driven"
)

// --- Shared mock implementations ---

// llmCall records one completion request.
type llmCall struct {
	system string
	user   string
	opts   driven.CompletionOptions
}

// mockLLM implements driven.LLMService.
type mockLLM struct {
	mu    sync.Mutex
	reply string
	err   error
	calls []llmCall
}

func (m *mockLLM) Complete(_ context.Context, system, user string, opts driven.CompletionOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, llmCall{system: system, user: user, opts: opts})
	return m.reply, m.err
}

func (m *mockLLM) ModelName() string { return "mock-llm" }
func (m *mockLLM) Close() error      { return nil }

func (m *mockLLM) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockLLM) lastCall() llmCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[len(m.calls)-1]
}

// mockPromptStore implements driven.PromptStore.
type mockPromptStore map[string]string

func (m mockPromptStore) Load(name string) (string, error) {
	if p, ok := m[name]; ok {
		return p, nil
	}
	return "", domain.ErrNotFound
}

// mockEmbedder implements driven.EmbeddingProvider with deterministic vectors.
// Each text maps to a vector derived from its bytes, so equal texts embed equally.
type mockEmbedder struct {
	mu       sync.Mutex
	dims     int
	err      error
	failOn   string
	calls    int
	inputs   [][]string
	vectorFn func(text string) []float32

	// onEmbed runs at the start of every Embed call.
	onEmbed func()
}

func newMockEmbedder(dims int) *mockEmbedder {
	return &mockEmbedder{dims: dims}
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if m.onEmbed != nil {
		m.onEmbed()
		if err := ctx.Err(); err != nil {
			return nil, domain.NewEmbeddingError(domain.EmbeddingOther, err)
		}
	}
	m.mu.Lock()
	m.calls++
	m.inputs = append(m.inputs, append([]string(nil), texts...))
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if m.failOn != "" && strings.Contains(text, m.failOn) {
			return nil, domain.NewEmbeddingError(domain.EmbeddingOther, errors.New("provider refused input"))
		}
		out[i] = m.vector(text)
	}
	return out, nil
}

func (m *mockEmbedder) vector(text string) []float32 {
	if m.vectorFn != nil {
		return m.vectorFn(text)
	}
	v := make([]float32, m.dims)
	for i, b := range []byte(text) {
		v[i%m.dims] += float32(b%17) + 1
	}
	return v
}

func (m *mockEmbedder) Dimensions() int              { return m.dims }
func (m *mockEmbedder) ModelName() string            { return "mock-embed" }
func (m *mockEmbedder) Ping(_ context.Context) error { return m.err }
func (m *mockEmbedder) Close() error                 { return nil }

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockEmbedder) allInputs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, batch := range m.inputs {
		out = append(out, batch...)
	}
	return out
}
