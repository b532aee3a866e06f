// Package openai provides an embedding provider adapter using the OpenAI API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/corpus/internal/core/domain"
	"github.com/custodia-labs/corpus/internal/core/ports/driven"
	"github.com/custodia-labs/corpus/internal/logger"
)

// Ensure Provider implements the interface.
var _ driven.EmbeddingProvider = (*Provider)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = domain.DefaultEmbeddingModel
	DefaultTimeout = 30 * time.Second
)

// quotaCode is the error code OpenAI returns with 429 when billing is exhausted.
const quotaCode = "insufficient_quota"

// Model dimensions for OpenAI embedding models.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Config holds configuration for the OpenAI embedding provider.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	// Can be changed for Azure OpenAI or compatible APIs.
	BaseURL string

	// Model is the embedding model to use (default: text-embedding-3-large).
	Model string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration

	// Dimensions overrides the default dimension for the model.
	// Only applicable to text-embedding-3-* models.
	Dimensions int
}

// Provider generates embeddings using the OpenAI API.
type Provider struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	model      string
	dimensions int
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// NewProvider creates a new OpenAI embedding provider.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai API key is required", domain.ErrEmbeddingUnavailable)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	dimensions := cfg.Dimensions
	if dimensions == 0 {
		var ok bool
		dimensions, ok = modelDimensions[cfg.Model]
		if !ok {
			dimensions = 1536
		}
	}

	return &Provider{
		client:     &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: dimensions,
	}, nil
}

// Embed returns one embedding per input text, in input order.
// Failures are *domain.EmbeddingError values.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqBody := embeddingRequest{Model: p.model, Input: texts}
	if strings.HasPrefix(p.model, "text-embedding-3-") {
		reqBody.Dimensions = p.dimensions
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, domain.NewEmbeddingError(domain.EmbeddingOther, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, domain.NewEmbeddingError(domain.EmbeddingOther, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, domain.NewEmbeddingError(domain.EmbeddingOther, fmt.Errorf("send request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewEmbeddingError(domain.EmbeddingOther, fmt.Errorf("read response: %w", err))
	}

	var embedResp embeddingResponse
	decodeErr := json.Unmarshal(body, &embedResp)

	if resp.StatusCode != http.StatusOK {
		logger.Warn("embed: openai returned status %d for %d inputs", resp.StatusCode, len(texts))
		return nil, classify(resp.StatusCode, embedResp.Error, body)
	}
	if decodeErr != nil {
		return nil, domain.NewEmbeddingError(domain.EmbeddingOther, fmt.Errorf("decode response: %w", decodeErr))
	}
	if len(embedResp.Data) != len(texts) {
		return nil, domain.NewEmbeddingError(domain.EmbeddingOther,
			fmt.Errorf("got %d embeddings for %d inputs", len(embedResp.Data), len(texts)))
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range embedResp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, domain.NewEmbeddingError(domain.EmbeddingOther, fmt.Errorf("embedding index %d out of range", data.Index))
		}
		embeddings[data.Index] = data.Embedding
	}
	return embeddings, nil
}

// classify maps an unsuccessful response onto an embedding error kind.
func classify(status int, apiErr *apiError, body []byte) *domain.EmbeddingError {
	msg := strings.TrimSpace(string(body))
	code := ""
	if apiErr != nil {
		msg = apiErr.Message
		code = apiErr.Code
		if code == "" {
			code = apiErr.Type
		}
	}
	cause := fmt.Errorf("openai status %d: %s", status, msg)

	switch {
	case status == http.StatusTooManyRequests && code == quotaCode:
		return domain.NewEmbeddingError(domain.EmbeddingQuotaExceeded, cause)
	case status == http.StatusTooManyRequests:
		return domain.NewEmbeddingError(domain.EmbeddingRateLimited, cause)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.NewEmbeddingError(domain.EmbeddingAuthFailed, cause)
	default:
		return domain.NewEmbeddingError(domain.EmbeddingOther, cause)
	}
}

// Dimensions returns the embedding vector size.
func (p *Provider) Dimensions() int {
	return p.dimensions
}

// ModelName returns the name of the embedding model being used.
func (p *Provider) ModelName() string {
	return p.model
}

// Ping validates the API key by listing models, without running inference.
func (p *Provider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", http.NoBody)
	if err != nil {
		return fmt.Errorf("openai: failed to create ping request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("openai: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var wrapped struct {
			Error *apiError `json:"error"`
		}
		_ = json.Unmarshal(body, &wrapped)
		return classify(resp.StatusCode, wrapped.Error, body)
	}
	return nil
}

// Close releases resources.
func (p *Provider) Close() error {
	return nil
}
