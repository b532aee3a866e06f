// Package openai provides the enrichment language model over the OpenAI
// chat completions API, using langchaingo.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/custodia-labs/corpus/internal/core/domain"
	"github.com/custodia-labs/corpus/internal/core/ports/driven"
	"github.com/custodia-labs/corpus/internal/logger"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL  = "https://api.openai.com/v1"
	DefaultLLMModel = domain.DefaultEnrichmentModel
	DefaultTimeout  = 60 * time.Second
)

// ErrNoChoices is returned when the model answers without any choice.
var ErrNoChoices = errors.New("openai: no response choices returned")

// LLMConfig holds configuration for the OpenAI LLM service.
type LLMConfig struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	BaseURL string

	// Model is the default model (default: gpt-4o-mini).
	Model string

	// Timeout bounds one completion (default: 60s).
	Timeout time.Duration
}

// LLMService runs chat completions for metadata enrichment.
type LLMService struct {
	client  llms.Model
	model   string
	timeout time.Duration
}

// NewLLMService creates a new OpenAI LLM service.
func NewLLMService(cfg LLMConfig) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai API key is required", domain.ErrInvalidInput)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	client, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("openai: create client: %w", err)
	}

	return &LLMService{client: client, model: cfg.Model, timeout: cfg.Timeout}, nil
}

// Complete sends a system and a user message and returns the reply text.
func (s *LLMService) Complete(ctx context.Context, system, user string, opts driven.CompletionOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}

	model := s.model
	if opts.Model != "" {
		model = opts.Model
	}
	callOpts := []llms.CallOption{
		llms.WithModel(model),
		llms.WithTemperature(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}
	if opts.JSON {
		callOpts = append(callOpts, llms.WithJSONMode())
	}

	start := time.Now()
	resp, err := s.client.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		return "", fmt.Errorf("openai: %s completion: %w", model, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	logger.Debug("enrich: %s answered in %s", model, time.Since(start).Round(time.Millisecond))
	return resp.Choices[0].Content, nil
}

// ModelName returns the name of the default model.
func (s *LLMService) ModelName() string {
	return s.model
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}
