// Package ai builds the external AI and vector services from the environment.
package ai

import (
	"context"
	"os"
	"strings"
	"time"

	openaiembed "github.com/custodia-labs/corpus/internal/adapters/driven/embedding/openai"
	openaillm "github.com/custodia-labs/corpus/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/corpus/internal/adapters/driven/vectorstore/qdrant"
	"github.com/custodia-labs/corpus/internal/core/domain"
	"github.com/custodia-labs/corpus/internal/core/ports/driven"
	"github.com/custodia-labs/corpus/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// Environment variables read by EndpointsFromEnv.
const (
	EnvOpenAIKey        = "OPENAI_API_KEY"
	EnvOpenAIBaseURL    = "OPENAI_BASE_URL"
	EnvQdrantURL        = "QDRANT_URL"
	EnvQdrantAPIKey     = "QDRANT_API_KEY"
	EnvQdrantCollection = "QDRANT_COLLECTION_NAME"
)

// Endpoints holds the credentials and addresses of the external services.
type Endpoints struct {
	OpenAIKey        string
	OpenAIBaseURL    string
	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string
}

// EndpointsFromEnv reads the endpoints from the process environment.
func EndpointsFromEnv() Endpoints {
	return Endpoints{
		OpenAIKey:        strings.TrimSpace(os.Getenv(EnvOpenAIKey)),
		OpenAIBaseURL:    strings.TrimSpace(os.Getenv(EnvOpenAIBaseURL)),
		QdrantURL:        strings.TrimSpace(os.Getenv(EnvQdrantURL)),
		QdrantAPIKey:     strings.TrimSpace(os.Getenv(EnvQdrantAPIKey)),
		QdrantCollection: strings.TrimSpace(os.Getenv(EnvQdrantCollection)),
	}
}

// InitResult contains the services that could be created.
// A nil service means the matching feature is unavailable.
type InitResult struct {
	Embedding driven.EmbeddingProvider
	LLM       driven.LLMService
	Vectors   driven.VectorStore

	// Warnings lists non-fatal issues that left a service unset.
	Warnings []string
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.Embedding != nil {
		r.Embedding.Close()
	}
	if r.LLM != nil {
		r.LLM.Close()
	}
}

// Options controls Init.
type Options struct {
	// Validate pings the embedding provider and the vector store and warns
	// about the ones that do not answer. The services are kept so a
	// long-running server recovers once they come up.
	Validate bool
}

// Init creates the embedding provider, the enrichment model and the vector
// store. Missing credentials and failed pings become warnings.
func Init(ctx context.Context, ep Endpoints, settings domain.Settings, opts Options) *InitResult {
	result := &InitResult{}

	if ep.OpenAIKey == "" {
		result.warn(EnvOpenAIKey + " is not set: sync and search are unavailable")
	} else {
		embedding, err := openaiembed.NewProvider(openaiembed.Config{
			APIKey:  ep.OpenAIKey,
			BaseURL: ep.OpenAIBaseURL,
			Model:   settings.Embedding.Model,
		})
		if err != nil {
			result.warn("embedding provider: " + err.Error())
		} else {
			result.Embedding = embedding
		}

		llm, err := openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  ep.OpenAIKey,
			BaseURL: ep.OpenAIBaseURL,
			Model:   settings.Enrichment.Model,
		})
		if err != nil {
			result.warn("enrichment model: " + err.Error())
		} else {
			result.LLM = llm
		}
	}

	result.Vectors = qdrant.NewStore(qdrant.Config{URL: ep.QdrantURL, APIKey: ep.QdrantAPIKey})

	if opts.Validate {
		result.validate(ctx)
	}
	return result
}

func (r *InitResult) validate(ctx context.Context) {
	if r.Embedding != nil {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := r.Embedding.Ping(pingCtx)
		cancel()
		if err != nil {
			r.warn("embedding provider unreachable: " + err.Error())
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	err := r.Vectors.Ping(pingCtx)
	cancel()
	if err != nil {
		r.warn("vector store unreachable: " + err.Error())
	}
}

func (r *InitResult) warn(msg string) {
	logger.Warn("ai: %s", msg)
	r.Warnings = append(r.Warnings, msg)
}
