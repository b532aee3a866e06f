package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/corpus/internal/adapters/driven/ai"
	"github.com/custodia-labs/corpus/internal/adapters/driven/config/file"
	"github.com/custodia-labs/corpus/internal/adapters/driven/storage/blob"
	"github.com/custodia-labs/corpus/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/corpus/internal/core/services"
	"github.com/custodia-labs/corpus/internal/logger"
	"github.com/custodia-labs/corpus/internal/normalisers"
	"github.com/custodia-labs/corpus/internal/normalisers/doc"
	"github.com/custodia-labs/corpus/internal/normalisers/docx"
	"github.com/custodia-labs/corpus/internal/normalisers/pdf"
	"github.com/custodia-labs/corpus/internal/normalisers/plaintext"
)

// EnvDataDir overrides the default data directory.
const EnvDataDir = "CORPUS_DATA_DIR"

// Directory names inside the data directory.
const (
	blobDirName      = "files"
	rateLimitDirName = "ratelimit"
	promptDirName    = "prompts"
)

// dirs are the resolved directories of the current invocation.
var dirs struct {
	config string
	data   string
}

// wire builds the services a command needs. Missing provider credentials
// are not fatal: the affected commands report the feature as unavailable.
func wire(cmd *cobra.Command, level string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("reading .env: %v", err)
	}

	if err := resolveDirs(); err != nil {
		return err
	}

	configStore, err := file.NewConfigStore(dirs.config)
	if err != nil {
		return fmt.Errorf("opening configuration: %w", err)
	}
	endpoints := ai.EndpointsFromEnv()
	settingsService = services.NewSettingsService(configStore)
	settingsService.SetDefaultCollection(endpoints.QdrantCollection)
	if level == wireSettings {
		return nil
	}

	store, err := sqlite.NewStore(dirs.data)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	blobs, err := blob.NewStore(filepath.Join(dirs.data, blobDirName))
	if err != nil {
		store.Close()
		return fmt.Errorf("opening file storage: %w", err)
	}
	prompts, err := file.NewPromptStore(filepath.Join(dirs.config, promptDirName), services.DefaultEnrichmentPrompts())
	if err != nil {
		logger.Warn("prompt store unavailable, using built-in prompts: %v", err)
		prompts = nil
	}
	extractors := normalisers.NewRegistry(pdf.New(), docx.New(), doc.New(), plaintext.New())

	snapshot := settingsService.Snapshot()
	providers := ai.Init(cmd.Context(), endpoints, snapshot, ai.Options{Validate: checksProviders(cmd)})

	var embedder *services.EmbeddingClient
	if providers.Embedding != nil {
		embedder, err = services.NewEmbeddingClient(providers.Embedding, snapshot.Embedding)
		if err != nil {
			logger.Warn("embedding client: %v", err)
		}
	}

	var enricher *services.MetadataEnricher
	if prompts != nil {
		enricher = services.NewMetadataEnricher(providers.LLM, prompts)
	} else {
		enricher = services.NewMetadataEnricher(providers.LLM, nil)
	}

	orchestrator := services.NewSyncOrchestrator(
		settingsService,
		store.DocumentStore(),
		blobs,
		extractors,
		enricher,
		embedder,
		providers.Vectors,
		store.SyncRunStore(),
	)

	uploadService = services.NewUploadService(settingsService, store.DocumentStore(), blobs, extractors)
	syncOrchestrator = orchestrator
	collectionManager = orchestrator
	retrievalService = services.NewRetrievalService(settingsService, embedder, providers.Vectors)

	closeServices = func() {
		if embedder != nil {
			embedder.Close()
		}
		providers.Close()
		if err := store.Close(); err != nil {
			logger.Warn("closing database: %v", err)
		}
	}
	return nil
}

// resolveDirs applies the flag, then the environment, then the defaults.
func resolveDirs() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("getting home directory: %w", err)
	}

	dirs.config = configDir
	if dirs.config == "" {
		dirs.config = filepath.Join(home, file.DirName)
	}

	dirs.data = dataDir
	if dirs.data == "" {
		dirs.data = os.Getenv(EnvDataDir)
	}
	if dirs.data == "" {
		dirs.data = filepath.Join(home, file.DirName, "data")
	}
	return nil
}
