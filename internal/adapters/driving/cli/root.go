// Package cli provides the cobra commands of the corpus binary.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/corpus/internal/core/ports/driving"
	"github.com/custodia-labs/corpus/internal/core/services"
	"github.com/custodia-labs/corpus/internal/logger"
)

// version is set at build time with -ldflags "-X .../cli.version=...".
var version = "dev"

// Global flags.
var (
	verbose   bool
	dataDir   string
	configDir string
)

// Services used by the commands. They are built once per invocation by
// wireServices.
var (
	settingsService   *services.SettingsService
	uploadService     driving.UploadService
	syncOrchestrator  driving.SyncOrchestrator
	retrievalService  driving.RetrievalService
	collectionManager CollectionManager
)

// CollectionManager creates the vector collection.
type CollectionManager interface {
	EnsureCollection(ctx context.Context, recreate bool) error
}

// wiringAnnotation selects how much of the application a command needs.
const wiringAnnotation = "corpus/wiring"

// providerCheckAnnotation marks long-running commands that ping the external
// services at startup.
const providerCheckAnnotation = "corpus/check-providers"

// Wiring levels.
const (
	wireNone     = "none"
	wireSettings = "settings"
)

var (
	// wireServices builds the services for cmd. Replaced in tests.
	wireServices = wire

	// closeServices releases what wireServices opened.
	closeServices func()
)

var rootCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Document ingestion and hybrid retrieval",
	Long: `corpus ingests PDF, DOCX, DOC and plain-text documents, embeds them into a
vector store and answers queries with the most relevant chunks.

Upload files, run sync to process them, then search:

  corpus upload notes.pdf
  corpus sync
  corpus search "how much fibre per day"`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		level := wiringLevel(cmd)
		if level == wireNone {
			return nil
		}
		return wireServices(cmd, level)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show progress and debug output")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default $CORPUS_DATA_DIR or ~/.corpus/data)")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.corpus)")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	defer releaseServices()
	return rootCmd.ExecuteContext(ctx)
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

func wiringLevel(cmd *cobra.Command) string {
	for c := cmd; c != nil; c = c.Parent() {
		if level, ok := c.Annotations[wiringAnnotation]; ok {
			return level
		}
	}
	return ""
}

func checksProviders(cmd *cobra.Command) bool {
	return cmd.Annotations[providerCheckAnnotation] == "true"
}

func releaseServices() {
	if closeServices != nil {
		closeServices()
		closeServices = nil
	}
}
