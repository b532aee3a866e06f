package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/corpus/internal/adapters/driven/ai"
	"github.com/custodia-labs/corpus/internal/core/domain"
	"github.com/custodia-labs/corpus/internal/core/services"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and change the settings stored in config.toml.

Secrets and endpoints are read from the environment (or a .env file):
OPENAI_API_KEY, OPENAI_BASE_URL, QDRANT_URL, QDRANT_API_KEY and
QDRANT_COLLECTION_NAME.`,
	Annotations: map[string]string{wiringAnnotation: wireSettings},
	RunE:        runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting",
	Long: `Stores one setting. The value is checked against the key's type.
Run 'corpus settings keys' for the list of keys.`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List setting keys",
	Args:  cobra.NoArgs,
	RunE:  runSettingsKeys,
}

var settingsEnrichmentCmd = &cobra.Command{
	Use:   "enrichment",
	Short: "Choose the enrichment domain and sampling strategy",
	Long:  `Interactively select the metadata schema and how long texts are sampled.`,
	Args:  cobra.NoArgs,
	RunE:  runSettingsEnrichment,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsKeysCmd)
	settingsCmd.AddCommand(settingsEnrichmentCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	s := settingsService.Snapshot()

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Printf("File: %s\n", settingsService.Path())
	cmd.Println()

	cmd.Println("[Chunking]")
	cmd.Printf("  Size: %d tokens\n", s.Chunking.Size)
	cmd.Printf("  Overlap: %d tokens\n", s.Chunking.Overlap)
	cmd.Printf("  Preserve structure: %t\n", s.Chunking.PreserveStructure)
	cmd.Println()

	cmd.Println("[Retrieval]")
	cmd.Printf("  K: %d\n", s.Retrieval.K)
	cmd.Printf("  Weights: content %.2f, meta %.2f\n", s.Retrieval.ContentWeight, s.Retrieval.MetaWeight)
	cmd.Printf("  Score threshold: %.2f\n", s.Retrieval.ScoreThreshold)
	cmd.Println()

	cmd.Println("[Vector Store]")
	cmd.Printf("  Collection: %s\n", s.Vector.Collection)
	cmd.Printf("  Multi-vector: %t\n", s.Vector.MultiVector)
	cmd.Printf("  URL: %s\n", envOr(ai.EnvQdrantURL, "(default)"))
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Model: %s\n", s.Embedding.Model)
	cmd.Printf("  Batch: %d every %s\n", s.Embedding.BatchSize, s.Embedding.BatchDelay)
	cmd.Printf("  Cache: %d entries\n", s.Embedding.CacheSize)
	if key := os.Getenv(ai.EnvOpenAIKey); key != "" {
		cmd.Printf("  API Key: %s\n", maskAPIKey(key))
	} else {
		cmd.Printf("  API Key: %s\n", warnText("(not set)"))
	}
	cmd.Println()

	cmd.Println("[Enrichment]")
	cmd.Printf("  Enabled: %t\n", s.Enrichment.Enabled)
	cmd.Printf("  Domain: %s\n", s.Enrichment.Domain)
	cmd.Printf("  Strategy: %s\n", s.Enrichment.Strategy)
	cmd.Printf("  Model: %s\n", s.Enrichment.Model)
	cmd.Printf("  Context budget: %d tokens\n", s.Enrichment.TokenBudget())
	if s.Enrichment.Prompt != "" {
		cmd.Println("  Prompt: custom")
	}
	cmd.Println()

	cmd.Println("[Limits]")
	cmd.Printf("  Max file size: %d MB\n", s.Upload.MaxFileSizeMB)
	cmd.Printf("  Upload: %d per %s\n", s.RateLimits.Upload.Limit, s.RateLimits.Upload.Window)
	cmd.Printf("  Search: %d per %s\n", s.RateLimits.Search.Limit, s.RateLimits.Search.Window)
	if s.Sync.Interval > 0 {
		cmd.Printf("  Scheduled sync: every %s\n", s.Sync.Interval)
	} else {
		cmd.Println("  Scheduled sync: off")
	}
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	if err := settingsService.Set(args[0], args[1]); err != nil {
		return fmt.Errorf("failed to set %s: %w", args[0], err)
	}
	cmd.Printf("%s = %s\n", args[0], args[1])
	return nil
}

func runSettingsKeys(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	for _, key := range settingsService.Keys() {
		cmd.Println(key)
	}
	return nil
}

func runSettingsEnrichment(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	current := settingsService.Snapshot().Enrichment

	cmd.Println("Select Enrichment Domain")
	domains := []domain.EnrichmentDomain{domain.DomainNutrition, domain.DomainSpiritual}
	selectedDomain := choose(cmd, reader, domains, current.Domain)
	if err := settingsService.Set(services.KeyEnrichDomain, string(selectedDomain)); err != nil {
		return fmt.Errorf("failed to set domain: %w", err)
	}

	cmd.Println("Select Sampling Strategy")
	strategies := []domain.SamplingStrategy{domain.StrategyAuto, domain.StrategySampled, domain.StrategyHierarchical}
	selectedStrategy := choose(cmd, reader, strategies, current.Strategy)
	if err := settingsService.Set(services.KeyEnrichStrategy, string(selectedStrategy)); err != nil {
		return fmt.Errorf("failed to set strategy: %w", err)
	}

	cmd.Printf("Enrichment: %s, %s\n", selectedDomain, selectedStrategy)
	return nil
}

// choose prints options and reads a 1-based selection. Empty or invalid
// input keeps current.
func choose[T comparable](cmd *cobra.Command, reader *bufio.Reader, options []T, current T) T {
	def := 1
	for i, o := range options {
		marker := ""
		if o == current {
			def = i + 1
			marker = " (current)"
		}
		cmd.Printf("  %d. %v%s\n", i+1, o, marker)
	}
	cmd.Printf("\nEnter choice [%d]: ", def)
	idx := parseChoice(readLine(reader), len(options), def)
	cmd.Println()
	return options[idx-1]
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
