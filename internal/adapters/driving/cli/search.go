package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/corpus/internal/core/domain"
)

// snippetRunes bounds the chunk text shown per result.
const snippetRunes = 240

var (
	searchK             int
	searchContentWeight float64
	searchMetaWeight    float64
	searchThreshold     float64
	searchJSON          bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the library",
	Long: `Embeds the query and returns the most similar chunks. With the dual-vector
layout enabled, chunk similarity and document summary similarity are
weighted and merged.

Flags override the configured retrieval settings for this query only.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchK, "k", "k", 0, "number of results (default from settings)")
	searchCmd.Flags().Float64Var(&searchContentWeight, "content-weight", 0, "weight of chunk text similarity")
	searchCmd.Flags().Float64Var(&searchMetaWeight, "meta-weight", 0, "weight of document summary similarity")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", 0, "minimum merged score")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errors.New("search service not configured")
	}

	query := strings.Join(args, " ")
	opts := searchOptions(cmd)

	resp, err := retrievalService.Retrieve(cmd.Context(), query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, resp)
	}
	outputSearchTable(cmd, resp)
	return nil
}

// searchOptions keeps only the flags the user set, so unset flags fall
// back to the configured values.
func searchOptions(cmd *cobra.Command) domain.RetrievalOptions {
	var opts domain.RetrievalOptions
	flags := cmd.Flags()
	if flags.Changed("k") {
		k := searchK
		opts.K = &k
	}
	if flags.Changed("content-weight") {
		w := searchContentWeight
		opts.ContentWeight = &w
	}
	if flags.Changed("meta-weight") {
		w := searchMetaWeight
		opts.MetaWeight = &w
	}
	if flags.Changed("threshold") {
		th := searchThreshold
		opts.ScoreThreshold = &th
	}
	return opts
}

func outputSearchJSON(cmd *cobra.Command, resp *domain.RetrievalResponse) error {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, resp *domain.RetrievalResponse) {
	if resp.NoContext {
		reason := resp.Reason
		if reason == "" {
			reason = domain.NoContextMessage
		}
		cmd.Printf("No results: %s\n", reason)
		return
	}

	cmd.Println("Results:")
	cmd.Println()
	for i, r := range resp.Results {
		title, _ := r.Metadata["filename"].(string)
		if title == "" {
			title = r.ID
		}

		cmd.Printf("  [%d] %s (%.3f)\n", i+1, title, r.Score)
		if resp.MultiVector {
			cmd.Printf("      %s\n", dimText(fmt.Sprintf("content %.3f, meta %.3f", r.ContentScore, r.MetaScore)))
		}
		cmd.Printf("      %s\n", snippet(r.Content))
		cmd.Println()
	}
}

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= snippetRunes {
		return text
	}
	return string(runes[:snippetRunes]) + "..."
}
