package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/corpus/internal/core/domain"
)

// statsRuns is the number of runs listed by the stats command.
const statsRuns = 5

var resetStale bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Process uploaded documents into the vector store",
	Long: `Processes every uploaded document: extracts its text, skips content that is
already in the library, enriches it with metadata, chunks and embeds it and
stores the vectors. A failing document is marked failed and the run goes on.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show document counts by status and recent sync runs",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Return failed documents to the sync queue",
	Long: `Returns failed documents to uploaded so the next sync retries them.

Use --stale to also reset documents left in processing by an interrupted run.
This is refused while a sync is running in the same process.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetStale, "stale", false, "also reset documents stuck in processing")
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(resetCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	if syncOrchestrator == nil {
		return errors.New("sync service not configured")
	}

	cmd.Println("Synchronising uploaded documents...")
	start := time.Now()
	report, err := syncOrchestrator.Sync(cmd.Context(), domain.TriggerCLI)
	if report != nil {
		printSyncReport(cmd, report)
	}
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	if len(report.Details) == 0 {
		cmd.Println("No documents pending synchronisation.")
		return nil
	}
	cmd.Printf("Done in %s: %s processed, %s duplicates, %s failed\n",
		time.Since(start).Round(time.Millisecond),
		okText(report.Processed), warnText(report.SkippedDuplicates), failText(report.Failed))
	return nil
}

func printSyncReport(cmd *cobra.Command, report *domain.SyncReport) {
	for _, d := range report.Details {
		switch d.Status {
		case domain.StatusEmbedded:
			cmd.Printf("  %s %s (%d chunks)\n", okText("embedded"), d.Filename, d.Chunks)
		case domain.StatusDuplicate:
			cmd.Printf("  %s %s -> %s\n", warnText("duplicate"), d.Filename, d.LinkedTo)
		default:
			cmd.Printf("  %s %s: %s\n", failText("failed"), d.Filename, d.Error)
		}
	}
}

func runStats(cmd *cobra.Command, _ []string) error {
	if syncOrchestrator == nil {
		return errors.New("sync service not configured")
	}

	stats, err := syncOrchestrator.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	cmd.Printf("Documents: %d (%s)\n", stats.Total, formatBytes(stats.TotalSize))
	for _, status := range []domain.Status{
		domain.StatusUploaded,
		domain.StatusProcessing,
		domain.StatusEmbedded,
		domain.StatusDuplicate,
		domain.StatusFailed,
	} {
		cmd.Printf("  %-12s %d\n", status, stats.ByStatus[status])
	}
	if stats.SyncNeeded() {
		cmd.Printf("%s: %d documents pending, run 'corpus sync'\n", warnText("Sync needed"), stats.Pending())
	}

	runs, err := syncOrchestrator.RecentRuns(cmd.Context(), statsRuns)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		return nil
	}
	cmd.Println()
	cmd.Println("Recent runs:")
	for _, r := range runs {
		line := fmt.Sprintf("  %s  %-8s %d processed, %d duplicates, %d failed (%s)",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Trigger,
			r.Processed, r.Skipped, r.Failed, r.Duration().Round(time.Millisecond))
		if r.Error != "" {
			line += " " + failText("aborted: "+r.Error)
		}
		cmd.Println(line)
	}
	return nil
}

func runReset(cmd *cobra.Command, _ []string) error {
	if syncOrchestrator == nil {
		return errors.New("sync service not configured")
	}

	n, err := syncOrchestrator.Reset(cmd.Context(), domain.ResetOptions{IncludeStale: resetStale})
	if err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}
	cmd.Printf("Reset %d documents to uploaded.\n", n)
	return nil
}
