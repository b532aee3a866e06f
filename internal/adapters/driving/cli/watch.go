package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/corpus/internal/connectors/filesystem"
	"github.com/custodia-labs/corpus/internal/core/domain"
)

var (
	watchSync     bool
	watchExisting bool
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Upload files dropped into a directory",
	Long: `Watches a directory and uploads every file created or written in it once
the file has stopped changing. Files already in the directory are uploaded
first. Hidden files, subdirectories and partial downloads are ignored.

Use --sync to process each accepted file right away.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchSync, "sync", false, "run sync after each accepted upload")
	watchCmd.Flags().BoolVar(&watchExisting, "existing", true, "upload files already in the directory")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", filesystem.DefaultDebounce, "quiet period before a file is uploaded")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if uploadService == nil {
		return errors.New("upload service not configured")
	}
	if watchSync && syncOrchestrator == nil {
		return errors.New("sync service not configured")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inbox := filesystem.New(args[0], filesystem.WithDebounce(watchDebounce))
	defer inbox.Close()

	if watchExisting {
		files, err := inbox.Scan()
		if err != nil {
			return err
		}
		for _, path := range files {
			if err := watchUpload(cmd, path); err != nil {
				return err
			}
		}
	}

	changes, err := inbox.Watch(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("Watching %s (Ctrl+C to stop)\n", inbox.Root())

	for change := range changes {
		if err := watchUpload(cmd, change.Path); err != nil {
			return err
		}
	}
	return nil
}

// watchUpload uploads one file. Only infrastructure failures are returned;
// unreadable or rejected files are reported and skipped.
func watchUpload(cmd *cobra.Command, path string) error {
	req, err := readUploadRequest(path)
	if err != nil {
		cmd.Printf("%s %s: %v\n", failText("error"), path, err)
		return nil
	}

	result, err := uploadService.Upload(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("uploading %s: %w", path, err)
	}
	printUploadResult(cmd, req.Filename, result)

	if watchSync && result.Outcome == domain.UploadAccepted {
		report, err := syncOrchestrator.Sync(cmd.Context(), domain.TriggerCLI)
		if err != nil {
			cmd.Printf("%s sync: %v\n", failText("error"), err)
			return nil
		}
		printSyncReport(cmd, report)
	}
	return nil
}
