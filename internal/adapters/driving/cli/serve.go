package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/corpus/internal/adapters/driven/storage/badger"
	"github.com/custodia-labs/corpus/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/corpus/internal/core/ports/driven"
	"github.com/custodia-labs/corpus/internal/core/services"
	"github.com/custodia-labs/corpus/internal/logger"
)

// limiterCloseTimeout bounds the final rate-limit flush.
const limiterCloseTimeout = 5 * time.Second

var serveAddr string

// openRateLimitStore opens the durable rate-limit tier. Replaced in tests.
var openRateLimitStore = func(dir string) (driven.RateLimitStore, error) {
	return badger.Open(dir)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serves the HTTP API until interrupted:

  POST /api/upload   multipart upload (form field "file"), rate limited
  POST /api/sync     process uploaded documents
  GET  /api/sync     document counts by status
  POST /api/search   {"query": "..."} with optional overrides, rate limited
  GET  /healthz      liveness

Rate-limit counters are kept in memory and flushed to disk periodically.
When sync.interval_minutes is set, sync also runs on that schedule.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{providerCheckAnnotation: "true"},
	RunE:        runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8080", "listen address")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if settingsService == nil || uploadService == nil || syncOrchestrator == nil || retrievalService == nil {
		return errors.New("services not configured")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openRateLimitStore(filepath.Join(dirs.data, rateLimitDirName))
	if err != nil {
		return fmt.Errorf("opening rate limit store: %w", err)
	}
	limiter := services.NewRateLimiter(settingsService, store)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), limiterCloseTimeout)
		defer cancel()
		if err := limiter.Close(closeCtx); err != nil {
			logger.Warn("closing rate limiter: %v", err)
		}
	}()
	if err := limiter.Restore(ctx); err != nil {
		logger.Warn("restoring rate limits: %v", err)
	}

	server, err := httpapi.NewServer(&httpapi.Ports{
		Upload:    uploadService,
		Sync:      syncOrchestrator,
		Retrieval: retrievalService,
		Limiter:   limiter,
		Settings:  settingsService,
	})
	if err != nil {
		return err
	}

	// The scheduler stops, waiting for a sync in flight, before the limiter
	// is flushed and closed.
	scheduler := services.NewScheduler(settingsService, syncOrchestrator, limiter)
	schedCtx, cancelScheduler := context.WithCancel(ctx)
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		scheduler.Start(schedCtx) //nolint:errcheck // returns ctx.Err() on shutdown
	}()
	defer func() {
		cancelScheduler()
		<-schedulerDone
	}()

	cmd.Printf("Serving on http://%s\n", serveAddr)
	if err := server.Run(ctx, serveAddr); err != nil {
		return fmt.Errorf("serving: %w", err)
	}
	cmd.Println("Shut down.")
	return nil
}
