package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/custodia-labs/corpus/internal/logger"
)

// Request limits.
const (
	// maxMultipartMemory is the part of a multipart body kept in memory;
	// the rest spills to temporary files.
	maxMultipartMemory = 32 << 20

	// multipartOverhead is allowed on top of the upload size limit for
	// part headers, boundaries and form fields.
	multipartOverhead = 1 << 20

	// maxJSONBody bounds JSON request bodies.
	maxJSONBody = 1 << 20

	shutdownTimeout = 10 * time.Second
)

// Server is the HTTP API of the corpus.
type Server struct {
	ports *Ports
	mux   *http.ServeMux
}

// NewServer creates a server with the given ports.
func NewServer(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	s := &Server{
		ports: ports,
		mux:   http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.mux.HandleFunc("POST /api/upload", s.handleUpload)
	s.mux.HandleFunc("POST /api/sync", s.handleSync)
	s.mux.HandleFunc("GET /api/sync", s.handleSyncStats)
	s.mux.HandleFunc("POST /api/search", s.handleSearch)
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves HTTP on addr until ctx is cancelled, then shuts down
// gracefully, letting in-flight requests finish.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http: listening on %s", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
