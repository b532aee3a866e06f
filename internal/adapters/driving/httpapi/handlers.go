package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/custodia-labs/corpus/internal/core/domain"
	"github.com/custodia-labs/corpus/internal/logger"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`

	// RetryAfter is set on 429 responses.
	RetryAfter int `json:"retry_after_seconds,omitempty"`
}

// SearchRequest is the body of POST /api/search.
// Unset overrides keep the configured values.
type SearchRequest struct {
	Query          string   `json:"query"`
	K              *int     `json:"k,omitempty"`
	ContentWeight  *float64 `json:"content_weight,omitempty"`
	MetaWeight     *float64 `json:"meta_weight,omitempty"`
	ScoreThreshold *float64 `json:"score_threshold,omitempty"`
}

// SyncStatsResponse is the body of GET /api/sync.
type SyncStatsResponse struct {
	*domain.SyncStats
	Pending    int  `json:"pending"`
	SyncNeeded bool `json:"sync_needed"`
	Running    bool `json:"running"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, domain.RouteUpload) {
		return
	}

	limits := s.uploadLimits()
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxBytes()+multipartOverhead)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Info("http: upload from %s exceeds %d MB", r.RemoteAddr, limits.MaxFileSizeMB)
			writeJSON(w, http.StatusRequestEntityTooLarge,
				domain.Rejected(fmt.Sprintf("file is larger than the %d MB limit", limits.MaxFileSizeMB)))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart body: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading file: "+err.Error())
		return
	}

	req := domain.UploadRequest{
		Filename:  header.Filename,
		MediaType: header.Header.Get("Content-Type"),
		Content:   content,
	}

	if r.FormValue("testMode") == "true" {
		s.preview(w, r, req)
		return
	}

	logger.Debug("http: upload %s (%d bytes) from %s", req.Filename, len(content), r.RemoteAddr)
	result, err := s.ports.Upload.Upload(r.Context(), req)
	if err != nil {
		logger.Error("http: upload %s: %v", req.Filename, err)
		writeError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	switch result.Outcome {
	case domain.UploadRejected:
		writeJSON(w, http.StatusBadRequest, result)
	case domain.UploadAccepted:
		writeJSON(w, http.StatusCreated, result)
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) uploadLimits() domain.UploadSettings {
	if s.ports.Settings == nil {
		return domain.DefaultSettings().Upload
	}
	return s.ports.Settings.Snapshot().Upload
}

func (s *Server) preview(w http.ResponseWriter, r *http.Request, req domain.UploadRequest) {
	result, err := s.ports.Upload.Preview(r.Context(), req)
	if err != nil {
		var extractErr *domain.ExtractionError
		switch {
		case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnsupportedType):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &extractErr):
			writeError(w, http.StatusBadRequest, "could not extract text for preview")
		default:
			logger.Error("http: preview %s: %v", req.Filename, err)
			writeError(w, http.StatusInternalServerError, "preview failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	report, err := s.ports.Sync.Sync(r.Context(), domain.TriggerAPI)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrEmbeddingUnavailable) || errors.Is(err, domain.ErrVectorStoreUnavailable) {
			status = http.StatusServiceUnavailable
		}
		logger.Error("http: sync: %v", err)
		writeError(w, status, "synchronization failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSyncStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ports.Sync.Stats(r.Context())
	if err != nil {
		logger.Error("http: sync stats: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to get sync statistics")
		return
	}
	writeJSON(w, http.StatusOK, SyncStatsResponse{
		SyncStats:  stats,
		Pending:    stats.Pending(),
		SyncNeeded: stats.SyncNeeded(),
		Running:    s.ports.Sync.Running(),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, domain.RouteSearch) {
		return
	}

	var req SearchRequest
	if err := decodeJSON(w, r, &req, maxJSONBody); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	resp, err := s.ports.Retrieval.Retrieve(r.Context(), req.Query, domain.RetrievalOptions{
		K:              req.K,
		ContentWeight:  req.ContentWeight,
		MetaWeight:     req.MetaWeight,
		ScoreThreshold: req.ScoreThreshold,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error("http: search: %v", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// allow counts the request against route and writes a 429 when it is
// rejected. A failing limiter lets the request through.
func (s *Server) allow(w http.ResponseWriter, r *http.Request, route string) bool {
	if s.ports.Limiter == nil {
		return true
	}

	key := clientKey(r.Header, remoteHost(r.RemoteAddr))
	decision, err := s.ports.Limiter.Check(r.Context(), route, key)
	if err != nil {
		logger.Warn("http: rate limit check for %s: %v", key, err)
		return true
	}

	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(decision.Reset))

	var limited *domain.RateLimitError
	if errors.As(decision.Err(route), &limited) {
		logger.Info("http: %s rate limited on %s (%s)", key, route, limited.Reason)
		w.Header().Set("Retry-After", strconv.Itoa(limited.RetryAfter))
		writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
			Error:      limited.Reason,
			RetryAfter: limited.RetryAfter,
		})
		return false
	}
	return true
}

// clientKey identifies a client for rate limiting: the first
// X-Forwarded-For entry, then X-Real-IP, then fallback.
func clientKey(headers http.Header, fallback string) string {
	if fwd := headers.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(headers.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if fallback == "" {
		return "unknown"
	}
	return fallback
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return strings.TrimSpace(addr)
	}
	return host
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any, maxBytes int64) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decoding body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
