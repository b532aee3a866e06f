// Package qdrant provides a vector store adapter over the Qdrant REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/corpus/internal/core/domain"
	"github.com/custodia-labs/corpus/internal/core/ports/driven"
	"github.com/custodia-labs/corpus/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// Default configuration values.
const (
	DefaultURL     = "http://localhost:6333"
	DefaultTimeout = 30 * time.Second
)

// maxLoggedBody caps how much of an error response is logged.
const maxLoggedBody = 2048

// Config holds configuration for the Qdrant store.
type Config struct {
	// URL is the Qdrant REST endpoint (default: http://localhost:6333).
	URL string

	// APIKey is sent as the api-key header when set.
	APIKey string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration
}

// Store talks to one Qdrant instance.
type Store struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewStore creates a Qdrant store. No request is made until first use.
func NewStore(cfg Config) *Store {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Store{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
	}
}

type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

type namedVector struct {
	Name   string    `json:"name"`
	Vector []float32 `json:"vector"`
}

type point struct {
	ID      string         `json:"id"`
	Vector  any            `json:"vector"`
	Payload map[string]any `json:"payload,omitempty"`
}

type searchRequest struct {
	Vector         any      `json:"vector"`
	Limit          int      `json:"limit"`
	WithPayload    bool     `json:"with_payload"`
	ScoreThreshold *float64 `json:"score_threshold,omitempty"`
}

type searchResponse struct {
	Result []struct {
		ID      any            `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

// CreateCollection creates the collection with cosine distance. An existing
// collection is kept unless spec.Recreate is set.
func (s *Store) CreateCollection(ctx context.Context, spec domain.CollectionSpec) error {
	if spec.Name == "" || spec.Dimensions <= 0 {
		return fmt.Errorf("%w: collection needs a name and positive dimensions", domain.ErrInvalidInput)
	}
	if spec.Recreate {
		if err := s.DeleteCollection(ctx, spec.Name); err != nil {
			return err
		}
	}

	params := vectorParams{Size: spec.Dimensions, Distance: "Cosine"}
	var vectors any = params
	if spec.Named() {
		named := make(map[string]vectorParams, len(spec.Spaces))
		for _, space := range spec.Spaces {
			named[string(space)] = params
		}
		vectors = named
	}

	status, body, err := s.do(ctx, http.MethodPut, collectionPath(spec.Name), map[string]any{"vectors": vectors})
	if err != nil {
		return &domain.VectorStoreError{Op: "create_collection", Cause: err}
	}
	switch {
	case status == http.StatusOK:
		logger.Info("qdrant: created collection %s (%d dims, spaces %v)", spec.Name, spec.Dimensions, spec.Spaces)
		return nil
	case status == http.StatusConflict, alreadyExists(status, body):
		logger.Debug("qdrant: collection %s already exists", spec.Name)
		return nil
	default:
		return s.remoteError("create_collection", status, body)
	}
}

// DeleteCollection drops a collection. A missing collection is not an error.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	status, body, err := s.do(ctx, http.MethodDelete, collectionPath(name), nil)
	if err != nil {
		return &domain.VectorStoreError{Op: "delete_collection", Cause: err}
	}
	if status == http.StatusOK || status == http.StatusNotFound {
		return nil
	}
	return s.remoteError("delete_collection", status, body)
}

// Upsert validates the batch locally and writes it, waiting for the write
// to be applied.
func (s *Store) Upsert(ctx context.Context, collection string, points []domain.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}
	if err := domain.ValidatePoints(points); err != nil {
		return err
	}

	batch := make([]point, len(points))
	for i, p := range points {
		var vector any = p.Content
		if p.Meta != nil {
			vector = map[string][]float32{
				string(domain.SpaceContent): p.Content,
				string(domain.SpaceMeta):    p.Meta,
			}
		}
		batch[i] = point{ID: p.ID, Vector: vector, Payload: p.Payload}
	}

	status, body, err := s.do(ctx, http.MethodPut, collectionPath(collection)+"/points?wait=true", map[string]any{"points": batch})
	if err != nil {
		logger.Error("qdrant: upsert of %s failed: %v", shapeSummary(points), err)
		return &domain.VectorStoreError{Op: "upsert", Cause: err}
	}
	if status != http.StatusOK {
		logger.Error("qdrant: upsert of %s rejected", shapeSummary(points))
		return s.remoteError("upsert", status, body)
	}
	logger.Debug("qdrant: upserted %d points into %s", len(points), collection)
	return nil
}

// Search returns candidates sorted by descending similarity.
func (s *Store) Search(ctx context.Context, collection string, q domain.VectorQuery) ([]domain.Candidate, error) {
	if len(q.Vector) == 0 || q.Limit <= 0 {
		return nil, fmt.Errorf("%w: search needs a vector and a positive limit", domain.ErrInvalidInput)
	}

	req := searchRequest{Vector: q.Vector, Limit: q.Limit, WithPayload: true}
	if q.Space != domain.SpaceDefault {
		req.Vector = namedVector{Name: string(q.Space), Vector: q.Vector}
	}
	if q.ScoreThreshold > 0 {
		threshold := q.ScoreThreshold
		req.ScoreThreshold = &threshold
	}

	status, body, err := s.do(ctx, http.MethodPost, collectionPath(collection)+"/points/search", req)
	if err != nil {
		return nil, &domain.VectorStoreError{Op: "search", Cause: err}
	}
	if status != http.StatusOK {
		return nil, s.remoteError("search", status, body)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &domain.VectorStoreError{Op: "search", Cause: fmt.Errorf("decode response: %w", err)}
	}
	out := make([]domain.Candidate, len(resp.Result))
	for i, hit := range resp.Result {
		out[i] = domain.Candidate{ID: fmt.Sprint(hit.ID), Score: hit.Score, Payload: hit.Payload}
	}
	return out, nil
}

// Ping validates the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	status, body, err := s.do(ctx, http.MethodGet, "/collections", nil)
	if err != nil {
		return &domain.VectorStoreError{Op: "ping", Cause: err}
	}
	if status != http.StatusOK {
		return s.remoteError("ping", status, body)
	}
	return nil
}

// do sends a JSON request and returns the status and the full response body.
func (s *Store) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var reader io.Reader = http.NoBody
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func (s *Store) remoteError(op string, status int, body []byte) error {
	text := strings.TrimSpace(string(body))
	if len(text) > maxLoggedBody {
		text = text[:maxLoggedBody] + "..."
	}
	logger.Error("qdrant: %s returned status %d: %s", op, status, text)
	return &domain.VectorStoreError{Op: op, Cause: fmt.Errorf("status %d: %s", status, text)}
}

func collectionPath(name string) string {
	return "/collections/" + url.PathEscape(name)
}

func alreadyExists(status int, body []byte) bool {
	return status == http.StatusBadRequest && bytes.Contains(bytes.ToLower(body), []byte("already exists"))
}

// shapeSummary describes a batch without its vectors, for error logs.
func shapeSummary(points []domain.VectorPoint) string {
	if len(points) == 0 {
		return "0 points"
	}
	keys := make([]string, 0, len(points[0].Payload))
	for k := range points[0].Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("%d points (content dim %d, meta dim %d, payload keys %s)",
		len(points), len(points[0].Content), len(points[0].Meta), strings.Join(keys, ","))
}
