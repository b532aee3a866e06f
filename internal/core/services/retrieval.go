package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/corpus/internal/core/domain"
	"github.com/custodia-labs/corpus/internal/core/ports/driven"
	"github.com/custodia-labs/corpus/internal/core/ports/driving"
	"github.com/custodia-labs/corpus/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// MergeOptions controls how two candidate lists are fused.
type MergeOptions struct {
	K              int
	ContentWeight  float64
	MetaWeight     float64
	ScoreThreshold float64
}

// MergeCandidates fuses content-space and meta-space candidates.
//
// Candidates are unioned by id; the merged score is
// content*ContentWeight + meta*MetaWeight with a missing side counting 0.
// Results are sorted by descending score (ties by id), truncated to K and,
// when ScoreThreshold is positive, filtered by it.
func MergeCandidates(content, meta []domain.Candidate, opts MergeOptions) []domain.RetrievalResult {
	byID := make(map[string]*domain.RetrievalResult, len(content)+len(meta))
	var order []string

	get := func(c domain.Candidate) *domain.RetrievalResult {
		r, ok := byID[c.ID]
		if !ok {
			r = &domain.RetrievalResult{ID: c.ID}
			byID[c.ID] = r
			order = append(order, c.ID)
		}
		if r.Content == "" || r.Metadata == nil {
			text, md := splitPayload(c.Payload)
			if r.Content == "" {
				r.Content = text
			}
			if r.Metadata == nil {
				r.Metadata = md
			}
		}
		return r
	}

	seenContent := make(map[string]bool, len(content))
	for _, c := range content {
		r := get(c)
		if !seenContent[c.ID] || c.Score > r.ContentScore {
			r.ContentScore = c.Score
			seenContent[c.ID] = true
		}
	}
	seenMeta := make(map[string]bool, len(meta))
	for _, c := range meta {
		r := get(c)
		if !seenMeta[c.ID] || c.Score > r.MetaScore {
			r.MetaScore = c.Score
			seenMeta[c.ID] = true
		}
	}

	results := make([]domain.RetrievalResult, 0, len(order))
	for _, id := range order {
		r := byID[id]
		r.Score = r.ContentScore*opts.ContentWeight + r.MetaScore*opts.MetaWeight
		results = append(results, *r)
	}
	sortResults(results)

	if opts.K > 0 && len(results) > opts.K {
		results = results[:opts.K]
	}
	return applyThreshold(results, opts.ScoreThreshold)
}

func sortResults(results []domain.RetrievalResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
}

func applyThreshold(results []domain.RetrievalResult, threshold float64) []domain.RetrievalResult {
	if threshold <= 0 {
		return results
	}
	kept := results[:0]
	for _, r := range results {
		if r.Score >= threshold {
			kept = append(kept, r)
		}
	}
	return kept
}

// splitPayload separates the chunk text from the rest of a point payload.
func splitPayload(payload map[string]any) (string, map[string]any) {
	if payload == nil {
		return "", nil
	}
	text, _ := payload[PayloadContent].(string)
	md := make(map[string]any, len(payload))
	for k, v := range payload {
		if k != PayloadContent {
			md[k] = v
		}
	}
	return text, md
}

// RetrievalService answers queries against the vector store.
type RetrievalService struct {
	settings *SettingsService
	embedder *EmbeddingClient
	vectors  driven.VectorStore
}

// NewRetrievalService creates a retrieval service. embedder and vectors may
// be nil, in which case every query answers with no context.
func NewRetrievalService(settings *SettingsService, embedder *EmbeddingClient, vectors driven.VectorStore) *RetrievalService {
	return &RetrievalService{settings: settings, embedder: embedder, vectors: vectors}
}

// Retrieve embeds query once and searches the content space (and the meta
// space in dual-vector mode), merging the results. Provider failures never
// escape: they produce a response with NoContext set and a Reason.
func (s *RetrievalService) Retrieve(ctx context.Context, query string, opts domain.RetrievalOptions) (*domain.RetrievalResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", domain.ErrInvalidInput)
	}

	cfg := s.settings.Snapshot()
	merge := mergeOptions(cfg.Retrieval, opts)
	if merge.ContentWeight < 0 || merge.MetaWeight < 0 {
		return nil, fmt.Errorf("%w: weights must not be negative", domain.ErrInvalidInput)
	}
	if merge.K <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", domain.ErrInvalidInput)
	}

	resp := &domain.RetrievalResponse{Query: query, MultiVector: cfg.Vector.MultiVector}

	if s.embedder == nil || s.vectors == nil {
		return noContext(resp, "retrieval is not configured"), nil
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		logger.Warn("retrieval: embedding query failed: %v", err)
		return noContext(resp, "query embedding failed"), nil
	}

	if !cfg.Vector.MultiVector {
		hits, err := s.vectors.Search(ctx, cfg.Vector.Collection, domain.VectorQuery{
			Vector: vector,
			Limit:  merge.K,
		})
		if err != nil {
			logger.Warn("retrieval: search failed: %v", err)
			return noContext(resp, "vector search failed"), nil
		}
		resp.Results = rawResults(hits, merge)
		return finish(resp), nil
	}

	var (
		wg                    sync.WaitGroup
		contentHits, metaHits []domain.Candidate
		contentErr, metaErr   error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		contentHits, contentErr = s.vectors.Search(ctx, cfg.Vector.Collection, domain.VectorQuery{
			Vector: vector, Space: domain.SpaceContent, Limit: merge.K,
		})
	}()
	go func() {
		defer wg.Done()
		metaHits, metaErr = s.vectors.Search(ctx, cfg.Vector.Collection, domain.VectorQuery{
			Vector: vector, Space: domain.SpaceMeta, Limit: merge.K,
		})
	}()
	wg.Wait()

	if contentErr != nil || metaErr != nil {
		logger.Warn("retrieval: search failed (content: %v, meta: %v)", contentErr, metaErr)
		return noContext(resp, "vector search failed"), nil
	}

	resp.Results = MergeCandidates(contentHits, metaHits, merge)
	logger.Debug("retrieval: %d content, %d meta candidates, %d merged", len(contentHits), len(metaHits), len(resp.Results))
	return finish(resp), nil
}

// rawResults keeps single-space scores as they are.
func rawResults(hits []domain.Candidate, opts MergeOptions) []domain.RetrievalResult {
	results := make([]domain.RetrievalResult, 0, len(hits))
	for _, h := range hits {
		text, md := splitPayload(h.Payload)
		results = append(results, domain.RetrievalResult{
			ID:           h.ID,
			Content:      text,
			Metadata:     md,
			Score:        h.Score,
			ContentScore: h.Score,
		})
	}
	sortResults(results)
	if len(results) > opts.K {
		results = results[:opts.K]
	}
	return applyThreshold(results, opts.ScoreThreshold)
}

func mergeOptions(cfg domain.RetrievalSettings, opts domain.RetrievalOptions) MergeOptions {
	m := MergeOptions{
		K:              cfg.K,
		ContentWeight:  cfg.ContentWeight,
		MetaWeight:     cfg.MetaWeight,
		ScoreThreshold: cfg.ScoreThreshold,
	}
	if opts.K != nil {
		m.K = *opts.K
	}
	if opts.ContentWeight != nil {
		m.ContentWeight = *opts.ContentWeight
	}
	if opts.MetaWeight != nil {
		m.MetaWeight = *opts.MetaWeight
	}
	if opts.ScoreThreshold != nil {
		m.ScoreThreshold = *opts.ScoreThreshold
	}
	return m
}

func noContext(resp *domain.RetrievalResponse, reason string) *domain.RetrievalResponse {
	resp.Results = []domain.RetrievalResult{}
	resp.NoContext = true
	resp.Reason = reason
	return resp
}

func finish(resp *domain.RetrievalResponse) *domain.RetrievalResponse {
	if len(resp.Results) == 0 {
		return noContext(resp, domain.NoContextMessage)
	}
	return resp
}
