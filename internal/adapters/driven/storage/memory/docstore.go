package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/corpus/internal/core/domain"
	"github.com/custodia-labs/corpus/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	byRawHash map[string]string
	texts     map[string]domain.ProcessedText
	order     map[string]int
	seq       int
	now       func() time.Time
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.Document),
		byRawHash: make(map[string]string),
		texts:     make(map[string]domain.ProcessedText),
		order:     make(map[string]int),
		now:       time.Now,
	}
}

// CreateDocument inserts a new document.
func (s *DocumentStore) CreateDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byRawHash[doc.RawHash]; ok {
		return domain.ErrAlreadyExists
	}
	if _, ok := s.documents[doc.ID]; ok {
		return domain.ErrAlreadyExists
	}

	stored := *doc
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	if stored.Status == "" {
		stored.Status = domain.StatusUploaded
	}
	s.documents[doc.ID] = stored
	s.byRawHash[doc.RawHash] = doc.ID
	s.seq++
	s.order[doc.ID] = s.seq
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// GetDocumentByRawHash retrieves a document by its raw content hash.
func (s *DocumentStore) GetDocumentByRawHash(_ context.Context, rawHash string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byRawHash[rawHash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	doc := s.documents[id]
	return &doc, nil
}

// ListDocuments returns documents with the given status, oldest first.
func (s *DocumentStore) ListDocuments(_ context.Context, status domain.Status) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]domain.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		if status == "" || doc.Status == status {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.Before(docs[j].CreatedAt)
		}
		return s.order[docs[i].ID] < s.order[docs[j].ID]
	})
	return docs, nil
}

// TransitionStatus atomically moves a document between statuses.
func (s *DocumentStore) TransitionStatus(_ context.Context, id string, from, to domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	if doc.Status != from {
		return domain.ErrNotClaimed
	}
	doc.Status = to
	s.documents[id] = doc
	return nil
}

// MarkEmbedded records the processed text and sets status embedded.
func (s *DocumentStore) MarkEmbedded(_ context.Context, id string, text *domain.ProcessedText) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	if existing, ok := s.texts[text.TextHash]; ok && existing.DocumentID != id {
		return domain.ErrAlreadyExists
	}

	stored := *text
	stored.DocumentID = id
	if stored.EmbeddedAt.IsZero() {
		stored.EmbeddedAt = s.now()
	}
	s.texts[text.TextHash] = stored

	processed := stored.EmbeddedAt
	doc.Status = domain.StatusEmbedded
	doc.TextHash = text.TextHash
	doc.ErrorMessage = ""
	doc.ProcessedAt = &processed
	s.documents[id] = doc
	return nil
}

// MarkDuplicate sets status duplicate and links the canonical document.
func (s *DocumentStore) MarkDuplicate(_ context.Context, id, textHash, canonicalID string) error {
	return s.update(id, func(doc *domain.Document) {
		doc.Status = domain.StatusDuplicate
		doc.TextHash = textHash
		doc.CanonicalID = canonicalID
		doc.ErrorMessage = ""
	})
}

// MarkFailed sets status failed with a message.
func (s *DocumentStore) MarkFailed(_ context.Context, id, message string) error {
	return s.update(id, func(doc *domain.Document) {
		doc.Status = domain.StatusFailed
		doc.ErrorMessage = message
	})
}

func (s *DocumentStore) update(id string, fn func(*domain.Document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(&doc)
	processed := s.now()
	doc.ProcessedAt = &processed
	s.documents[id] = doc
	return nil
}

// ResetDocuments moves documents in the given statuses back to uploaded.
func (s *DocumentStore) ResetDocuments(_ context.Context, statuses ...domain.Status) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	match := make(map[domain.Status]bool, len(statuses))
	for _, st := range statuses {
		match[st] = true
	}

	n := 0
	for id, doc := range s.documents {
		if !match[doc.Status] {
			continue
		}
		doc.Status = domain.StatusUploaded
		doc.ErrorMessage = ""
		doc.ProcessedAt = nil
		s.documents[id] = doc
		n++
	}
	return n, nil
}

// GetProcessedText retrieves processed text by hash.
func (s *DocumentStore) GetProcessedText(_ context.Context, textHash string) (*domain.ProcessedText, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	text, ok := s.texts[textHash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &text, nil
}

// Stats summarises documents by status.
func (s *DocumentStore) Stats(_ context.Context) (*domain.SyncStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &domain.SyncStats{ByStatus: make(map[domain.Status]int)}
	for _, doc := range s.documents {
		stats.Total++
		stats.TotalSize += doc.Size
		stats.ByStatus[doc.Status]++
	}
	return stats, nil
}
