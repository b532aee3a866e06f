package memory

import (
	"context"
	"path"
	"sync"

	"github.com/custodia-labs/corpus/internal/core/domain"
	"github.com/custodia-labs/corpus/internal/core/ports/driven"
)

// Ensure BlobStore implements the interface.
var _ driven.BlobStore = (*BlobStore)(nil)

// BlobStore is an in-memory driven.BlobStore for testing.
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewBlobStore creates an empty in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string][]byte)}
}

// PutOriginal stores uploaded bytes under original/<rawHash>/<filename>.
func (s *BlobStore) PutOriginal(_ context.Context, filename, rawHash string, content []byte) (string, error) {
	key := path.Join("original", rawHash, path.Base(filename))
	s.put(key, content)
	return key, nil
}

// PutText stores normalized text under txt/<textHash>.txt.
func (s *BlobStore) PutText(_ context.Context, textHash, text string) (string, error) {
	key := path.Join("txt", textHash+".txt")
	s.put(key, []byte(text))
	return key, nil
}

// Get returns a copy of the blob under key.
func (s *BlobStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Delete removes the blob under key.
func (s *BlobStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

// Len returns the number of stored blobs.
func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

func (s *BlobStore) put(key string, content []byte) {
	data := make([]byte, len(content))
	copy(data, content)
	s.mu.Lock()
	s.blobs[key] = data
	s.mu.Unlock()
}
