package driven

import "context"

// BlobStore keeps original file bytes and normalized text.
// Keys are relative, slash-separated and opaque to callers.
type BlobStore interface {
	// PutOriginal stores uploaded bytes and returns their key.
	PutOriginal(ctx context.Context, filename, rawHash string, content []byte) (string, error)

	// PutText stores normalized text under its text hash and returns the key.
	// Writing the same hash twice is a no-op.
	PutText(ctx context.Context, textHash, text string) (string, error)

	// Get reads the bytes stored under key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the blob stored under key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}
