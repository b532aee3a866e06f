package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates a document format no extractor handles.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrNotClaimed indicates a document could not be moved into processing
	// because another run claimed it first or its status changed.
	ErrNotClaimed = errors.New("document not claimed")

	// ErrLLMUnavailable indicates the language model is not configured.
	// Enrichment is skipped without it.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding provider is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorStoreUnavailable indicates the vector store is not configured.
	ErrVectorStoreUnavailable = errors.New("vector store unavailable")

	// ErrRateLimited indicates a caller exceeded a rate limit.
	ErrRateLimited = errors.New("rate limited")
)

// ExtractionError reports an unreadable or unsupported document.
// It is terminal for the document being processed.
type ExtractionError struct {
	// Variant is the extractor that failed (pdf, docx, doc, plaintext).
	Variant DocumentVariant

	// Cause is the underlying failure.
	Cause error
}

func (e *ExtractionError) Error() string {
	if e.Variant == "" {
		return fmt.Sprintf("extraction failed: %v", e.Cause)
	}
	return fmt.Sprintf("%s extraction failed: %v", e.Variant, e.Cause)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// NewExtractionError wraps cause as an ExtractionError for variant.
func NewExtractionError(variant DocumentVariant, cause error) *ExtractionError {
	return &ExtractionError{Variant: variant, Cause: cause}
}

// EnrichmentError reports a failed metadata enrichment.
// It degrades metadata only and never fails a document.
type EnrichmentError struct {
	Cause error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("enrichment failed: %v", e.Cause)
}

func (e *EnrichmentError) Unwrap() error {
	return e.Cause
}

// EmbeddingErrorKind classifies embedding provider failures.
type EmbeddingErrorKind string

// Embedding failure classes.
const (
	EmbeddingRateLimited   EmbeddingErrorKind = "rate_limited"
	EmbeddingQuotaExceeded EmbeddingErrorKind = "quota_exceeded"
	EmbeddingAuthFailed    EmbeddingErrorKind = "auth_failed"
	EmbeddingOther         EmbeddingErrorKind = "other"
)

// EmbeddingError is a classified embedding provider failure.
// Callers decide whether to retry; the client itself never does.
type EmbeddingError struct {
	Kind  EmbeddingErrorKind
	Cause error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding provider error (%s): %v", e.Kind, e.Cause)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether a later attempt could succeed without operator action.
func (e *EmbeddingError) Retryable() bool {
	return e.Kind == EmbeddingRateLimited
}

// NewEmbeddingError builds a classified embedding error.
func NewEmbeddingError(kind EmbeddingErrorKind, cause error) *EmbeddingError {
	return &EmbeddingError{Kind: kind, Cause: cause}
}

// AsEmbeddingError returns err as an EmbeddingError, classifying it as
// EmbeddingOther when it carries no classification yet.
func AsEmbeddingError(err error) *EmbeddingError {
	if err == nil {
		return nil
	}
	var embedErr *EmbeddingError
	if errors.As(err, &embedErr) {
		return embedErr
	}
	return NewEmbeddingError(EmbeddingOther, err)
}

// VectorStoreError reports a vector store failure. Local validation
// failures wrap ErrInvalidInput and never reach the network.
type VectorStoreError struct {
	// Op is the failed operation (upsert, search, create_collection).
	Op string

	Cause error
}

func (e *VectorStoreError) Error() string {
	return fmt.Sprintf("vector store %s: %v", e.Op, e.Cause)
}

func (e *VectorStoreError) Unwrap() error {
	return e.Cause
}

// RateLimitError is the caller-facing rejection of a rate-limited request.
type RateLimitError struct {
	Route string

	// RetryAfter is the number of seconds until a retry may succeed.
	RetryAfter int

	// Reason is the human-readable rejection message.
	Reason string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: %s (retry after %ds)", e.Route, e.Reason, e.RetryAfter)
}

// Is makes errors.Is(err, ErrRateLimited) hold for rate limit rejections.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}
