package domain

// UploadRequest is a file handed to the upload boundary.
type UploadRequest struct {
	// Filename is the declared filename; its extension selects the extractor.
	Filename string

	// MediaType is the declared media type, a secondary extractor signal.
	MediaType string

	// Content is the raw file bytes.
	Content []byte
}

// UploadOutcome is the kind of an UploadResult.
type UploadOutcome string

// Upload outcomes.
const (
	UploadAccepted  UploadOutcome = "accepted"
	UploadDuplicate UploadOutcome = "duplicate"
	UploadRejected  UploadOutcome = "rejected"
)

// UploadResult reports what the upload boundary did with a file.
// Duplicates and rejections are expected outcomes, not errors.
type UploadResult struct {
	Outcome UploadOutcome `json:"outcome"`

	// DocumentID is the new document (accepted) or the existing one (duplicate).
	DocumentID string `json:"document_id,omitempty"`

	// RawHash is the content hash of the uploaded bytes.
	RawHash string `json:"raw_hash,omitempty"`

	// Reason explains a rejection.
	Reason string `json:"reason,omitempty"`

	// Variant is the extractor selected for the file.
	Variant DocumentVariant `json:"variant,omitempty"`
}

// Accepted builds an accepted result.
func Accepted(documentID, rawHash string, variant DocumentVariant) UploadResult {
	return UploadResult{Outcome: UploadAccepted, DocumentID: documentID, RawHash: rawHash, Variant: variant}
}

// Duplicate builds a duplicate result pointing at the existing document.
func Duplicate(existingID, rawHash string) UploadResult {
	return UploadResult{Outcome: UploadDuplicate, DocumentID: existingID, RawHash: rawHash}
}

// Rejected builds a rejected result.
func Rejected(reason string) UploadResult {
	return UploadResult{Outcome: UploadRejected, Reason: reason}
}

// PreviewResult is the text extracted from a file that was not stored.
type PreviewResult struct {
	Filename   string          `json:"filename"`
	Variant    DocumentVariant `json:"variant"`
	RawHash    string          `json:"raw_hash"`
	TextLength int             `json:"text_length"`
	Preview    string          `json:"preview"`
}
