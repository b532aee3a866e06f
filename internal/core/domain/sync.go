package domain

import "time"

// DocumentOutcome is the per-document detail of a sync run.
type DocumentOutcome struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`

	// Status is the terminal status the document reached.
	Status Status `json:"status"`

	// TextHash is the shortened text hash, when extraction succeeded.
	TextHash string `json:"text_hash,omitempty"`

	// LinkedTo is the canonical document id for duplicates.
	LinkedTo string `json:"linked_to,omitempty"`

	TextLength int           `json:"text_length,omitempty"`
	Chunks     int           `json:"chunks,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`

	// Error is the failure message for failed documents.
	Error string `json:"error,omitempty"`
}

// SyncReport is the result of one sync invocation.
type SyncReport struct {
	Processed         int               `json:"processed"`
	SkippedDuplicates int               `json:"skipped_duplicates"`
	Failed            int               `json:"failed"`
	Details           []DocumentOutcome `json:"details"`
}

// Add records an outcome and updates the counters.
func (r *SyncReport) Add(o DocumentOutcome) {
	switch o.Status {
	case StatusEmbedded:
		r.Processed++
	case StatusDuplicate:
		r.SkippedDuplicates++
	case StatusFailed:
		r.Failed++
	}
	r.Details = append(r.Details, o)
}

// SyncStats summarises the document table.
type SyncStats struct {
	Total     int            `json:"total"`
	TotalSize int64          `json:"total_size"`
	ByStatus  map[Status]int `json:"by_status"`
}

// Pending returns the number of documents waiting for sync.
func (s *SyncStats) Pending() int {
	return s.ByStatus[StatusUploaded]
}

// SyncNeeded reports whether a sync run would do any work.
func (s *SyncStats) SyncNeeded() bool {
	return s.Pending() > 0
}

// ResetOptions controls which documents an explicit reset returns to uploaded.
type ResetOptions struct {
	// IncludeStale also resets documents left in processing, e.g. after a crash.
	IncludeStale bool
}

// SyncTrigger names what started a sync run.
type SyncTrigger string

// Sync triggers.
const (
	TriggerCLI      SyncTrigger = "cli"
	TriggerAPI      SyncTrigger = "api"
	TriggerSchedule SyncTrigger = "schedule"
	TriggerMCP      SyncTrigger = "mcp"
)

// SyncRun is the history record of one sync run.
type SyncRun struct {
	ID         int64       `json:"id"`
	Trigger    SyncTrigger `json:"trigger"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Processed  int         `json:"processed"`
	Skipped    int         `json:"skipped_duplicates"`
	Failed     int         `json:"failed"`

	// Error is set when the run aborted before finishing the batch.
	Error string `json:"error,omitempty"`
}

// Duration returns how long the run took.
func (r SyncRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
