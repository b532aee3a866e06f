package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/custodia-labs/corpus/internal/core/domain"
	"github.com/custodia-labs/corpus/internal/core/ports/driven"
)

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

const documentColumns = `id, raw_hash, filename, size, media_type, storage_key, status,
	text_hash, canonical_id, error_message, created_at, processed_at`

type documentRow struct {
	ID           string         `db:"id"`
	RawHash      string         `db:"raw_hash"`
	Filename     string         `db:"filename"`
	Size         int64          `db:"size"`
	MediaType    string         `db:"media_type"`
	StorageKey   string         `db:"storage_key"`
	Status       string         `db:"status"`
	TextHash     sql.NullString `db:"text_hash"`
	CanonicalID  sql.NullString `db:"canonical_id"`
	ErrorMessage sql.NullString `db:"error_message"`
	CreatedAt    string         `db:"created_at"`
	ProcessedAt  sql.NullString `db:"processed_at"`
}

func (r *documentRow) toDomain() (*domain.Document, error) {
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return nil, err
	}
	processed, err := parseNullableTime(r.ProcessedAt)
	if err != nil {
		return nil, err
	}
	return &domain.Document{
		ID:           r.ID,
		RawHash:      r.RawHash,
		Filename:     r.Filename,
		Size:         r.Size,
		MediaType:    r.MediaType,
		StorageKey:   r.StorageKey,
		Status:       domain.Status(r.Status),
		TextHash:     r.TextHash.String,
		CanonicalID:  r.CanonicalID.String,
		ErrorMessage: r.ErrorMessage.String,
		CreatedAt:    created,
		ProcessedAt:  processed,
	}, nil
}

// CreateDocument inserts a new document.
func (s *documentStore) CreateDocument(ctx context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == "" || doc.RawHash == "" {
		return domain.ErrInvalidInput
	}
	created := doc.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	status := doc.Status
	if status == "" {
		status = domain.StatusUploaded
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents (id, raw_hash, filename, size, media_type, storage_key, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.RawHash, doc.Filename, doc.Size, doc.MediaType, doc.StorageKey,
		string(status), formatTime(created))
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	return s.getOne(ctx, "SELECT "+documentColumns+" FROM documents WHERE id = ?", id)
}

// GetDocumentByRawHash retrieves a document by its raw content hash.
func (s *documentStore) GetDocumentByRawHash(ctx context.Context, rawHash string) (*domain.Document, error) {
	return s.getOne(ctx, "SELECT "+documentColumns+" FROM documents WHERE raw_hash = ?", rawHash)
}

func (s *documentStore) getOne(ctx context.Context, query string, arg any) (*domain.Document, error) {
	var row documentRow
	if err := s.store.db.GetContext(ctx, &row, query, arg); err != nil {
		return nil, mapNotFound(err)
	}
	return row.toDomain()
}

// ListDocuments returns documents with the given status, oldest first.
func (s *documentStore) ListDocuments(ctx context.Context, status domain.Status) ([]domain.Document, error) {
	query := "SELECT " + documentColumns + " FROM documents"
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at ASC, rowid ASC"

	var rows []documentRow
	if err := s.store.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	docs := make([]domain.Document, 0, len(rows))
	for i := range rows {
		doc, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

// TransitionStatus atomically moves a document between statuses.
func (s *documentStore) TransitionStatus(ctx context.Context, id string, from, to domain.Status) error {
	res, err := s.store.db.ExecContext(ctx,
		"UPDATE documents SET status = ? WHERE id = ? AND status = ?", string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("transitioning document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transitioning document: %w", err)
	}
	if n == 1 {
		return nil
	}
	if _, err := s.GetDocument(ctx, id); err != nil {
		return err
	}
	return domain.ErrNotClaimed
}

// MarkEmbedded records the processed text and sets status embedded in one
// transaction.
func (s *documentStore) MarkEmbedded(ctx context.Context, id string, text *domain.ProcessedText) error {
	if text == nil || text.TextHash == "" {
		return domain.ErrInvalidInput
	}
	metadata, err := json.Marshal(text.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}
	embedded := text.EmbeddedAt
	if embedded.IsZero() {
		embedded = time.Now()
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		var owner string
		err := tx.GetContext(ctx, &owner, "SELECT document_id FROM processed_texts WHERE text_hash = ?", text.TextHash)
		switch {
		case err == nil && owner != id:
			return domain.ErrAlreadyExists
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("checking processed text: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO processed_texts
				(text_hash, document_id, storage_key, length, language, metadata, chunk_count, processing_ms, embedded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(text_hash) DO UPDATE SET
				storage_key = excluded.storage_key,
				length = excluded.length,
				language = excluded.language,
				metadata = excluded.metadata,
				chunk_count = excluded.chunk_count,
				processing_ms = excluded.processing_ms,
				embedded_at = excluded.embedded_at
		`, text.TextHash, id, text.StorageKey, text.Length, text.Language, string(metadata),
			text.ChunkCount, text.ProcessingTime.Milliseconds(), formatTime(embedded))
		if err != nil {
			return fmt.Errorf("saving processed text: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE documents
			SET status = ?, text_hash = ?, error_message = NULL, processed_at = ?
			WHERE id = ?
		`, string(domain.StatusEmbedded), text.TextHash, formatTime(embedded), id)
		if err != nil {
			return fmt.Errorf("updating document: %w", err)
		}
		return requireOne(res)
	})
}

// MarkDuplicate sets status duplicate and links the canonical document.
func (s *documentStore) MarkDuplicate(ctx context.Context, id, textHash, canonicalID string) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE documents
		SET status = ?, text_hash = ?, canonical_id = ?, error_message = NULL, processed_at = ?
		WHERE id = ?
	`, string(domain.StatusDuplicate), textHash, nullString(canonicalID), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("marking duplicate: %w", err)
	}
	return requireOne(res)
}

// MarkFailed sets status failed with a message.
func (s *documentStore) MarkFailed(ctx context.Context, id, message string) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, error_message = ?, processed_at = ? WHERE id = ?
	`, string(domain.StatusFailed), message, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("marking failed: %w", err)
	}
	return requireOne(res)
}

// ResetDocuments moves documents in the given statuses back to uploaded.
func (s *documentStore) ResetDocuments(ctx context.Context, statuses ...domain.Status) (int, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}

	query, args, err := sqlx.In(`
		UPDATE documents SET status = ?, error_message = NULL, processed_at = NULL
		WHERE status IN (?)
	`, string(domain.StatusUploaded), names)
	if err != nil {
		return 0, fmt.Errorf("building reset query: %w", err)
	}

	res, err := s.store.db.ExecContext(ctx, s.store.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("resetting documents: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("resetting documents: %w", err)
	}
	return int(n), nil
}

type processedTextRow struct {
	TextHash     string `db:"text_hash"`
	DocumentID   string `db:"document_id"`
	StorageKey   string `db:"storage_key"`
	Length       int    `db:"length"`
	Language     string `db:"language"`
	Metadata     string `db:"metadata"`
	ChunkCount   int    `db:"chunk_count"`
	ProcessingMS int64  `db:"processing_ms"`
	EmbeddedAt   string `db:"embedded_at"`
}

// GetProcessedText retrieves processed text by text hash.
func (s *documentStore) GetProcessedText(ctx context.Context, textHash string) (*domain.ProcessedText, error) {
	var row processedTextRow
	err := s.store.db.GetContext(ctx, &row, `
		SELECT text_hash, document_id, storage_key, length, language, metadata,
			chunk_count, processing_ms, embedded_at
		FROM processed_texts WHERE text_hash = ?
	`, textHash)
	if err != nil {
		return nil, mapNotFound(err)
	}

	embedded, err := parseTime(row.EmbeddedAt)
	if err != nil {
		return nil, err
	}
	var metadata domain.Metadata
	if err := json.Unmarshal([]byte(row.Metadata), &metadata); err != nil {
		return nil, fmt.Errorf("unmarshalling metadata: %w", err)
	}
	if metadata == nil {
		metadata = domain.Metadata{}
	}

	return &domain.ProcessedText{
		TextHash:       row.TextHash,
		DocumentID:     row.DocumentID,
		StorageKey:     row.StorageKey,
		Length:         row.Length,
		Language:       row.Language,
		Metadata:       metadata,
		ChunkCount:     row.ChunkCount,
		ProcessingTime: time.Duration(row.ProcessingMS) * time.Millisecond,
		EmbeddedAt:     embedded,
	}, nil
}

// Stats summarises documents by status.
func (s *documentStore) Stats(ctx context.Context) (*domain.SyncStats, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"n"`
		Size   int64  `db:"total_size"`
	}
	err := s.store.db.SelectContext(ctx, &rows, `
		SELECT status, COUNT(*) AS n, COALESCE(SUM(size), 0) AS total_size
		FROM documents GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("querying stats: %w", err)
	}

	stats := &domain.SyncStats{ByStatus: make(map[domain.Status]int)}
	for _, r := range rows {
		stats.ByStatus[domain.Status(r.Status)] = r.Count
		stats.Total += r.Count
		stats.TotalSize += r.Size
	}
	return stats, nil
}

func (s *documentStore) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.store.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func requireOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
