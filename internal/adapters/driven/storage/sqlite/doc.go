// Package sqlite provides the SQLite-backed document store and sync history.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO, with jmoiron/sqlx for struct scanning. It implements the
// store interfaces through a single database connection:
//
//   - DocumentStore: uploaded documents and their processed text
//   - SyncRunStore: history of sync runs
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory (NNN_name.up.sql). Applied versions are recorded in
// schema_migrations.
//
// # Data Location
//
// By default, the database is stored at ~/.corpus/data/corpus.db
//
// # Thread Safety
//
// All operations are thread-safe. Status transitions are single conditional
// UPDATE statements, so concurrent sync runs cannot claim the same document.
package sqlite
