// Package sqlite provides a SQLite-backed fingerprint store.
// Fingerprints survive process restarts so unchanged documents are
// skipped on later runs.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/notevault/notevault-cli/internal/core/domain"
	"github.com/notevault/notevault-cli/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.FingerprintStore = (*Store)(nil)

// migrations are applied in order; the schema_migrations table records
// which versions have run.
var migrations = []string{
	`CREATE TABLE fingerprints (
		doc_id      TEXT PRIMARY KEY,
		doc_key     TEXT NOT NULL,
		content_sha TEXT NOT NULL,
		chunk_count INTEGER NOT NULL DEFAULT 0,
		ingested_at DATETIME NOT NULL
	)`,
	`CREATE INDEX idx_fingerprints_content_sha ON fingerprints(content_sha)`,
}

// Store is a SQLite-backed implementation of driven.FingerprintStore.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a fingerprint store at the specified data directory.
// If dataDir is empty, defaults to ~/.notevault/data/fingerprints.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".notevault", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "fingerprints.db")

	// WAL mode so a watch process and a manual run can coexist
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		if _, err := s.db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("applying migration %d: %w", i+1, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", i+1); err != nil {
			return fmt.Errorf("recording migration %d: %w", i+1, err)
		}
	}
	return nil
}

// ShouldReingest reports whether the document needs ingestion: true on
// first sight or when the stored hash differs from the current one.
func (s *Store) ShouldReingest(ctx context.Context, docID, contentSHA string) (bool, error) {
	var stored string
	err := s.db.QueryRowContext(ctx,
		"SELECT content_sha FROM fingerprints WHERE doc_id = ?", docID,
	).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying fingerprint: %w", err)
	}
	return stored != contentSHA, nil
}

// RecordIngested upserts the fingerprint for a document.
func (s *Store) RecordIngested(ctx context.Context, fp domain.Fingerprint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fingerprints (doc_id, doc_key, content_sha, chunk_count, ingested_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(doc_id) DO UPDATE SET
			doc_key = excluded.doc_key,
			content_sha = excluded.content_sha,
			chunk_count = excluded.chunk_count,
			ingested_at = excluded.ingested_at
	`, fp.DocID, fp.DocKey, fp.ContentSHA, fp.ChunkCount, fp.IngestedAt)

	if err != nil {
		return fmt.Errorf("saving fingerprint: %w", err)
	}
	return nil
}

// Get retrieves the fingerprint for a document.
func (s *Store) Get(ctx context.Context, docID string) (*domain.Fingerprint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT doc_id, doc_key, content_sha, chunk_count, ingested_at
		FROM fingerprints WHERE doc_id = ?
	`, docID)

	var fp domain.Fingerprint
	var ingestedAt sql.NullTime
	if err := row.Scan(&fp.DocID, &fp.DocKey, &fp.ContentSHA, &fp.ChunkCount, &ingestedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning fingerprint: %w", err)
	}
	if ingestedAt.Valid {
		fp.IngestedAt = ingestedAt.Time
	}
	return &fp, nil
}

// List returns all known fingerprints ordered by document key.
func (s *Store) List(ctx context.Context) ([]domain.Fingerprint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, doc_key, content_sha, chunk_count, ingested_at
		FROM fingerprints ORDER BY doc_key
	`)
	if err != nil {
		return nil, fmt.Errorf("querying fingerprints: %w", err)
	}
	defer rows.Close()

	var out []domain.Fingerprint
	for rows.Next() {
		var fp domain.Fingerprint
		var ingestedAt sql.NullTime
		if err := rows.Scan(&fp.DocID, &fp.DocKey, &fp.ContentSHA, &fp.ChunkCount, &ingestedAt); err != nil {
			return nil, fmt.Errorf("scanning fingerprint: %w", err)
		}
		if ingestedAt.Valid {
			fp.IngestedAt = ingestedAt.Time
		}
		out = append(out, fp)
	}
	return out, rows.Err()
}

// Delete removes the fingerprint for a document.
func (s *Store) Delete(ctx context.Context, docID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM fingerprints WHERE doc_id = ?", docID)
	if err != nil {
		return fmt.Errorf("deleting fingerprint: %w", err)
	}
	return nil
}
