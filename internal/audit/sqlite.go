package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout sorts lexically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore keeps audit records in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the database at path and runs migrations.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS audit_records (
    id             TEXT PRIMARY KEY,
    document_id    TEXT,
    original_hash  TEXT NOT NULL,
    final_hash     TEXT NOT NULL,
    algorithm      TEXT NOT NULL,
    field_count    INTEGER NOT NULL DEFAULT 0,
    signed_uri     TEXT,
    created_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_final_hash ON audit_records(final_hash);
`
	_, err := s.db.Exec(ddl)
	return err
}

func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO audit_records (id, document_id, original_hash, final_hash, algorithm, field_count, signed_uri, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.DocumentID, rec.OriginalHash, rec.FinalHash, rec.Algorithm, rec.FieldCount, rec.SignedURI,
		rec.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// FindByFinalHash returns the most recent record for finalHash.
func (s *SQLiteStore) FindByFinalHash(ctx context.Context, finalHash string) (*Record, error) {
	var (
		rec       Record
		docID     sql.NullString
		signedURI sql.NullString
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, document_id, original_hash, final_hash, algorithm, field_count, signed_uri, created_at
FROM audit_records WHERE final_hash = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, finalHash).
		Scan(&rec.ID, &docID, &rec.OriginalHash, &rec.FinalHash, &rec.Algorithm, &rec.FieldCount, &signedURI, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query audit record: %w", err)
	}
	rec.DocumentID = docID.String
	rec.SignedURI = signedURI.String
	if rec.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	return &rec, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
