package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteRepository implements DocumentStore using SQLite
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite repository
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := &SQLiteRepository{db: db}
	if err := repo.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return repo, nil
}

// Close closes the database connection
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Ping checks that the database is reachable
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// initSchema initializes the database schema. Timestamps are unix nanoseconds
// so sub-second TTL boundaries survive the round trip.
func (r *SQLiteRepository) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		category TEXT NOT NULL,
		key TEXT NOT NULL,
		value BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL,
		PRIMARY KEY (category, key)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_expires_at ON documents(expires_at);
	CREATE INDEX IF NOT EXISTS idx_documents_category_created ON documents(category, created_at);
	`

	_, err := r.db.Exec(schema)
	return err
}

// Upsert inserts the document or replaces the stored value. The original
// created_at is kept on replace; the last write wins for everything else.
func (r *SQLiteRepository) Upsert(ctx context.Context, doc *Document) error {
	query := `
		INSERT INTO documents (category, key, value, created_at, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (category, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at
	`

	now := time.Now()
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = now
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = doc.UpdatedAt
	}

	_, err := r.db.ExecContext(ctx, query,
		doc.Category,
		doc.Key,
		doc.Value,
		doc.CreatedAt.UnixNano(),
		doc.UpdatedAt.UnixNano(),
		doc.ExpiresAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	return nil
}

// Find retrieves a document by category and key
func (r *SQLiteRepository) Find(ctx context.Context, category, key string) (*Document, error) {
	query := `
		SELECT category, key, value, created_at, updated_at, expires_at
		FROM documents
		WHERE category = ? AND key = ?
	`

	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, category, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return doc, nil
}

// List retrieves the newest documents of a category that have not expired
func (r *SQLiteRepository) List(ctx context.Context, category string, notExpiredAt time.Time, limit int) ([]*Document, error) {
	query := `
		SELECT category, key, value, created_at, updated_at, expires_at
		FROM documents
		WHERE category = ? AND expires_at > ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, category, notExpiredAt.UnixNano(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}

	return docs, nil
}

// Delete removes a single document
func (r *SQLiteRepository) Delete(ctx context.Context, category, key string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE category = ? AND key = ?", category, key)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// DeleteCategory removes every document of a category
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, category string) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE category = ?", category)
	if err != nil {
		return 0, fmt.Errorf("failed to delete category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted documents: %w", err)
	}
	return n, nil
}

// DeleteExpired purges documents whose expiry is at or before now and
// returns the number removed per category
func (r *SQLiteRepository) DeleteExpired(ctx context.Context, now time.Time) (map[string]int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	cutoff := now.UnixNano()

	rows, err := tx.QueryContext(ctx, `
		SELECT category, COUNT(*)
		FROM documents
		WHERE expires_at <= ?
		GROUP BY category
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to count expired documents: %w", err)
	}

	removed := make(map[string]int64)
	for rows.Next() {
		var category string
		var count int64
		if err := rows.Scan(&category, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan expired count: %w", err)
		}
		removed[category] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expired counts: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE expires_at <= ?", cutoff); err != nil {
		return nil, fmt.Errorf("failed to delete expired documents: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return removed, nil
}

// Stats aggregates per-category counts, sizes and expiry bounds
func (r *SQLiteRepository) Stats(ctx context.Context, now time.Time) (map[string]CategoryStats, error) {
	query := `
		SELECT category,
		       COUNT(*),
		       SUM(CASE WHEN expires_at <= ? THEN 1 ELSE 0 END),
		       COALESCE(SUM(LENGTH(value)), 0),
		       MIN(expires_at),
		       MAX(expires_at)
		FROM documents
		GROUP BY category
	`

	rows, err := r.db.QueryContext(ctx, query, now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]CategoryStats)
	for rows.Next() {
		var category string
		var s CategoryStats
		var oldest, newest sql.NullInt64

		if err := rows.Scan(&category, &s.Count, &s.Expired, &s.SizeBytes, &oldest, &newest); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}

		if oldest.Valid {
			t := time.Unix(0, oldest.Int64)
			s.OldestExpiry = &t
		}
		if newest.Valid {
			t := time.Unix(0, newest.Int64)
			s.NewestExpiry = &t
		}
		stats[category] = s
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stats: %w", err)
	}

	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var doc Document
	var createdAt, updatedAt, expiresAt int64

	err := row.Scan(
		&doc.Category,
		&doc.Key,
		&doc.Value,
		&createdAt,
		&updatedAt,
		&expiresAt,
	)
	if err != nil {
		return nil, err
	}

	doc.CreatedAt = time.Unix(0, createdAt)
	doc.UpdatedAt = time.Unix(0, updatedAt)
	doc.ExpiresAt = time.Unix(0, expiresAt)

	return &doc, nil
}
