package repository

import (
	"context"
	"errors"
	"time"
)

// ErrDocumentNotFound is returned when no document exists for a key
var ErrDocumentNotFound = errors.New("document not found")

// Document is a stored value addressed by category and key
type Document struct {
	Category  string
	Key       string
	Value     []byte
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the document is logically expired at now.
func (d *Document) Expired(now time.Time) bool {
	return !now.Before(d.ExpiresAt)
}

// CategoryStats is the raw aggregate of one category's stored documents
type CategoryStats struct {
	Count        int64
	Expired      int64
	SizeBytes    int64
	OldestExpiry *time.Time
	NewestExpiry *time.Time
}

// DocumentStore defines the interface for document persistence with a TTL
// index. Expiry is logical: Find may return documents whose ExpiresAt has
// passed, callers decide based on their own clock.
type DocumentStore interface {
	Upsert(ctx context.Context, doc *Document) error
	Find(ctx context.Context, category, key string) (*Document, error)
	List(ctx context.Context, category string, notExpiredAt time.Time, limit int) ([]*Document, error)
	Delete(ctx context.Context, category, key string) error
	DeleteCategory(ctx context.Context, category string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (map[string]int64, error)
	Stats(ctx context.Context, now time.Time) (map[string]CategoryStats, error)
	Ping(ctx context.Context) error
	Close() error
}
