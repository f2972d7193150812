package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	valkeylib "github.com/valkey-io/valkey-go"
)

// DefaultConnectTimeout is the maximum time to wait for the initial Valkey ping
const DefaultConnectTimeout = 5 * time.Second

// ValkeyConfig holds the connection settings for ValkeyRepository
type ValkeyConfig struct {
	Address        string
	Password       string
	DB             int
	KeyPrefix      string
	ConnectTimeout time.Duration
}

// ValkeyRepository implements DocumentStore on Valkey. Each document is a
// JSON envelope under <prefix>doc:<category>:<key> with a native key TTL, so
// the server purges entries on its own and DeleteExpired only catches the
// sub-second gap between logical and physical expiry.
type ValkeyRepository struct {
	client valkeylib.Client
	prefix string
}

type valkeyEnvelope struct {
	Value     []byte `json:"value"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
	ExpiresAt int64  `json:"expires_at"`
}

// NewValkeyRepository connects to Valkey and verifies the connection
func NewValkeyRepository(cfg ValkeyConfig) (*ValkeyRepository, error) {
	opts := valkeylib.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	client, err := valkeylib.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = DefaultConnectTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping valkey (timeout: %v): %w", timeout, err)
	}

	prefix := cfg.KeyPrefix
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}

	return &ValkeyRepository{client: client, prefix: prefix + "doc:"}, nil
}

// Close closes the Valkey connection
func (r *ValkeyRepository) Close() error {
	r.client.Close()
	return nil
}

// Ping checks that Valkey is reachable
func (r *ValkeyRepository) Ping(ctx context.Context) error {
	return r.client.Do(ctx, r.client.B().Ping().Build()).Error()
}

func (r *ValkeyRepository) fullKey(category, key string) string {
	return r.prefix + category + ":" + key
}

func (r *ValkeyRepository) splitKey(full string) (category, key string) {
	rest := strings.TrimPrefix(full, r.prefix)
	category, key, _ = strings.Cut(rest, ":")
	return category, key
}

// Upsert stores the document with a key TTL matching its expiry
func (r *ValkeyRepository) Upsert(ctx context.Context, doc *Document) error {
	now := time.Now()
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = now
	}

	createdAt := doc.CreatedAt
	if existing, err := r.Find(ctx, doc.Category, doc.Key); err == nil {
		createdAt = existing.CreatedAt
	}
	if createdAt.IsZero() {
		createdAt = doc.UpdatedAt
	}
	doc.CreatedAt = createdAt

	data, err := encodeEnvelope(doc)
	if err != nil {
		return err
	}

	cmd := r.client.B().Set().
		Key(r.fullKey(doc.Category, doc.Key)).
		Value(string(data)).
		Ex(keyTTL(doc.UpdatedAt, doc.ExpiresAt)).
		Build()

	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

// Find retrieves a document by category and key
func (r *ValkeyRepository) Find(ctx context.Context, category, key string) (*Document, error) {
	cmd := r.client.B().Get().Key(r.fullKey(category, key)).Build()

	data, err := r.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if valkeylib.IsValkeyNil(err) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return decodeEnvelope(category, key, data)
}

// keyTTL is the native key TTL for a document. EX has whole-second
// resolution, so the TTL is rounded up and never below one second; the key
// outlives the logical expiry by less than a second.
func keyTTL(updatedAt, expiresAt time.Time) time.Duration {
	ttl := expiresAt.Sub(updatedAt)
	if ttl < time.Second {
		return time.Second
	}
	if rem := ttl % time.Second; rem != 0 {
		ttl += time.Second - rem
	}
	return ttl
}

func encodeEnvelope(doc *Document) ([]byte, error) {
	data, err := json.Marshal(valkeyEnvelope{
		Value:     doc.Value,
		CreatedAt: doc.CreatedAt.UnixNano(),
		UpdatedAt: doc.UpdatedAt.UnixNano(),
		ExpiresAt: doc.ExpiresAt.UnixNano(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return data, nil
}

func decodeEnvelope(category, key string, data []byte) (*Document, error) {
	var env valkeyEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return &Document{
		Category:  category,
		Key:       key,
		Value:     env.Value,
		CreatedAt: time.Unix(0, env.CreatedAt),
		UpdatedAt: time.Unix(0, env.UpdatedAt),
		ExpiresAt: time.Unix(0, env.ExpiresAt),
	}, nil
}

// scan returns every stored key matching pattern
func (r *ValkeyRepository) scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		cmd := r.client.B().Scan().Cursor(cursor).Match(pattern).Count(100).Build()
		result, err := r.client.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("failed to scan documents: %w", err)
		}

		keys = append(keys, result.Elements...)
		cursor = result.Cursor
		if cursor == 0 {
			break
		}
	}

	return keys, nil
}

// load scans pattern and fetches every matching document
func (r *ValkeyRepository) load(ctx context.Context, pattern string) ([]*Document, error) {
	keys, err := r.scan(ctx, pattern)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := r.client.Do(ctx, r.client.B().Mget().Key(keys...).Build()).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to mget documents: %w", err)
	}

	docs := make([]*Document, 0, len(values))
	for i, val := range values {
		if val == "" {
			// expired between SCAN and MGET
			continue
		}
		category, key := r.splitKey(keys[i])
		doc, err := decodeEnvelope(category, key, []byte(val))
		if err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// List retrieves the newest documents of a category that have not expired
func (r *ValkeyRepository) List(ctx context.Context, category string, notExpiredAt time.Time, limit int) ([]*Document, error) {
	docs, err := r.load(ctx, r.fullKey(category, "*"))
	if err != nil {
		return nil, err
	}

	live := docs[:0]
	for _, doc := range docs {
		if !doc.Expired(notExpiredAt) {
			live = append(live, doc)
		}
	}

	sort.Slice(live, func(i, j int) bool {
		return live[i].CreatedAt.After(live[j].CreatedAt)
	})
	if limit > 0 && len(live) > limit {
		live = live[:limit]
	}
	return live, nil
}

// Delete removes a single document
func (r *ValkeyRepository) Delete(ctx context.Context, category, key string) error {
	cmd := r.client.B().Del().Key(r.fullKey(category, key)).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// DeleteCategory removes every document of a category
func (r *ValkeyRepository) DeleteCategory(ctx context.Context, category string) (int64, error) {
	keys, err := r.scan(ctx, r.fullKey(category, "*"))
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	n, err := r.client.Do(ctx, r.client.B().Del().Key(keys...).Build()).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("failed to delete category: %w", err)
	}
	return n, nil
}

// DeleteExpired removes documents that are logically expired at now
func (r *ValkeyRepository) DeleteExpired(ctx context.Context, now time.Time) (map[string]int64, error) {
	docs, err := r.load(ctx, r.prefix+"*")
	if err != nil {
		return nil, err
	}

	removed := make(map[string]int64)
	var keys []string
	for _, doc := range docs {
		if doc.Expired(now) {
			keys = append(keys, r.fullKey(doc.Category, doc.Key))
			removed[doc.Category]++
		}
	}
	if len(keys) == 0 {
		return removed, nil
	}

	if err := r.client.Do(ctx, r.client.B().Del().Key(keys...).Build()).Error(); err != nil {
		return nil, fmt.Errorf("failed to delete expired documents: %w", err)
	}
	return removed, nil
}

// Stats aggregates per-category counts, sizes and expiry bounds
func (r *ValkeyRepository) Stats(ctx context.Context, now time.Time) (map[string]CategoryStats, error) {
	docs, err := r.load(ctx, r.prefix+"*")
	if err != nil {
		return nil, err
	}

	stats := make(map[string]CategoryStats)
	for _, doc := range docs {
		s := stats[doc.Category]
		s.Count++
		s.SizeBytes += int64(len(doc.Value))
		if doc.Expired(now) {
			s.Expired++
		}
		exp := doc.ExpiresAt
		if s.OldestExpiry == nil || exp.Before(*s.OldestExpiry) {
			s.OldestExpiry = &exp
		}
		if s.NewestExpiry == nil || exp.After(*s.NewestExpiry) {
			s.NewestExpiry = &exp
		}
		stats[doc.Category] = s
	}
	return stats, nil
}
