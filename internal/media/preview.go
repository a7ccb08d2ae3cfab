package media

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// PreviewPrefix is the path under which preview handles are served.
const PreviewPrefix = "/previews/"

type Preview struct {
	ID          string
	ContentType string
	Data        []byte
}

// PreviewStore hands out short-lived URLs for bytes that have not reached the
// media host yet. Every allocated URL must be released exactly once.
type PreviewStore interface {
	Allocate(ctx context.Context, data []byte, contentType string) (string, error)
	// Release is a no-op for URLs that are not local previews.
	Release(ctx context.Context, url string) error
	Open(ctx context.Context, id string) (*Preview, error)
}

func IsLocal(url string) bool {
	return strings.HasPrefix(url, PreviewPrefix)
}

func previewURL(id string) string {
	return PreviewPrefix + id
}

func previewID(url string) (string, bool) {
	if !IsLocal(url) {
		return "", false
	}
	return strings.TrimPrefix(url, PreviewPrefix), true
}

type MemoryPreviews struct {
	mu    sync.Mutex
	items map[string]*Preview
}

func NewMemoryPreviews() *MemoryPreviews {
	return &MemoryPreviews{items: make(map[string]*Preview)}
}

func (m *MemoryPreviews) Allocate(_ context.Context, data []byte, contentType string) (string, error) {
	id := uuid.New().String()
	m.mu.Lock()
	m.items[id] = &Preview{ID: id, ContentType: contentType, Data: data}
	m.mu.Unlock()
	return previewURL(id), nil
}

func (m *MemoryPreviews) Release(_ context.Context, url string) error {
	id, ok := previewID(url)
	if !ok {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[id]; !exists {
		return ErrPreviewNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *MemoryPreviews) Open(_ context.Context, id string) (*Preview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return nil, ErrPreviewNotFound
	}
	return p, nil
}

// Len is the number of live previews.
func (m *MemoryPreviews) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// RedisPreviews keeps preview bytes in Redis so any instance behind the load
// balancer can serve them. The TTL only bounds leaks from crashed processes.
type RedisPreviews struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisPreviews(client *redis.Client, ttl time.Duration) *RedisPreviews {
	return &RedisPreviews{client: client, ttl: ttl}
}

func (r *RedisPreviews) Allocate(ctx context.Context, data []byte, contentType string) (string, error) {
	id := uuid.New().String()
	key := previewKey(id)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "content_type", contentType, "data", data)
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("redis preview allocate failed: %w", err)
	}
	return previewURL(id), nil
}

func (r *RedisPreviews) Release(ctx context.Context, url string) error {
	id, ok := previewID(url)
	if !ok {
		return nil
	}
	n, err := r.client.Del(ctx, previewKey(id)).Result()
	if err != nil {
		return fmt.Errorf("redis preview release failed: %w", err)
	}
	if n == 0 {
		return ErrPreviewNotFound
	}
	return nil
}

func (r *RedisPreviews) Open(ctx context.Context, id string) (*Preview, error) {
	fields, err := r.client.HGetAll(ctx, previewKey(id)).Result()
	if errors.Is(err, redis.Nil) || (err == nil && len(fields) == 0) {
		return nil, ErrPreviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis preview open failed: %w", err)
	}
	return &Preview{
		ID:          id,
		ContentType: fields["content_type"],
		Data:        []byte(fields["data"]),
	}, nil
}

func previewKey(id string) string {
	return fmt.Sprintf("preview:%s", id)
}
