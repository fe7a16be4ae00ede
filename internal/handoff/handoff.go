// Package handoff passes a document from the editor to the preview page.
package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"flierbuilder/internal/flier"
)

const keyPrefix = "previewData:"

// DefaultTTL applies when the store is built with a non-positive ttl.
const DefaultTTL = 24 * time.Hour

// ErrNotFound means no document was handed off for the session.
var ErrNotFound = errors.New("handoff not found")

type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Store keeps the handed-off document in Redis. Reading does not consume it,
// so reloading the preview shows the same flier.
type Store struct {
	client redisKV
	ttl    time.Duration
}

func NewStore(client redisKV, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, ttl: ttl}
}

// Key returns the Redis key of the session's handoff slot.
func Key(sessionID string) string {
	return keyPrefix + sessionID
}

// Put stores doc for sessionID, replacing any earlier document.
func (s *Store) Put(ctx context.Context, sessionID string, doc flier.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode handoff document: %w", err)
	}
	if err := s.client.Set(ctx, Key(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store handoff document: %w", err)
	}
	return nil
}

// Get returns the document handed off for sessionID.
func (s *Store) Get(ctx context.Context, sessionID string) (flier.Document, error) {
	data, err := s.client.Get(ctx, Key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return flier.Document{}, ErrNotFound
		}
		return flier.Document{}, fmt.Errorf("read handoff document: %w", err)
	}
	doc, err := flier.DecodeBytes(data)
	if err != nil {
		return flier.Document{}, fmt.Errorf("decode handoff document: %w", err)
	}
	return doc, nil
}
