package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"flierbuilder/internal/errlog"
)

const (
	keyPrefix    = "session:"
	errorsSuffix = ":errors"
)

// DefaultTTL applies when the store is built with a non-positive ttl.
const DefaultTTL = 7 * 24 * time.Hour

type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Store persists State in Redis. The document, photos and alert live in one
// JSON value written only by requests that changed them; the error log is a
// Redis list that requests append to, so a read-only request that logs an
// error cannot overwrite an edit made in parallel. Every write renews the ttl.
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

// Key returns the Redis key of a session.
func Key(id string) string {
	return keyPrefix + id
}

// ErrorsKey returns the Redis list holding a session's error log.
func ErrorsKey(id string) string {
	return keyPrefix + id + errorsSuffix
}

// Load returns the stored state, or an empty State for an unknown session.
func (s *Store) Load(ctx context.Context, id string) (State, error) {
	var state State
	data, err := s.client.Get(ctx, Key(id)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return State{}, fmt.Errorf("read session %q: %w", id, err)
	default:
		if err := json.Unmarshal(data, &state); err != nil {
			return State{}, fmt.Errorf("decode session %q: %w", id, err)
		}
	}

	lines, err := s.client.LRange(ctx, ErrorsKey(id), 0, -1).Result()
	if err != nil {
		return State{}, fmt.Errorf("read session %q error log: %w", id, err)
	}
	if len(lines) > 0 {
		state.ErrorLog = lines
	}
	return state, nil
}

// Save writes the document, photos and alert of state and renews the ttl.
// The error log is left alone; see AppendErrors.
func (s *Store) Save(ctx context.Context, id string, state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session %q: %w", id, err)
	}
	if err := s.client.Set(ctx, Key(id), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("write session %q: %w", id, err)
	}
	_ = s.client.Expire(ctx, ErrorsKey(id), s.ttl).Err()
	return nil
}

// AppendErrors adds lines to the session's error log, keeping the newest
// errlog.MaxLines entries.
func (s *Store) AppendErrors(ctx context.Context, id string, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	key := ErrorsKey(id)
	values := make([]interface{}, len(lines))
	for i, line := range lines {
		values[i] = line
	}
	if err := s.client.RPush(ctx, key, values...).Err(); err != nil {
		return fmt.Errorf("append session %q error log: %w", id, err)
	}
	if err := s.client.LTrim(ctx, key, -errlog.MaxLines, -1).Err(); err != nil {
		return fmt.Errorf("trim session %q error log: %w", id, err)
	}
	_ = s.client.Expire(ctx, key, s.ttl).Err()
	return nil
}

// ClearErrors empties the session's error log.
func (s *Store) ClearErrors(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, ErrorsKey(id)).Err(); err != nil {
		return fmt.Errorf("clear session %q error log: %w", id, err)
	}
	return nil
}
