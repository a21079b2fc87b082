package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/dakshx9/IconCanvas/internal/collab"
)

const (
	redisKeyPrefix    = "iconcanvas:"
	defaultSessionTTL = 24 * time.Hour
)

// RedisStore keeps snapshots as JSON values with a rolling TTL, so
// abandoned sessions age out on their own. Session lifetime is measured in
// minutes to hours; the TTL just needs to outlive that comfortably.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore wraps an established Redis client. A non-positive ttl
// falls back to 24 hours.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// GetSession returns the stored session, or (nil, nil) when absent or
// expired.
func (s *RedisStore) GetSession(ctx context.Context, code string) (*collab.Session, error) {
	var session collab.Session
	found, err := s.get(ctx, redisKeyPrefix+sessionKey(code), &session)
	if err != nil || !found {
		return nil, err
	}
	return &session, nil
}

// PutSession overwrites the snapshot and refreshes its TTL.
func (s *RedisStore) PutSession(ctx context.Context, session *collab.Session) error {
	return s.put(ctx, redisKeyPrefix+sessionKey(session.Code), session)
}

// DeleteSession removes the session and canvas snapshots.
func (s *RedisStore) DeleteSession(ctx context.Context, code string) error {
	return s.rdb.Del(ctx,
		redisKeyPrefix+sessionKey(code),
		redisKeyPrefix+canvasKey(code)).Err()
}

// GetCanvas returns the stored canvas, or (nil, nil) when absent.
func (s *RedisStore) GetCanvas(ctx context.Context, code string) (*collab.CanvasState, error) {
	var state collab.CanvasState
	found, err := s.get(ctx, redisKeyPrefix+canvasKey(code), &state)
	if err != nil || !found {
		return nil, err
	}
	return &state, nil
}

// PutCanvas overwrites the canvas snapshot and refreshes its TTL.
func (s *RedisStore) PutCanvas(ctx context.Context, code string, state *collab.CanvasState) error {
	return s.put(ctx, redisKeyPrefix+canvasKey(code), state)
}

func (s *RedisStore) get(ctx context.Context, key string, target any) (bool, error) {
	encoded, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(encoded, target); err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisStore) put(ctx context.Context, key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, encoded, s.ttl).Err()
}
