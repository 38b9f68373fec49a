package convstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wbarena/arena/internal/contracts"
)

const defaultTTLHours = 24

// RedisStore is a Redis-backed Store for running arenad behind multiple
// replicas, so a match can continue from whichever instance picks it up.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets how long a handle survives with no further turns. Default 24h.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

// WithPrefix sets the Redis key prefix. Default "arena".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// NewRedisStore creates a Redis-backed conversation handle store.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, ttl: defaultTTLHours * time.Hour, prefix: "arena"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) redisKey(matchID string, teamID contracts.TeamID) string {
	return fmt.Sprintf("%s:convstate:%s", s.prefix, key(matchID, teamID))
}

func (s *RedisStore) Load(ctx context.Context, matchID string, teamID contracts.TeamID) (*Handle, error) {
	if matchID == "" || teamID == "" {
		return nil, ErrInvalidID
	}
	data, err := s.client.Get(ctx, s.redisKey(matchID, teamID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("convstate: redis get failed: %w", err)
	}
	var h Handle
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("convstate: corrupt handle: %w", err)
	}
	return &h, nil
}

func (s *RedisStore) Save(ctx context.Context, h *Handle) error {
	if h == nil || h.MatchID == "" || h.TeamID == "" {
		return ErrInvalidID
	}
	h.UpdatedAt = time.Now()
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("convstate: failed to marshal handle: %w", err)
	}
	if err := s.client.Set(ctx, s.redisKey(h.MatchID, h.TeamID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("convstate: redis set failed: %w", err)
	}
	return nil
}
