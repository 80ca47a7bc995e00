package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const stateKeyPrefix = "conv_state:"

// RedisStateStore persists dialogue state in Redis with a TTL, so an
// abandoned conversation eventually evaporates on its own.
type RedisStateStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisStateStore(redisClient *redis.Client, ttl time.Duration) *RedisStateStore {
	if redisClient == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStateStore{redis: redisClient, ttl: ttl}
}

func (s *RedisStateStore) Get(ctx context.Context, clientID string) (State, bool, error) {
	raw, err := s.redis.Get(ctx, stateKeyPrefix+clientID).Result()
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("conversation: get state: %w", err)
	}

	var state State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return State{}, false, fmt.Errorf("conversation: decode state: %w", err)
	}
	return state, true, nil
}

func (s *RedisStateStore) Put(ctx context.Context, state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("conversation: encode state: %w", err)
	}
	if err := s.redis.Set(ctx, stateKeyPrefix+state.ClientID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("conversation: put state: %w", err)
	}
	return nil
}

func (s *RedisStateStore) Delete(ctx context.Context, clientID string) error {
	if err := s.redis.Del(ctx, stateKeyPrefix+clientID).Err(); err != nil {
		return fmt.Errorf("conversation: delete state: %w", err)
	}
	return nil
}

var _ StateStore = (*RedisStateStore)(nil)
