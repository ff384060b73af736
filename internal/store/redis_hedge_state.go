package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"crypto-agent-core/internal/hedging"
)

const (
	// hedgeKeyPrefix namespaces hedge state keys: hedge:state:{symbol}
	hedgeKeyPrefix = "hedge:state"

	// hedgeStateTTL keeps stale hedge state from surviving forever.
	hedgeStateTTL = 7 * 24 * time.Hour
)

// RedisHedgeStateStore persists hedge state in Redis so a restarted
// process resumes with its actual hedge book. When Redis is unavailable
// it falls back to an in-memory map; hedging continues uninterrupted.
type RedisHedgeStateStore struct {
	client         *redis.Client
	logger         zerolog.Logger
	cache          map[string]*hedging.State
	cacheMu        sync.RWMutex
	redisAvailable atomic.Bool
}

var _ hedging.StateStore = (*RedisHedgeStateStore)(nil)

// NewRedisHedgeStateStore creates a hedge state store. A nil client
// means memory-only operation.
func NewRedisHedgeStateStore(client *redis.Client, logger zerolog.Logger) *RedisHedgeStateStore {
	s := &RedisHedgeStateStore{
		client: client,
		logger: logger.With().Str("component", "hedge_store").Logger(),
		cache:  make(map[string]*hedging.State),
	}

	if client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("Redis unavailable at startup, using in-memory cache")
		} else {
			s.logger.Info().Msg("Redis connected")
			s.redisAvailable.Store(true)
		}
	}
	return s
}

func hedgeKey(symbol string) string {
	return fmt.Sprintf("%s:%s", hedgeKeyPrefix, symbol)
}

// SaveHedgeState writes the state to Redis and the in-memory cache. A
// Redis failure downgrades to cache-only and is not an error.
func (s *RedisHedgeStateStore) SaveHedgeState(ctx context.Context, symbol string, state *hedging.State) error {
	if state == nil {
		return fmt.Errorf("cannot save nil hedge state")
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal hedge state: %w", err)
	}

	s.cacheMu.Lock()
	copied := *state
	s.cache[symbol] = &copied
	s.cacheMu.Unlock()

	if s.client != nil && s.redisAvailable.Load() {
		if err := s.client.Set(ctx, hedgeKey(symbol), data, hedgeStateTTL).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("Redis write failed, falling back to in-memory cache")
			s.redisAvailable.Store(false)
		}
	}
	return nil
}

// LoadHedgeState reads the state for a symbol. A missing state returns
// (nil, nil).
func (s *RedisHedgeStateStore) LoadHedgeState(ctx context.Context, symbol string) (*hedging.State, error) {
	if s.client != nil && s.redisAvailable.Load() {
		data, err := s.client.Get(ctx, hedgeKey(symbol)).Result()
		switch {
		case err == redis.Nil:
			return s.fromCache(symbol), nil
		case err != nil:
			s.logger.Warn().Err(err).Msg("Redis read failed, falling back to in-memory cache")
			s.redisAvailable.Store(false)
			return s.fromCache(symbol), nil
		}

		var state hedging.State
		if err := json.Unmarshal([]byte(data), &state); err != nil {
			return nil, fmt.Errorf("failed to unmarshal hedge state: %w", err)
		}
		return &state, nil
	}
	return s.fromCache(symbol), nil
}

// DeleteHedgeState removes the state for a symbol.
func (s *RedisHedgeStateStore) DeleteHedgeState(ctx context.Context, symbol string) error {
	s.cacheMu.Lock()
	delete(s.cache, symbol)
	s.cacheMu.Unlock()

	if s.client != nil && s.redisAvailable.Load() {
		if err := s.client.Del(ctx, hedgeKey(symbol)).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("Redis delete failed")
			s.redisAvailable.Store(false)
		}
	}
	return nil
}

func (s *RedisHedgeStateStore) fromCache(symbol string) *hedging.State {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	if state, ok := s.cache[symbol]; ok {
		copied := *state
		return &copied
	}
	return nil
}
