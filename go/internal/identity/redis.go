package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/quizcoletivo/go/internal/models"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/roomcode"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "identity:"

// RedisStore keeps identities in Redis so every API replica resumes the same player.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(sessionID, roomCode string) string {
	return keyPrefix + sessionID + ":" + roomcode.Normalize(roomCode)
}

func (s *RedisStore) Get(ctx context.Context, sessionID, roomCode string) (*models.PlayerIdentity, error) {
	data, err := s.client.Get(ctx, redisKey(sessionID, roomCode)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read identity: %w", err)
	}

	var id models.PlayerIdentity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf("failed to decode identity: %w", err)
	}
	return &id, nil
}

// Set stores id and refreshes its expiry.
func (s *RedisStore) Set(ctx context.Context, sessionID, roomCode string, id models.PlayerIdentity) error {
	data, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(sessionID, roomCode), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store identity: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID, roomCode string) error {
	if err := s.client.Del(ctx, redisKey(sessionID, roomCode)).Err(); err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}
	return nil
}
