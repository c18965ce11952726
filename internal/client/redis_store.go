package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "vegas:session:"

// RedisStore keeps sessions in Redis so a bot restarted on another host can
// still find its seat. Entries expire after ttl.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisStore connects to url (redis://[:password@]host:port/db) and checks
// the server is reachable.
func NewRedisStore(ctx context.Context, url string, ttl time.Duration, logger *slog.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	return &RedisStore{client: client, ttl: ttl, logger: logger}, nil
}

func (r *RedisStore) Load(ctx context.Context, key string) (*PersistedSession, error) {
	data, err := r.client.Get(ctx, sessionKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var session PersistedSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func (r *RedisStore) Save(ctx context.Context, key string, session PersistedSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKeyPrefix+key, data, r.ttl).Err(); err != nil {
		return err
	}
	r.logger.Debug("Session saved", "key", key, "room", session.RoomID)
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, sessionKeyPrefix+key).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
