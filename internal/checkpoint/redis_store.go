package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still carries our token, so a run
// whose lock expired cannot release a successor's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore implements Store on Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "dealops:",
	}
}

func (s *RedisStore) cursorKey(job string) string {
	return s.prefix + "checkpoint:" + job
}

func (s *RedisStore) lockKey(job string) string {
	return s.prefix + "lock:" + job
}

func (s *RedisStore) Load(ctx context.Context, job string) (string, error) {
	lastID, err := s.client.Get(ctx, s.cursorKey(job)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load checkpoint %s: %w", job, err)
	}
	return lastID, nil
}

func (s *RedisStore) Save(ctx context.Context, job, lastID string) error {
	if err := s.client.Set(ctx, s.cursorKey(job), lastID, 0).Err(); err != nil {
		return fmt.Errorf("save checkpoint %s: %w", job, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, job string) error {
	if err := s.client.Del(ctx, s.cursorKey(job)).Err(); err != nil {
		return fmt.Errorf("clear checkpoint %s: %w", job, err)
	}
	return nil
}

func (s *RedisStore) Acquire(ctx context.Context, job string, ttl time.Duration) (func(context.Context) error, error) {
	token := uuid.NewString()
	key := s.lockKey(job)
	ok, err := s.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", job, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, s.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("release lock %s: %w", job, err)
		}
		return nil
	}, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
