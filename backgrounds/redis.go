package backgrounds

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis connection backing RedisUsage.
type RedisConfig struct {
	Addr      string // e.g. localhost:6379
	Password  string
	DB        int
	KeyPrefix string        // defaults to "reelgen:backgrounds:used:"
	TTL       time.Duration // expiry refreshed on every write; 0 disables
}

// RedisUsage keeps each category's used-set in a Redis SET so rotation
// survives restarts and is shared by every replica.
type RedisUsage struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisUsage connects to Redis and verifies connectivity.
func NewRedisUsage(cfg RedisConfig) (*RedisUsage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return NewRedisUsageWithClient(client, cfg.KeyPrefix, cfg.TTL), nil
}

// NewRedisUsageWithClient wraps an existing client.
func NewRedisUsageWithClient(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisUsage {
	if keyPrefix == "" {
		keyPrefix = "reelgen:backgrounds:used:"
	}
	return &RedisUsage{client: client, prefix: keyPrefix, ttl: ttl}
}

func (r *RedisUsage) key(cat Category) string {
	return r.prefix + string(cat)
}

func (r *RedisUsage) Used(ctx context.Context, cat Category) ([]string, error) {
	refs, err := r.client.SMembers(ctx, r.key(cat)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis SMEMBERS %s: %w", r.key(cat), err)
	}
	return refs, nil
}

func (r *RedisUsage) MarkUsed(ctx context.Context, cat Category, ref string) error {
	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, r.key(cat), ref)
	if r.ttl > 0 {
		pipe.Expire(ctx, r.key(cat), r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis SADD %s: %w", r.key(cat), err)
	}
	return nil
}

func (r *RedisUsage) Clear(ctx context.Context, cat Category) error {
	if err := r.client.Del(ctx, r.key(cat)).Err(); err != nil {
		return fmt.Errorf("redis DEL %s: %w", r.key(cat), err)
	}
	return nil
}

// Close closes the Redis client.
func (r *RedisUsage) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
