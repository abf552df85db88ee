package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const generationKey = "summary:generation"

// SummaryCache stores computed summaries. Key resolves a logical key to the
// storage key for the current generation; Get and Set take the resolved key.
// Invalidate makes every previously resolved key unreachable.
type SummaryCache interface {
	Key(ctx context.Context, key string) (string, error)
	Get(ctx context.Context, key string) (*Summary, bool, error)
	Set(ctx context.Context, key string, s *Summary) error
	Invalidate(ctx context.Context) error
	Close() error
}

// RedisSummaryCache keeps summaries in Redis. Keys embed a generation counter
// that is bumped after each committed upload, so stale entries are never read
// and simply expire.
type RedisSummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSummaryCache connects to redisURL and verifies the connection.
func NewRedisSummaryCache(ctx context.Context, redisURL string, ttl time.Duration) (*RedisSummaryCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisSummaryCache{client: client, ttl: ttl}, nil
}

// Key prefixes key with the current generation.
func (c *RedisSummaryCache) Key(ctx context.Context, key string) (string, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("failed to read summary generation: %w", err)
	}
	return fmt.Sprintf("summary:v%d:%s", gen, key), nil
}

// Get returns the summary stored under a key obtained from Key.
func (c *RedisSummaryCache) Get(ctx context.Context, key string) (*Summary, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cached summary: %w", err)
	}

	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached summary: %w", err)
	}
	return &s, true, nil
}

// Set stores s under a key obtained from Key for the configured TTL.
func (c *RedisSummaryCache) Set(ctx context.Context, key string, s *Summary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Invalidate bumps the generation counter.
func (c *RedisSummaryCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, generationKey).Err()
}

// Close closes the Redis client.
func (c *RedisSummaryCache) Close() error {
	return c.client.Close()
}

// NoopSummaryCache is used when no REDIS_URL is configured.
type NoopSummaryCache struct{}

func (NoopSummaryCache) Key(_ context.Context, key string) (string, error)   { return key, nil }
func (NoopSummaryCache) Get(context.Context, string) (*Summary, bool, error) { return nil, false, nil }
func (NoopSummaryCache) Set(context.Context, string, *Summary) error         { return nil }
func (NoopSummaryCache) Invalidate(context.Context) error                    { return nil }
func (NoopSummaryCache) Close() error                                        { return nil }
