package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration.
type Config struct {
	Host     string `yaml:"host"     mapstructure:"host"`
	Port     int    `yaml:"port"     mapstructure:"port"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db"       mapstructure:"db"`
}

// RedisCache is the production Cache backend.
type RedisCache struct {
	rdb *redis.Client
}

// NewRedisCache opens a connection and verifies it with a PING before
// returning, so construction fails fast rather than deferring the
// failure to the first real operation.
func NewRedisCache(cfg Config) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{rdb: rdb}, nil
}

func (c *RedisCache) MarkPublished(ctx context.Context, chainID, globalID string) error {
	if err := c.rdb.SAdd(ctx, publishedKey(chainID), globalID).Err(); err != nil {
		return fmt.Errorf("sadd %s: %w", publishedKey(chainID), err)
	}
	return nil
}

func (c *RedisCache) IsOnChain(ctx context.Context, chainID, globalID string) (bool, error) {
	ok, err := c.rdb.SIsMember(ctx, publishedKey(chainID), globalID).Result()
	if err != nil {
		return false, fmt.Errorf("sismember %s: %w", publishedKey(chainID), err)
	}
	return ok, nil
}

// MissingChains is implemented as N independent membership checks,
// the simplest correct strategy; it tolerates concurrent writes from
// sibling engines because each check is its own atomic SISMEMBER.
func (c *RedisCache) MissingChains(ctx context.Context, globalID string, allChainIDs []string) ([]string, error) {
	var missing []string
	for _, chainID := range allChainIDs {
		onChain, err := c.IsOnChain(ctx, chainID, globalID)
		if err != nil {
			return nil, err
		}
		if !onChain {
			missing = append(missing, chainID)
		}
	}
	return missing, nil
}

func (c *RedisCache) MarkNotified(ctx context.Context, globalID string) error {
	if err := c.rdb.SAdd(ctx, notifiedKey, globalID).Err(); err != nil {
		return fmt.Errorf("sadd %s: %w", notifiedKey, err)
	}
	return nil
}

func (c *RedisCache) IsNotified(ctx context.Context, globalID string) (bool, error) {
	ok, err := c.rdb.SIsMember(ctx, notifiedKey, globalID).Result()
	if err != nil {
		return false, fmt.Errorf("sismember %s: %w", notifiedKey, err)
	}
	return ok, nil
}

func (c *RedisCache) Stats(ctx context.Context, chainIDs []string) (Stats, error) {
	stats := Stats{PublishedByChain: make(map[string]int64, len(chainIDs))}
	for _, chainID := range chainIDs {
		n, err := c.rdb.SCard(ctx, publishedKey(chainID)).Result()
		if err != nil {
			return Stats{}, fmt.Errorf("scard %s: %w", publishedKey(chainID), err)
		}
		stats.PublishedByChain[chainID] = n
	}
	n, err := c.rdb.SCard(ctx, notifiedKey).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("scard %s: %w", notifiedKey, err)
	}
	stats.NotifiedCount = n
	return stats, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
