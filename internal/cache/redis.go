package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quizit/quizit-service/internal/models"
)

// DefaultUserTTL bounds how long a cached profile is served before the
// store is consulted again.
var DefaultUserTTL = 5 * time.Minute

// UserCache is a read-through cache for user profile lookups. A nil
// *UserCache is valid and disables caching, so callers never need to guard
// for the unconfigured case.
type UserCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// Connect initializes the cache from environment variables:
//   - REDIS_ADDR (empty => caching disabled, returns nil)
//   - REDIS_DB (optional, default 0)
func Connect(ctx context.Context) (*UserCache, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return nil, nil
	}
	dbIdx := getEnvInt("REDIS_DB", 0)

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &UserCache{rdb: rdb, ttl: DefaultUserTTL}, nil
}

// NewUserCache wraps an existing client, mainly for tests.
func NewUserCache(rdb *redis.Client, ttl time.Duration) *UserCache {
	return &UserCache{rdb: rdb, ttl: ttl}
}

// GetUser returns the cached profile for userID, or (nil, nil) on a miss.
func (c *UserCache) GetUser(ctx context.Context, userID string) (*models.User, error) {
	if c == nil {
		return nil, nil
	}
	raw, err := c.rdb.Get(ctx, userKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get user %s: %w", userID, err)
	}
	var u models.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("cache decode user %s: %w", userID, err)
	}
	return &u, nil
}

// PutUser stores a profile with the cache TTL.
func (c *UserCache) PutUser(ctx context.Context, u *models.User) error {
	if c == nil {
		return nil
	}
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("cache encode user %s: %w", u.UserID, err)
	}
	if err := c.rdb.Set(ctx, userKey(u.UserID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache put user %s: %w", u.UserID, err)
	}
	return nil
}

// Close releases the underlying client.
func (c *UserCache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}

func userKey(userID string) string {
	return "user:" + userID
}

// getEnvInt is a helper to parse an environment variable as integer, else a
// default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
