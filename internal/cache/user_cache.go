package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bobbybaxter/poke-api-extension/internal/models"
	"github.com/redis/go-redis/v9"
)

const userKeyPrefix = "user"

// entry is the cached form of a user. The password hash never leaves the database.
type entry struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserCache stores user records in Redis keyed by user id.
type UserCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewUserCache creates a UserCache whose entries expire after ttl
func NewUserCache(client *redis.Client, ttl time.Duration) *UserCache {
	return &UserCache{client: client, ttl: ttl}
}

// Connect parses a redis:// URL and checks the server is reachable.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("error connecting to redis: %w", err)
	}
	return client, nil
}

func (c *UserCache) key(id string) string {
	return userKeyPrefix + ":" + id
}

// Get returns the cached user. ok is false on a cache miss.
func (c *UserCache) Get(ctx context.Context, id string) (*models.User, bool, error) {
	raw, err := c.client.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("error reading cached user: %w", err)
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false, fmt.Errorf("error decoding cached user: %w", err)
	}
	return &models.User{
		ID:        e.ID,
		Username:  e.Username,
		Email:     e.Email,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}, true, nil
}

// Set caches user for the configured TTL
func (c *UserCache) Set(ctx context.Context, user *models.User) error {
	encoded, err := json.Marshal(entry{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("error encoding user: %w", err)
	}
	if err := c.client.Set(ctx, c.key(user.ID), encoded, c.ttl).Err(); err != nil {
		return fmt.Errorf("error caching user: %w", err)
	}
	return nil
}

// Invalidate drops the cached entry for id. Missing keys are not an error.
func (c *UserCache) Invalidate(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
		return fmt.Errorf("error invalidating cached user: %w", err)
	}
	return nil
}
