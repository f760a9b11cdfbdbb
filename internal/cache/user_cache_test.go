package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bobbybaxter/poke-api-extension/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestUserCache_SetGet(t *testing.T) {
	_, client := newTestRedis(t)
	c := NewUserCache(client, time.Minute)
	ctx := context.Background()

	user := &models.User{
		ID:           "5a1f1c8e-8a57-4d43-9b4c-8f0c0a9c1a11",
		Username:     "ash",
		Email:        "ash@pallet.town",
		PasswordHash: "$2a$10$secret",
		CreatedAt:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, c.Set(ctx, user))

	got, ok, err := c.Get(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, user.Username, got.Username)
	assert.Equal(t, user.Email, got.Email)
	assert.True(t, user.CreatedAt.Equal(got.CreatedAt))
	assert.Empty(t, got.PasswordHash, "password hash must not be cached")
}

func TestUserCache_Miss(t *testing.T) {
	_, client := newTestRedis(t)
	c := NewUserCache(client, time.Minute)

	got, ok, err := c.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestUserCache_TTLAndInvalidate(t *testing.T) {
	mr, client := newTestRedis(t)
	c := NewUserCache(client, time.Minute)
	ctx := context.Background()

	user := &models.User{ID: "u1", Username: "misty", Email: "misty@cerulean.gym"}
	require.NoError(t, c.Set(ctx, user))
	assert.Equal(t, time.Minute, mr.TTL("user:u1"))

	mr.FastForward(2 * time.Minute)
	_, ok, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok, "entry should expire after the TTL")

	require.NoError(t, c.Set(ctx, user))
	require.NoError(t, c.Invalidate(ctx, "u1"))
	_, ok, err = c.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	// invalidating again is a no-op
	assert.NoError(t, c.Invalidate(ctx, "u1"))
}

func TestUserCache_RedisDown(t *testing.T) {
	mr, client := newTestRedis(t)
	c := NewUserCache(client, time.Minute)
	mr.Close()

	_, ok, err := c.Get(context.Background(), "u1")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	assert.NoError(t, client.Close())

	_, err = Connect(context.Background(), "not a url")
	assert.Error(t, err)
}
