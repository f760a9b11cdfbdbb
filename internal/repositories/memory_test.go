package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bobbybaxter/poke-api-extension/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUserRepository(t *testing.T) {
	store := NewMemoryStore()
	runUserRepositorySuite(t, store.Users())
}

func TestMemoryRefreshTokenRepository(t *testing.T) {
	store := NewMemoryStore()
	runRefreshTokenRepositorySuite(t, store.Users(), store.Tokens())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	u := createTestUser(t, store.Users(), "gary")

	got, err := store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	got.Username = "mutated"

	again, err := store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "gary", again.Username)
}

func TestMemoryStore_PanicInTxDiscardsWrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	u := createTestUser(t, store.Users(), "gary")
	now := time.Now()

	assert.Panics(t, func() {
		_ = store.Tokens().WithinTx(ctx, func(tx RefreshTokenRepository) error {
			_ = tx.CreateToken(ctx, models.NewRefreshToken(u.ID, hashOf("panic"), now.Add(time.Hour), now))
			panic("boom")
		})
	})

	found, err := store.Tokens().FindByHash(ctx, hashOf("panic"))
	require.NoError(t, err)
	assert.Nil(t, found)

	// the store is still usable after the panic
	require.NoError(t, store.Tokens().WithinTx(ctx, func(RefreshTokenRepository) error { return nil }))
}

func TestMemoryStore_TokenForUnknownUser(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()

	err := store.Tokens().CreateToken(context.Background(), models.NewRefreshToken("nobody", hashOf("x"), now.Add(time.Hour), now))
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrDuplicate))
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := store.Tokens().WithinTx(ctx, func(RefreshTokenRepository) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
