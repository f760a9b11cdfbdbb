package repositories

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bobbybaxter/poke-api-extension/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hashOf returns a deterministic 64-char hex digest for test tokens.
func hashOf(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func strPtr(s string) *string { return &s }

func createTestUser(t *testing.T, users UserRepository, username string) *models.User {
	t.Helper()
	u := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "$2a$10$notarealhash",
	}
	require.NoError(t, users.CreateUser(context.Background(), u))
	require.NotEmpty(t, u.ID)
	return u
}

// runUserRepositorySuite exercises the UserRepository contract.
func runUserRepositorySuite(t *testing.T, users UserRepository) {
	ctx := context.Background()

	t.Run("Create and lookup", func(t *testing.T) {
		ash := createTestUser(t, users, "ash")

		byID, err := users.GetUserByID(ctx, ash.ID)
		require.NoError(t, err)
		require.NotNil(t, byID)
		assert.Equal(t, "ash", byID.Username)
		assert.Equal(t, ash.PasswordHash, byID.PasswordHash)

		byName, err := users.GetUserByUsernameOrEmail(ctx, "ash")
		require.NoError(t, err)
		require.NotNil(t, byName)
		assert.Equal(t, ash.ID, byName.ID)

		byEmail, err := users.GetUserByUsernameOrEmail(ctx, "ash@example.com")
		require.NoError(t, err)
		require.NotNil(t, byEmail)
		assert.Equal(t, ash.ID, byEmail.ID)
	})

	t.Run("Missing user is nil, nil", func(t *testing.T) {
		u, err := users.GetUserByID(ctx, "3b1f4a57-0000-4000-8000-000000000000")
		assert.NoError(t, err)
		assert.Nil(t, u)

		u, err = users.GetUserByID(ctx, "not-a-uuid")
		assert.NoError(t, err)
		assert.Nil(t, u)

		u, err = users.GetUserByUsernameOrEmail(ctx, "gary")
		assert.NoError(t, err)
		assert.Nil(t, u)
	})

	t.Run("Duplicates are rejected", func(t *testing.T) {
		err := users.CreateUser(ctx, &models.User{Username: "ash", Email: "other@example.com", PasswordHash: "x"})
		assert.True(t, errors.Is(err, ErrDuplicate), "got %v", err)

		err = users.CreateUser(ctx, &models.User{Username: "other", Email: "ash@example.com", PasswordHash: "x"})
		assert.True(t, errors.Is(err, ErrDuplicate), "got %v", err)

		err = users.CreateUser(ctx, &models.User{Username: "ASH", Email: "other@example.com", PasswordHash: "x"})
		assert.True(t, errors.Is(err, ErrDuplicate), "got %v", err)
		err = users.CreateUser(ctx, &models.User{Username: "other", Email: "Ash@Example.com", PasswordHash: "x"})
		assert.True(t, errors.Is(err, ErrDuplicate), "got %v", err)
	})

	t.Run("Lookups ignore case", func(t *testing.T) {
		u, err := users.GetUserByUsernameOrEmail(ctx, "ASH@EXAMPLE.COM")
		require.NoError(t, err)
		require.NotNil(t, u)
		assert.Equal(t, "ash", u.Username)

		exists, err := users.CheckUsernameExists(ctx, "Ash", "")
		require.NoError(t, err)
		assert.True(t, exists)
		exists, err = users.CheckEmailExists(ctx, "ASH@example.com", "")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("Update and existence checks", func(t *testing.T) {
		brock := createTestUser(t, users, "brock")

		exists, err := users.CheckUsernameExists(ctx, "ash", brock.ID)
		require.NoError(t, err)
		assert.True(t, exists)
		exists, err = users.CheckUsernameExists(ctx, "brock", brock.ID)
		require.NoError(t, err)
		assert.False(t, exists, "a user's own name does not count")
		exists, err = users.CheckEmailExists(ctx, "ash@example.com", "")
		require.NoError(t, err)
		assert.True(t, exists)

		updated, err := users.UpdateUser(ctx, brock.ID, models.UserUpdate{Email: strPtr("brock@pewter.gym")})
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Equal(t, "brock", updated.Username)
		assert.Equal(t, "brock@pewter.gym", updated.Email)

		_, err = users.UpdateUser(ctx, brock.ID, models.UserUpdate{Username: strPtr("ash")})
		assert.True(t, errors.Is(err, ErrDuplicate), "got %v", err)

		missing, err := users.UpdateUser(ctx, "3b1f4a57-0000-4000-8000-000000000000", models.UserUpdate{Username: strPtr("nobody")})
		assert.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("Delete", func(t *testing.T) {
		misty := createTestUser(t, users, "misty")

		deleted, err := users.DeleteUser(ctx, misty.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = users.DeleteUser(ctx, misty.ID)
		require.NoError(t, err)
		assert.False(t, deleted)
	})
}

// runRefreshTokenRepositorySuite exercises the RefreshTokenRepository contract.
func runRefreshTokenRepositorySuite(t *testing.T, users UserRepository, tokens RefreshTokenRepository) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	owner := createTestUser(t, users, "tokenowner")
	other := createTestUser(t, users, "tokenother")

	t.Run("Create and find", func(t *testing.T) {
		rt := models.NewRefreshToken(owner.ID, hashOf("find"), now.Add(time.Hour), now)
		require.NoError(t, tokens.CreateToken(ctx, rt))

		found, err := tokens.FindActiveByHash(ctx, hashOf("find"))
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, rt.ID, found.ID)
		assert.Equal(t, owner.ID, found.UserID)
		assert.False(t, found.Revoked)

		found, err = tokens.FindActiveByHashAndOwner(ctx, hashOf("find"), other.ID)
		require.NoError(t, err)
		assert.Nil(t, found, "lookup is scoped to the owner")

		found, err = tokens.FindActiveByHashAndOwner(ctx, hashOf("find"), owner.ID)
		require.NoError(t, err)
		assert.NotNil(t, found)
	})

	t.Run("Expired tokens are still found", func(t *testing.T) {
		rt := models.NewRefreshToken(owner.ID, hashOf("expired"), now.Add(-time.Hour), now.Add(-2*time.Hour))
		require.NoError(t, tokens.CreateToken(ctx, rt))

		found, err := tokens.FindActiveByHash(ctx, hashOf("expired"))
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.True(t, found.IsExpired(now))
	})

	t.Run("Duplicate hash is rejected", func(t *testing.T) {
		rt := models.NewRefreshToken(owner.ID, hashOf("find"), now.Add(time.Hour), now)
		err := tokens.CreateToken(ctx, rt)
		assert.True(t, errors.Is(err, ErrDuplicate), "got %v", err)
	})

	t.Run("Revoke is idempotent", func(t *testing.T) {
		rt := models.NewRefreshToken(owner.ID, hashOf("revoke"), now.Add(time.Hour), now)
		require.NoError(t, tokens.CreateToken(ctx, rt))

		n, err := tokens.RevokeByHash(ctx, hashOf("revoke"))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		n, err = tokens.RevokeByHash(ctx, hashOf("revoke"))
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
		n, err = tokens.RevokeByHash(ctx, hashOf("never-issued"))
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)

		active, err := tokens.FindActiveByHash(ctx, hashOf("revoke"))
		require.NoError(t, err)
		assert.Nil(t, active)

		anyState, err := tokens.FindByHash(ctx, hashOf("revoke"))
		require.NoError(t, err)
		require.NotNil(t, anyState)
		assert.True(t, anyState.Revoked)

		require.NoError(t, tokens.MarkRevoked(ctx, rt.ID))
	})

	t.Run("Rolled back transaction leaves no trace", func(t *testing.T) {
		rt := models.NewRefreshToken(owner.ID, hashOf("rollback"), now.Add(time.Hour), now)
		require.NoError(t, tokens.CreateToken(ctx, rt))
		boom := errors.New("boom")

		err := tokens.WithinTx(ctx, func(tx RefreshTokenRepository) error {
			found, err := tx.FindActiveByHashAndOwner(ctx, hashOf("rollback"), owner.ID)
			require.NoError(t, err)
			require.NotNil(t, found)
			require.NoError(t, tx.MarkRevoked(ctx, found.ID))
			require.NoError(t, tx.CreateToken(ctx, models.NewRefreshToken(owner.ID, hashOf("rollback-new"), now.Add(time.Hour), now)))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		still, err := tokens.FindActiveByHash(ctx, hashOf("rollback"))
		require.NoError(t, err)
		assert.NotNil(t, still, "revocation must be rolled back")
		created, err := tokens.FindByHash(ctx, hashOf("rollback-new"))
		require.NoError(t, err)
		assert.Nil(t, created, "insert must be rolled back")
	})

	t.Run("Committed transaction is visible", func(t *testing.T) {
		rt := models.NewRefreshToken(owner.ID, hashOf("commit"), now.Add(time.Hour), now)
		require.NoError(t, tokens.CreateToken(ctx, rt))

		err := tokens.WithinTx(ctx, func(tx RefreshTokenRepository) error {
			if err := tx.MarkRevoked(ctx, rt.ID); err != nil {
				return err
			}
			return tx.CreateToken(ctx, models.NewRefreshToken(owner.ID, hashOf("commit-new"), now.Add(time.Hour), now))
		})
		require.NoError(t, err)

		old, err := tokens.FindActiveByHash(ctx, hashOf("commit"))
		require.NoError(t, err)
		assert.Nil(t, old)
		created, err := tokens.FindActiveByHash(ctx, hashOf("commit-new"))
		require.NoError(t, err)
		assert.NotNil(t, created)
	})

	t.Run("Concurrent transactions revoke once", func(t *testing.T) {
		rt := models.NewRefreshToken(owner.ID, hashOf("race"), now.Add(time.Hour), now)
		require.NoError(t, tokens.CreateToken(ctx, rt))

		const workers = 8
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := tokens.WithinTx(ctx, func(tx RefreshTokenRepository) error {
					found, err := tx.FindActiveByHashAndOwner(ctx, hashOf("race"), owner.ID)
					if err != nil || found == nil {
						return err
					}
					if err := tx.MarkRevoked(ctx, found.ID); err != nil {
						return err
					}
					mu.Lock()
					winners++
					mu.Unlock()
					return tx.CreateToken(ctx, models.NewRefreshToken(owner.ID, hashOf(fmt.Sprintf("race-%d", i)), now.Add(time.Hour), now))
				})
				if err != nil && !errors.Is(err, ErrTxConflict) {
					t.Errorf("unexpected transaction error: %v", err)
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 1, winners)
	})

	t.Run("Revoke all and delete expired", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			require.NoError(t, tokens.CreateToken(ctx, models.NewRefreshToken(other.ID, hashOf(fmt.Sprintf("other-%d", i)), now.Add(time.Hour), now)))
		}
		n, err := tokens.RevokeAllUserTokens(ctx, other.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		require.NoError(t, tokens.CreateToken(ctx, models.NewRefreshToken(other.ID, hashOf("ancient"), now.Add(-72*time.Hour), now.Add(-80*time.Hour))))
		deleted, err := tokens.DeleteExpired(ctx, now.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)

		gone, err := tokens.FindByHash(ctx, hashOf("ancient"))
		require.NoError(t, err)
		assert.Nil(t, gone)
		kept, err := tokens.FindByHash(ctx, hashOf("other-0"))
		require.NoError(t, err)
		assert.NotNil(t, kept, "revoked but unexpired tokens are kept")
	})

	t.Run("Deleting a user removes their tokens", func(t *testing.T) {
		brief := createTestUser(t, users, "briefuser")
		require.NoError(t, tokens.CreateToken(ctx, models.NewRefreshToken(brief.ID, hashOf("cascade"), now.Add(time.Hour), now)))

		deleted, err := users.DeleteUser(ctx, brief.ID)
		require.NoError(t, err)
		require.True(t, deleted)

		gone, err := tokens.FindByHash(ctx, hashOf("cascade"))
		require.NoError(t, err)
		assert.Nil(t, gone)
	})
}
