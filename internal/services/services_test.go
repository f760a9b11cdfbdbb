package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bobbybaxter/poke-api-extension/internal/auth"
	"github.com/bobbybaxter/poke-api-extension/internal/config"
	"github.com/bobbybaxter/poke-api-extension/internal/repositories"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// testClock is a settable clock shared by the token service under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	store  *repositories.MemoryStore
	users  repositories.UserRepository
	tokens *TokenService
	auth   AuthService
	user   UserService
	clock  *testClock
}

const testRefreshTTL = 7 * 24 * time.Hour

func newTestEnv(t *testing.T, reuseRevokesAll bool) *testEnv {
	t.Helper()

	store := repositories.NewMemoryStore()
	users := store.Users()
	codec, err := auth.NewTokenCodec([]byte("test-secret"), 15*time.Minute)
	require.NoError(t, err)
	hasher, err := auth.NewPasswordHasher(auth.AlgorithmBcrypt, bcrypt.MinCost)
	require.NoError(t, err)

	clock := &testClock{now: time.Now().UTC()}
	tokens := NewTokenService(users, store.Tokens(), codec, config.TokenConfig{
		RefreshTTL:            testRefreshTTL,
		RefreshReuseRevokeAll: reuseRevokesAll,
	})
	tokens.now = clock.Now

	return &testEnv{
		store:  store,
		users:  users,
		tokens: tokens,
		auth:   NewAuthService(users, tokens, hasher),
		user:   NewUserService(users),
		clock:  clock,
	}
}

func (e *testEnv) register(t *testing.T, username string) *AuthResult {
	t.Helper()
	res, err := e.auth.Register(context.Background(), auth.RegisterRequest{
		Username: username,
		Email:    username + "@pallet.town",
		Password: "pikachu123",
	})
	require.NoError(t, err)
	return res
}

func strPtr(s string) *string { return &s }
