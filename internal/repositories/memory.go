package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bobbybaxter/poke-api-extension/internal/models"
	"github.com/google/uuid"
)

// MemoryStore keeps users and refresh tokens in process memory. It backs
// STORAGE_DRIVER=memory and the service and handler tests.
//
// Writes are serialized through txMu. A transaction holds txMu for its whole
// duration and works on a copy of the token table, which replaces the live
// table on commit.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	users  map[string]models.User
	tokens map[string]models.RefreshToken
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[string]models.User),
		tokens: make(map[string]models.RefreshToken),
	}
}

// Users returns a UserRepository view of the store
func (s *MemoryStore) Users() *MemoryUserRepository {
	return &MemoryUserRepository{store: s}
}

// Tokens returns a RefreshTokenRepository view of the store
func (s *MemoryStore) Tokens() *MemoryRefreshTokenRepository {
	return &MemoryRefreshTokenRepository{store: s}
}

func (s *MemoryStore) read(fn func()) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn()
}

func (s *MemoryStore) write(fn func()) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// MemoryUserRepository implements UserRepository on a MemoryStore
type MemoryUserRepository struct {
	store *MemoryStore
}

func (r *MemoryUserRepository) CreateUser(_ context.Context, user *models.User) error {
	if user.Username == "" || user.Email == "" {
		return errors.New("username and email are required")
	}
	var err error
	r.store.write(func() {
		if r.takenLocked("", user.Username, user.Email) {
			err = fmt.Errorf("error creating user: %w", ErrDuplicate)
			return
		}
		user.ID = uuid.NewString()
		user.CreatedAt = time.Now().UTC()
		user.UpdatedAt = user.CreatedAt
		r.store.users[user.ID] = *user
	})
	return err
}

func (r *MemoryUserRepository) GetUserByID(_ context.Context, id string) (*models.User, error) {
	var found *models.User
	r.store.read(func() {
		if u, ok := r.store.users[id]; ok {
			found = &u
		}
	})
	return found, nil
}

func (r *MemoryUserRepository) GetUserByUsernameOrEmail(_ context.Context, identifier string) (*models.User, error) {
	var found *models.User
	r.store.read(func() {
		for _, u := range r.store.users {
			if strings.EqualFold(u.Username, identifier) {
				u := u
				found = &u
				return
			}
			if strings.EqualFold(u.Email, identifier) && found == nil {
				u := u
				found = &u
			}
		}
	})
	return found, nil
}

func (r *MemoryUserRepository) UpdateUser(_ context.Context, id string, update models.UserUpdate) (*models.User, error) {
	var (
		updated *models.User
		err     error
	)
	r.store.write(func() {
		u, ok := r.store.users[id]
		if !ok {
			return
		}
		if update.IsEmpty() {
			updated = &u
			return
		}
		username, email := "", ""
		if update.Username != nil {
			username = *update.Username
		}
		if update.Email != nil {
			email = *update.Email
		}
		if r.takenLocked(id, username, email) {
			err = fmt.Errorf("error updating user: %w", ErrDuplicate)
			return
		}
		if update.Username != nil {
			u.Username = username
		}
		if update.Email != nil {
			u.Email = email
		}
		u.UpdatedAt = time.Now().UTC()
		r.store.users[id] = u
		updated = &u
	})
	return updated, err
}

// DeleteUser removes the user together with their refresh tokens.
func (r *MemoryUserRepository) DeleteUser(_ context.Context, id string) (bool, error) {
	var deleted bool
	r.store.write(func() {
		if _, ok := r.store.users[id]; !ok {
			return
		}
		delete(r.store.users, id)
		for tokenID, t := range r.store.tokens {
			if t.UserID == id {
				delete(r.store.tokens, tokenID)
			}
		}
		deleted = true
	})
	return deleted, nil
}

func (r *MemoryUserRepository) CheckUsernameExists(_ context.Context, username string, excludeUserID string) (bool, error) {
	var exists bool
	r.store.read(func() {
		exists = r.takenLocked(excludeUserID, username, "")
	})
	return exists, nil
}

func (r *MemoryUserRepository) CheckEmailExists(_ context.Context, email string, excludeUserID string) (bool, error) {
	var exists bool
	r.store.read(func() {
		exists = r.takenLocked(excludeUserID, "", email)
	})
	return exists, nil
}

// takenLocked reports whether another user already holds username or email,
// compared case-insensitively.
// Empty values are ignored. Caller holds mu.
func (r *MemoryUserRepository) takenLocked(excludeUserID, username, email string) bool {
	for id, u := range r.store.users {
		if id == excludeUserID {
			continue
		}
		if (username != "" && strings.EqualFold(u.Username, username)) || (email != "" && strings.EqualFold(u.Email, email)) {
			return true
		}
	}
	return false
}

// MemoryRefreshTokenRepository implements RefreshTokenRepository on a MemoryStore
type MemoryRefreshTokenRepository struct {
	store *MemoryStore

	// set only on the view handed to a WithinTx callback
	inTx     bool
	txTokens map[string]models.RefreshToken
}

func (r *MemoryRefreshTokenRepository) view(write bool, fn func(tokens map[string]models.RefreshToken)) {
	if r.inTx {
		fn(r.txTokens)
		return
	}
	if write {
		r.store.write(func() { fn(r.store.tokens) })
		return
	}
	r.store.read(func() { fn(r.store.tokens) })
}

func (r *MemoryRefreshTokenRepository) CreateToken(_ context.Context, token *models.RefreshToken) error {
	var err error
	r.view(true, func(tokens map[string]models.RefreshToken) {
		for _, t := range tokens {
			if t.ID == token.ID || t.TokenHash == token.TokenHash {
				err = fmt.Errorf("error creating refresh token: %w", ErrDuplicate)
				return
			}
		}
		if _, ok := r.store.users[token.UserID]; !ok {
			err = fmt.Errorf("error creating refresh token: unknown user %s", token.UserID)
			return
		}
		tokens[token.ID] = *token
	})
	return err
}

func (r *MemoryRefreshTokenRepository) FindActiveByHash(_ context.Context, tokenHash string) (*models.RefreshToken, error) {
	return r.find(func(t models.RefreshToken) bool {
		return t.TokenHash == tokenHash && !t.Revoked
	}), nil
}

func (r *MemoryRefreshTokenRepository) FindActiveByHashAndOwner(_ context.Context, tokenHash, userID string) (*models.RefreshToken, error) {
	return r.find(func(t models.RefreshToken) bool {
		return t.TokenHash == tokenHash && t.UserID == userID && !t.Revoked
	}), nil
}

func (r *MemoryRefreshTokenRepository) FindByHash(_ context.Context, tokenHash string) (*models.RefreshToken, error) {
	return r.find(func(t models.RefreshToken) bool {
		return t.TokenHash == tokenHash
	}), nil
}

func (r *MemoryRefreshTokenRepository) find(match func(models.RefreshToken) bool) *models.RefreshToken {
	var found *models.RefreshToken
	r.view(false, func(tokens map[string]models.RefreshToken) {
		for _, t := range tokens {
			if match(t) {
				t := t
				found = &t
				return
			}
		}
	})
	return found
}

func (r *MemoryRefreshTokenRepository) MarkRevoked(_ context.Context, id string) error {
	r.view(true, func(tokens map[string]models.RefreshToken) {
		if t, ok := tokens[id]; ok {
			t.Revoked = true
			tokens[id] = t
		}
	})
	return nil
}

func (r *MemoryRefreshTokenRepository) RevokeByHash(_ context.Context, tokenHash string) (int64, error) {
	return r.update(func(t *models.RefreshToken) bool {
		if t.TokenHash != tokenHash || t.Revoked {
			return false
		}
		t.Revoked = true
		return true
	}), nil
}

func (r *MemoryRefreshTokenRepository) RevokeAllUserTokens(_ context.Context, userID string) (int64, error) {
	return r.update(func(t *models.RefreshToken) bool {
		if t.UserID != userID || t.Revoked {
			return false
		}
		t.Revoked = true
		return true
	}), nil
}

func (r *MemoryRefreshTokenRepository) update(apply func(*models.RefreshToken) bool) int64 {
	var n int64
	r.view(true, func(tokens map[string]models.RefreshToken) {
		for id, t := range tokens {
			if apply(&t) {
				tokens[id] = t
				n++
			}
		}
	})
	return n
}

func (r *MemoryRefreshTokenRepository) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	var n int64
	r.view(true, func(tokens map[string]models.RefreshToken) {
		for id, t := range tokens {
			if t.ExpiresAt.Before(before) {
				delete(tokens, id)
				n++
			}
		}
	})
	return n, nil
}

// WithinTx runs fn against a private copy of the token table and publishes
// the copy only when fn returns nil. Transactions never overlap.
func (r *MemoryRefreshTokenRepository) WithinTx(ctx context.Context, fn func(RefreshTokenRepository) error) error {
	if r.inTx {
		return fn(r)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.store.txMu.Lock()
	defer r.store.txMu.Unlock()

	r.store.mu.RLock()
	snapshot := make(map[string]models.RefreshToken, len(r.store.tokens))
	for id, t := range r.store.tokens {
		snapshot[id] = t
	}
	r.store.mu.RUnlock()

	txRepo := &MemoryRefreshTokenRepository{store: r.store, inTx: true, txTokens: snapshot}
	if err := fn(txRepo); err != nil {
		return err
	}

	r.store.mu.Lock()
	r.store.tokens = snapshot
	r.store.mu.Unlock()
	return nil
}
