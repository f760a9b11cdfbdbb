package repositories

import (
	"context"

	"github.com/bobbybaxter/poke-api-extension/internal/models"
	"github.com/sirupsen/logrus"
)

// UserCache is the subset of cache.UserCache used by CachedUserRepository.
type UserCache interface {
	Get(ctx context.Context, id string) (*models.User, bool, error)
	Set(ctx context.Context, user *models.User) error
	Invalidate(ctx context.Context, id string) error
}

// CachedUserRepository serves GetUserByID from a cache in front of another
// UserRepository. Cached users carry no PasswordHash; credential checks go
// through GetUserByUsernameOrEmail, which is never cached.
// Cache failures are logged and fall through to the wrapped repository.
type CachedUserRepository struct {
	UserRepository
	cache UserCache
}

// NewCachedUserRepository wraps next with cache
func NewCachedUserRepository(next UserRepository, cache UserCache) *CachedUserRepository {
	return &CachedUserRepository{UserRepository: next, cache: cache}
}

func (r *CachedUserRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok, err := r.cache.Get(ctx, id); err != nil {
		logrus.Warnf("User cache read failed for %s: %v", id, err)
	} else if ok {
		return user, nil
	}

	user, err := r.UserRepository.GetUserByID(ctx, id)
	if err != nil || user == nil {
		return user, err
	}
	if err := r.cache.Set(ctx, user); err != nil {
		logrus.Warnf("User cache write failed for %s: %v", id, err)
	}
	return user, nil
}

func (r *CachedUserRepository) UpdateUser(ctx context.Context, id string, update models.UserUpdate) (*models.User, error) {
	user, err := r.UserRepository.UpdateUser(ctx, id, update)
	r.invalidate(ctx, id)
	return user, err
}

func (r *CachedUserRepository) DeleteUser(ctx context.Context, id string) (bool, error) {
	deleted, err := r.UserRepository.DeleteUser(ctx, id)
	r.invalidate(ctx, id)
	return deleted, err
}

func (r *CachedUserRepository) invalidate(ctx context.Context, id string) {
	if err := r.cache.Invalidate(ctx, id); err != nil {
		logrus.Warnf("User cache invalidation failed for %s: %v", id, err)
	}
}
