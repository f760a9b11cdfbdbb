package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bobbybaxter/poke-api-extension/internal/auth"
	"github.com/bobbybaxter/poke-api-extension/internal/config"
	"github.com/bobbybaxter/poke-api-extension/internal/models"
	"github.com/bobbybaxter/poke-api-extension/internal/repositories"
	"github.com/sirupsen/logrus"
)

// TokenService manages the refresh token lifecycle and signs access tokens.
//
// Expected rejections (unknown, revoked or expired refresh tokens) are
// reported through the ok result. Returned errors are infrastructure failures.
type TokenService struct {
	users           auth.UserLookup
	tokens          repositories.RefreshTokenRepository
	codec           *auth.TokenCodec
	refreshTTL      time.Duration
	reuseRevokesAll bool
	now             func() time.Time
}

// NewTokenService creates a TokenService.
func NewTokenService(users auth.UserLookup, tokens repositories.RefreshTokenRepository, codec *auth.TokenCodec, cfg config.TokenConfig) *TokenService {
	return &TokenService{
		users:           users,
		tokens:          tokens,
		codec:           codec,
		refreshTTL:      cfg.RefreshTTL,
		reuseRevokesAll: cfg.RefreshReuseRevokeAll,
		now:             time.Now,
	}
}

// IssueRefreshToken stores a new refresh token for userID and returns its raw secret.
func (s *TokenService) IssueRefreshToken(ctx context.Context, userID string) (string, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return "", ErrUserNotFound
	}

	raw, record, err := s.newRecord(userID)
	if err != nil {
		return "", err
	}
	if err := s.tokens.CreateToken(ctx, record); err != nil {
		return "", fmt.Errorf("failed to save refresh token: %w", err)
	}

	logrus.WithFields(logrus.Fields{"user_id": userID, "token_id": record.ID}).Debug("Issued refresh token")
	return raw, nil
}

// RotateRefreshToken revokes the presented token and issues its replacement
// in one transaction. ok is false when the token is not an active, unexpired
// token of userID, including when a concurrent rotation got there first.
func (s *TokenService) RotateRefreshToken(ctx context.Context, raw, userID string) (string, bool, error) {
	hash := auth.HashSecret(raw)
	now := s.now()

	var (
		newRaw string
		found  bool
	)
	err := s.tokens.WithinTx(ctx, func(tx repositories.RefreshTokenRepository) error {
		current, err := tx.FindActiveByHashAndOwner(ctx, hash, userID)
		if err != nil {
			return err
		}
		if current == nil {
			return nil
		}
		found = true
		if current.IsExpired(now) {
			return nil
		}

		if err := tx.MarkRevoked(ctx, current.ID); err != nil {
			return err
		}
		secret, next, err := s.newRecordAt(userID, now)
		if err != nil {
			return err
		}
		if err := tx.CreateToken(ctx, next); err != nil {
			return err
		}
		newRaw = secret
		return nil
	})
	if errors.Is(err, repositories.ErrTxConflict) {
		logrus.WithField("token_hash", hashPrefix(hash)).Warn("Refresh token rotation lost a concurrent race")
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	if !found {
		s.detectReuse(ctx, hash)
	}
	if newRaw == "" {
		return "", false, nil
	}
	return newRaw, true, nil
}

// RevokeRefreshToken revokes the token identified by a raw secret or by its
// stored hash. Unknown and already revoked tokens are ignored.
func (s *TokenService) RevokeRefreshToken(ctx context.Context, rawOrHash string) error {
	hash := rawOrHash
	if !auth.IsTokenHash(rawOrHash) {
		hash = auth.HashSecret(rawOrHash)
	}
	n, err := s.tokens.RevokeByHash(ctx, hash)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	logrus.WithFields(logrus.Fields{"token_hash": hashPrefix(hash), "revoked": n}).Debug("Revoked refresh token")
	return nil
}

// UserIDFromRefresh resolves the owner of an active, unexpired refresh token.
func (s *TokenService) UserIDFromRefresh(ctx context.Context, raw string) (string, bool, error) {
	hash := auth.HashSecret(raw)
	record, err := s.tokens.FindActiveByHash(ctx, hash)
	if err != nil {
		return "", false, fmt.Errorf("failed to look up refresh token: %w", err)
	}
	if record == nil {
		s.detectReuse(ctx, hash)
		return "", false, nil
	}
	if record.IsExpired(s.now()) {
		return "", false, nil
	}
	return record.UserID, true, nil
}

// SignAccessToken returns a new access token for user.
func (s *TokenService) SignAccessToken(user *models.User) (string, error) {
	return s.codec.Sign(user.ID, user.Username)
}

// detectReuse logs a revoked token being presented again and, when
// configured, revokes every token of its owner.
func (s *TokenService) detectReuse(ctx context.Context, hash string) {
	record, err := s.tokens.FindByHash(ctx, hash)
	if err != nil {
		logrus.Warnf("TokenService.detectReuse: lookup failed: %v", err)
		return
	}
	if record == nil || !record.Revoked {
		return
	}

	entry := logrus.WithFields(logrus.Fields{
		"user_id":    record.UserID,
		"token_id":   record.ID,
		"token_hash": hashPrefix(hash),
	})
	entry.Warn("Revoked refresh token presented again, possible token theft")

	if !s.reuseRevokesAll {
		return
	}
	n, err := s.tokens.RevokeAllUserTokens(ctx, record.UserID)
	if err != nil {
		entry.Errorf("Failed to revoke tokens after reuse: %v", err)
		return
	}
	entry.WithField("revoked", n).Warn("Revoked all refresh tokens of user after reuse")
}

func (s *TokenService) newRecord(userID string) (string, *models.RefreshToken, error) {
	return s.newRecordAt(userID, s.now())
}

func (s *TokenService) newRecordAt(userID string, now time.Time) (string, *models.RefreshToken, error) {
	raw, err := auth.NewRefreshSecret()
	if err != nil {
		return "", nil, err
	}
	return raw, models.NewRefreshToken(userID, auth.HashSecret(raw), now.Add(s.refreshTTL), now), nil
}

// hashPrefix shortens a token hash for logs.
func hashPrefix(hash string) string {
	if len(hash) < 8 {
		return hash
	}
	return hash[:8]
}
