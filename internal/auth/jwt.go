package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken wraps every access token verification failure.
	ErrInvalidToken = errors.New("invalid access token")
	// ErrMissingSigningKey is returned when the codec is built without a secret.
	ErrMissingSigningKey = errors.New("access token signing key is empty")
)

// AccessClaims defines the JWT claims of an access token. The user id travels in sub.
type AccessClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies HS256 access tokens.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// NewTokenCodec creates a codec for tokens valid for ttl.
func NewTokenCodec(secret []byte, ttl time.Duration) (*TokenCodec, error) {
	return newTokenCodec(secret, ttl, time.Now)
}

func newTokenCodec(secret []byte, ttl time.Duration, now func() time.Time) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSigningKey
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("access token ttl must be positive, got %s", ttl)
	}
	return &TokenCodec{
		secret: secret,
		ttl:    ttl,
		now:    now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithTimeFunc(now),
		),
	}, nil
}

// TTL returns how long signed tokens stay valid
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Sign generates a new access token for the given user
func (c *TokenCodec) Sign(subjectID, username string) (string, error) {
	issuedAt := c.now()
	claims := &AccessClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(c.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("error signing access token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, algorithm and expiry and returns the claims.
func (c *TokenCodec) Verify(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := c.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
