package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"

	argon2Prefix = "$argon2id$"

	// bcrypt only reads the first 72 bytes and rejects longer input.
	bcryptMaxPasswordBytes = 72
)

// PasswordHasher hashes new passwords and verifies stored ones.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, stored string) bool
}

// BcryptHasher hashes passwords with bcrypt. Passwords longer than 72 bytes
// are reduced to the base64 SHA-256 digest first, in Hash and Verify alike.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(plain string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword(bcryptInput(plain), cost)
	if err != nil {
		return "", fmt.Errorf("error hashing password: %w", err)
	}
	return string(hashed), nil
}

func (h BcryptHasher) Verify(plain, stored string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), bcryptInput(plain)) == nil
}

func bcryptInput(plain string) []byte {
	if len(plain) <= bcryptMaxPasswordBytes {
		return []byte(plain)
	}
	sum := sha256.Sum256([]byte(plain))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

// Argon2Hasher hashes passwords with argon2id and encodes them in PHC form:
// $argon2id$v=19$m=<KiB>,t=<passes>,p=<lanes>$<salt>$<hash>
type Argon2Hasher struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Hasher uses the RFC 9106 second recommended parameter set.
func DefaultArgon2Hasher() Argon2Hasher {
	return Argon2Hasher{Memory: 64 * 1024, Time: 3, Parallelism: 2, SaltLength: 16, KeyLength: 32}
}

func (h Argon2Hasher) Hash(plain string) (string, error) {
	salt := make([]byte, h.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("error generating salt: %w", err)
	}
	key := argon2.IDKey([]byte(plain), salt, h.Time, h.Memory, h.Parallelism, h.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.Memory, h.Time, h.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the key with the parameters embedded in stored.
func (h Argon2Hasher) Verify(plain, stored string) bool {
	parts := strings.Split(stored, "$")
	if len(parts) != 6 || parts[1] != AlgorithmArgon2id {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}
	var memory, time uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &parallelism); err != nil {
		return false
	}
	if memory == 0 || time == 0 || parallelism == 0 {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return false
	}

	got := argon2.IDKey([]byte(plain), salt, time, memory, parallelism, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}

// multiHasher hashes with one algorithm and verifies any supported format,
// so existing hashes keep working after PASSWORD_HASHER changes.
type multiHasher struct {
	primary PasswordHasher
	bcrypt  BcryptHasher
	argon2  Argon2Hasher
}

// NewPasswordHasher returns a hasher that creates algorithm hashes and
// verifies both bcrypt and argon2id hashes.
func NewPasswordHasher(algorithm string, bcryptCost int) (PasswordHasher, error) {
	if bcryptCost != 0 && (bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost) {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", bcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	m := &multiHasher{
		bcrypt: BcryptHasher{Cost: bcryptCost},
		argon2: DefaultArgon2Hasher(),
	}
	switch strings.ToLower(algorithm) {
	case "", AlgorithmBcrypt:
		m.primary = m.bcrypt
	case AlgorithmArgon2id, "argon2":
		m.primary = m.argon2
	default:
		return nil, errors.New("unsupported password hasher: " + algorithm)
	}
	return m, nil
}

func (m *multiHasher) Hash(plain string) (string, error) {
	return m.primary.Hash(plain)
}

func (m *multiHasher) Verify(plain, stored string) bool {
	if strings.HasPrefix(stored, argon2Prefix) {
		return m.argon2.Verify(plain, stored)
	}
	return m.bcrypt.Verify(plain, stored)
}
