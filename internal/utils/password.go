package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes and verifies passwords.  Verify never explains a
// mismatch beyond the boolean.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(digest, plain string) bool
}

// Argon2Params tunes argon2id.  Memory is in KiB.
type Argon2Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params follows the OWASP baseline for argon2id.
var DefaultArgon2Params = Argon2Params{
	Memory:      19 * 1024,
	Time:        2,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// Argon2Hasher produces argon2id digests in PHC string format:
//
//	$argon2id$v=19$m=19456,t=2,p=1$<salt>$<hash>
//
// Verify also accepts bcrypt digests so stores that were filled by
// BcryptHasher keep working after a switch.
type Argon2Hasher struct {
	params Argon2Params
}

// NewArgon2Hasher returns a hasher using p.
func NewArgon2Hasher(p Argon2Params) *Argon2Hasher {
	return &Argon2Hasher{params: p}
}

// Hash returns a salted argon2id digest; every call uses a fresh salt.
func (a *Argon2Hasher) Hash(plain string) (string, error) {
	salt := make([]byte, a.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(plain), salt, a.params.Time, a.params.Memory, a.params.Parallelism, a.params.KeyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		a.params.Memory, a.params.Time, a.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the digest with the parameters stored in it and
// compares in constant time.
func (a *Argon2Hasher) Verify(digest, plain string) bool {
	if isBcrypt(digest) {
		return verifyBcrypt(digest, plain)
	}
	p, salt, want, err := parseArgon2(digest)
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(plain), salt, p.Time, p.Memory, p.Parallelism, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}

func parseArgon2(digest string) (Argon2Params, []byte, []byte, error) {
	var p Argon2Params
	parts := strings.Split(digest, "$")
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, hash
	if len(parts) != 6 || parts[1] != "argon2id" {
		return p, nil, nil, errors.New("not an argon2id digest")
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, errors.New("unsupported argon2 version")
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Parallelism); err != nil {
		return p, nil, nil, fmt.Errorf("argon2 params: %w", err)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, fmt.Errorf("argon2 salt: %w", err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, errors.New("argon2 hash")
	}
	if p.Time == 0 || p.Parallelism == 0 {
		return p, nil, nil, errors.New("argon2 params out of range")
	}
	return p, salt, key, nil
}

// BcryptHasher hashes with bcrypt at the given cost.
type BcryptHasher struct {
	Cost int
}

// Hash returns bcrypt hash using the configured cost.
func (b BcryptHasher) Hash(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), b.Cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Verify safely compares a bcrypt hash and a plain password.
func (b BcryptHasher) Verify(digest, plain string) bool {
	return verifyBcrypt(digest, plain)
}

// NewPasswordHasher picks the hasher named by algo ("argon2id" or "bcrypt").
func NewPasswordHasher(algo string, bcryptCost int) (PasswordHasher, error) {
	switch algo {
	case "", "argon2id":
		return NewArgon2Hasher(DefaultArgon2Params), nil
	case "bcrypt":
		return BcryptHasher{Cost: bcryptCost}, nil
	default:
		return nil, fmt.Errorf("unsupported password hash %q", algo)
	}
}

func isBcrypt(digest string) bool {
	return strings.HasPrefix(digest, "$2a$") || strings.HasPrefix(digest, "$2b$") || strings.HasPrefix(digest, "$2y$")
}

func verifyBcrypt(digest, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}
