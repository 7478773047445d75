package utils // package utils provides token, password and username helpers

import (
	"crypto/rand"  // secure random number generation for session ids
	"encoding/hex" // hex encoding of the random session id
	"errors"       // sentinel errors for token failures
	"fmt"          // error wrapping
	"time"         // expiry arithmetic

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and verifying signed tokens
)

var (
	// ErrInvalidToken is returned when a token's signature, structure or
	// expiry does not check out.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMalformedToken is returned when a verified token lacks the session
	// subject or expiry claim.
	ErrMalformedToken = errors.New("malformed token")
)

// sessionIDBytes is the amount of randomness behind a session id (256 bits).
const sessionIDBytes = 32

// TokenConfig carries everything a TokenCodec needs.  It is built from
// config.Config at startup; the secret is never read from globals.
type TokenConfig struct {
	Secret    []byte        // HMAC signing secret
	Algorithm string        // HS256, HS384 or HS512
	TTL       time.Duration // lifetime of the token and its session record
}

// TokenCodec mints and verifies signed, expiring session tokens.  The token
// subject is an opaque random session id; the only other claims are the
// expiry and issued-at timestamps.  A TokenCodec is immutable and safe for
// concurrent use.
type TokenCodec struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenCodec validates cfg and returns a codec.  The clock defaults to
// time.Now; tests may replace it with WithClock.
func NewTokenCodec(cfg TokenConfig) (*TokenCodec, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret must not be empty")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	alg := cfg.Algorithm
	if alg == "" {
		alg = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", alg)
	}
	return &TokenCodec{secret: cfg.Secret, method: method, ttl: cfg.TTL, now: time.Now}, nil
}

// WithClock returns a copy of the codec that reads the current time from now.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	cp := *c
	cp.now = now
	return &cp
}

// TTL is the configured token lifetime.
func (c *TokenCodec) TTL() time.Duration { return c.ttl }

// Mint generates a fresh session id, signs a token carrying it and returns
// the token together with its expiry.  The expiry is truncated to whole
// seconds, the precision of the exp claim, so the value returned here is
// exactly the value a later ExtractSubjectAndExpiry reads back.
func (c *TokenCodec) Mint() (string, time.Time, error) {
	id, err := randomHex(sessionIDBytes)
	if err != nil {
		return "", time.Time{}, err
	}
	now := c.now().UTC()
	exp := now.Add(c.ttl).Truncate(time.Second)
	claims := jwt.RegisteredClaims{
		Subject:   id,
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify checks the token's signature, structure and expiry and returns its
// claims.  Signature comparison is done by the jwt library's HMAC verify,
// which is constant time.  Every failure wraps ErrInvalidToken.
func (c *TokenCodec) Verify(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if _, err := parser.ParseWithClaims(token, claims, c.keyFunc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims, nil
}

// ExtractSubjectAndExpiry verifies the token and returns the session id and
// the expiry as a UTC time.  A token without a subject yields
// ErrMalformedToken.
func (c *TokenCodec) ExtractSubjectAndExpiry(token string) (string, time.Time, error) {
	claims, err := c.Verify(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenRequiredClaimMissing) {
			return "", time.Time{}, fmt.Errorf("%w: %w", ErrMalformedToken, err)
		}
		return "", time.Time{}, err
	}
	if claims.Subject == "" {
		return "", time.Time{}, fmt.Errorf("%w: missing sub claim", ErrMalformedToken)
	}
	if claims.ExpiresAt == nil {
		return "", time.Time{}, fmt.Errorf("%w: missing exp claim", ErrMalformedToken)
	}
	return claims.Subject, claims.ExpiresAt.Time.UTC(), nil
}

func (c *TokenCodec) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
	}
	return c.secret, nil
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
