// Package service holds the authentication core: session bookkeeping, the
// per-request gate and the login/registration flow.  Every failure is one of
// the sentinel errors below, possibly wrapped with context; callers match
// them with errors.Is.
package service

import (
	"errors"

	"github.com/iliyamo/sync-auth/internal/utils"
)

var (
	ErrMissingField   = errors.New("missing field")
	ErrUserNotFound   = errors.New("user not found")
	ErrBadCredentials = errors.New("bad credentials")
	ErrConflict       = errors.New("username already registered")

	// Token failures come straight from the codec.
	ErrInvalidToken   = utils.ErrInvalidToken
	ErrMalformedToken = utils.ErrMalformedToken

	ErrUnauthenticated = errors.New("no credential presented")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrForbidden       = errors.New("forbidden")

	// ErrPersistence wraps any storage failure.  The underlying error stays
	// in the chain for logging but must never reach the client.
	ErrPersistence = errors.New("persistence failure")
)

// IsUnauthenticated reports whether err is one of the failures that the
// transport layer reports uniformly as "unauthenticated".
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrMalformedToken) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrSessionExpired)
}
