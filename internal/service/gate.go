package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/sync-auth/internal/repository"
	"github.com/iliyamo/sync-auth/internal/utils"
)

// Identity is the request-scoped result of a successful Authorize.
type Identity struct {
	Username  string
	SessionID string
	Role      string // set only when a role set was checked
	Claims    *jwt.RegisteredClaims
}

// Gate turns a presented token into an Identity or a rejection.
//
// Checks run in order and the first failure wins:
//
//  1. no token                   -> ErrUnauthenticated
//  2. bad signature/expired      -> ErrInvalidToken
//  3. purge expired (best effort), then lookup by subject
//     no record                  -> ErrSessionNotFound
//  4. record's own expiry passed -> ErrSessionExpired
//  5. roles given and the user is missing or not in the set
//     -> ErrForbidden
//
// Both the token expiry and the record expiry are checked; either may be
// the one that fires under clock skew.
type Gate struct {
	tokens   *utils.TokenCodec
	sessions *SessionManager
	users    CredentialStore
	logger   *slog.Logger
}

func NewGate(tokens *utils.TokenCodec, sessions *SessionManager, users CredentialStore, logger *slog.Logger) *Gate {
	return &Gate{tokens: tokens, sessions: sessions, users: users, logger: logger}
}

// Authorize validates token and, when roles is non-empty, requires the
// session's user to hold one of them.
func (g *Gate) Authorize(ctx context.Context, token string, roles ...string) (*Identity, error) {
	id, err := g.authorize(ctx, token, roles)
	if err != nil && !errors.Is(err, ErrPersistence) {
		g.logger.DebugContext(ctx, "auth rejected", "reason", err)
	}
	return id, err
}

func (g *Gate) authorize(ctx context.Context, token string, roles []string) (*Identity, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := g.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrMalformedToken)
	}

	g.sessions.purgeBestEffort(ctx)

	sess, err := g.sessions.FindSession(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if sess.Expired(g.sessions.Now()) {
		return nil, ErrSessionExpired
	}

	id := &Identity{Username: sess.Username, SessionID: sess.ID, Claims: claims}
	if len(roles) == 0 {
		return id, nil
	}

	cred, err := g.users.FindCredential(ctx, sess.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %q no longer exists", ErrForbidden, sess.Username)
		}
		g.logger.ErrorContext(ctx, "role lookup failed", "username", sess.Username, "err", err)
		return nil, fmt.Errorf("%w: role lookup: %w", ErrPersistence, err)
	}
	if !slices.Contains(roles, cred.Role) {
		return nil, fmt.Errorf("%w: role %q not in %v", ErrForbidden, cred.Role, roles)
	}
	id.Role = cred.Role
	return id, nil
}
