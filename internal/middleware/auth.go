package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sync-auth/internal/service"
)

// Authorizer is the part of service.Gate the middleware needs.
type Authorizer interface {
	Authorize(ctx context.Context, token string, roles ...string) (*service.Identity, error)
}

const identityKey = "identity"

// GateTimeout bounds the store calls made while authorizing a request.
const GateTimeout = 5 * time.Second

type identityCtxKey struct{}

// RequireSession returns an Echo middleware that authenticates the request
// from the X-Sync.Ref cookie.  When roles are given the session's user must
// hold one of them.  On success the identity is stored in the Echo context
// (IdentityFrom) and in the request context (IdentityFromContext).
//
// Every authentication failure produces the same 401 body so clients cannot
// tell a bad signature from a purged session.  A role mismatch is a 403 and
// a storage failure a 500.
func RequireSession(gate Authorizer, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var token string
			if ck, err := c.Cookie(SessionCookieName); err == nil {
				token = ck.Value
			}

			req := c.Request()
			ctx, cancel := context.WithTimeout(req.Context(), GateTimeout)
			id, err := gate.Authorize(ctx, token, roles...)
			cancel()
			switch {
			case err == nil:
			case service.IsUnauthenticated(err):
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
			case errors.Is(err, service.ErrForbidden):
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			default:
				c.Logger().Errorf("auth gate: %v", err)
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
			}

			c.Set(identityKey, id)
			c.SetRequest(req.WithContext(context.WithValue(req.Context(), identityCtxKey{}, id)))
			return next(c)
		}
	}
}

// IdentityFrom returns the identity stored by RequireSession.
func IdentityFrom(c echo.Context) (*service.Identity, bool) {
	id, ok := c.Get(identityKey).(*service.Identity)
	return id, ok && id != nil
}

// IdentityFromContext is IdentityFrom for code that only sees the request
// context.
func IdentityFromContext(ctx context.Context) (*service.Identity, bool) {
	id, ok := ctx.Value(identityCtxKey{}).(*service.Identity)
	return id, ok && id != nil
}
