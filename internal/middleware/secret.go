package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireSecret guards maintenance endpoints with a shared secret passed as
// the `secret` query parameter.  It is a separate, weaker gate than
// RequireSession and is only meant for narrow operations such as creating
// users.  An empty configured secret rejects every request.
func RequireSecret(secret string) echo.MiddlewareFunc {
	want := []byte(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := []byte(c.QueryParam("secret"))
			if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid secret"})
			}
			return next(c)
		}
	}
}
