// Package router wires handlers and middleware onto the Echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sync-auth/internal/handler"
	"github.com/iliyamo/sync-auth/internal/middleware"
)

// AdminRoles may run maintenance operations such as the purge sweep.
var AdminRoles = []string{"ADMIN", "admin"}

// Deps are the collaborators the routes need.
type Deps struct {
	Auth      *handler.AuthHandler
	Gate      middleware.Authorizer
	DB        handler.Pinger
	APIKey    string
	LoginRate echo.MiddlewareFunc // nil disables rate limiting
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.DB))
}

// RegisterAuth registers the authentication routes.  Login and register live
// under /v1/auth and do not need a session; register is guarded by the
// shared secret instead.  Everything else requires the session cookie.
func RegisterAuth(e *echo.Echo, d Deps) {
	g := e.Group("/v1/auth")
	if d.LoginRate != nil {
		g.POST("/login", d.Auth.Login, d.LoginRate)
	} else {
		g.POST("/login", d.Auth.Login)
	}
	g.POST("/register", d.Auth.Register, middleware.RequireSecret(d.APIKey))
	g.POST("/logout", d.Auth.Logout, middleware.RequireSession(d.Gate))

	auth := e.Group("/v1")
	auth.GET("/me", d.Auth.Me, middleware.RequireSession(d.Gate))

	admin := e.Group("/v1/admin", middleware.RequireSession(d.Gate, AdminRoles...))
	admin.POST("/sessions/purge", d.Auth.PurgeSessions)
}
