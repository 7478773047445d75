package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sync-auth/internal/config"
	"github.com/iliyamo/sync-auth/internal/middleware"
	"github.com/iliyamo/sync-auth/internal/model"
	"github.com/iliyamo/sync-auth/internal/service"
)

// Authenticator is implemented by service.LoginService.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (service.LoginResult, error)
	Register(ctx context.Context, username, password, role string) (model.Credential, error)
	Logout(ctx context.Context, id *service.Identity) error
}

// SessionPurger is implemented by service.SessionManager.
type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Auth     Authenticator
	Sessions SessionPurger
}

func NewAuthHandler(cfg config.Config, a Authenticator, s SessionPurger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Auth: a, Sessions: s}
}

// ----- DTOs -----

type registerReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}
type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResp struct {
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
}
type sessionResp struct {
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Register: create a credential record.  Guarded by the shared secret.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	cred, err := h.Auth.Register(ctx, req.Username, req.Password, req.Role)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrMissingField):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/password required"})
	case errors.Is(err, service.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "username already exists"})
	default:
		c.Logger().Errorf("register: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}
	return c.JSON(http.StatusCreated, userResp{Username: cred.Username, Role: cred.Role})
}

// Login: verify the password and hand the session token out as a cookie.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Auth.Login(ctx, req.Username, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrMissingField):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/password required"})
	case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrBadCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	default:
		c.Logger().Errorf("login: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}

	c.SetCookie(middleware.NewSessionCookie(res.Token, res.MaxAge, h.Cfg.CookieSecure))
	return c.JSON(http.StatusOK, sessionResp{Username: res.Session.Username, ExpiresAt: res.Session.ExpiresAt})
}

// Logout: delete the caller's session and clear the cookie (protected).
func (h *AuthHandler) Logout(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Auth.Logout(ctx, id); err != nil {
		c.Logger().Errorf("logout: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}
	c.SetCookie(middleware.ExpiredSessionCookie(h.Cfg.CookieSecure))
	return c.NoContent(http.StatusNoContent)
}

// Me: the authenticated user and when the session ends (protected).
func (h *AuthHandler) Me(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	resp := sessionResp{Username: id.Username}
	if id.Claims != nil && id.Claims.ExpiresAt != nil {
		resp.ExpiresAt = id.Claims.ExpiresAt.Time.UTC()
	}
	return c.JSON(http.StatusOK, resp)
}

// PurgeSessions: run the expiry sweep on demand (admin only).
func (h *AuthHandler) PurgeSessions(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	n, err := h.Sessions.PurgeExpired(ctx)
	if err != nil {
		c.Logger().Errorf("purge sessions: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "purge failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"purged": n})
}
