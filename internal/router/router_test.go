package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/sync-auth/internal/config"
	"github.com/iliyamo/sync-auth/internal/handler"
	"github.com/iliyamo/sync-auth/internal/model"
	"github.com/iliyamo/sync-auth/internal/service"
)

type stubAuth struct{}

func (stubAuth) Login(context.Context, string, string) (service.LoginResult, error) {
	return service.LoginResult{Token: "t", MaxAge: 60}, nil
}

func (stubAuth) Register(_ context.Context, u, _, r string) (model.Credential, error) {
	return model.Credential{Username: u, Role: r}, nil
}

func (stubAuth) Logout(context.Context, *service.Identity) error { return nil }

type stubPurger struct{}

func (stubPurger) PurgeExpired(context.Context) (int64, error) { return 0, nil }

type stubGate struct{}

// stubGate authorizes "user" for any role set that does not demand admin.
func (stubGate) Authorize(_ context.Context, token string, roles ...string) (*service.Identity, error) {
	if token == "" {
		return nil, service.ErrUnauthenticated
	}
	for _, r := range roles {
		if r == "admin" && token != "admin-token" {
			return nil, service.ErrForbidden
		}
	}
	return &service.Identity{Username: "U", SessionID: "sid"}, nil
}

type okPinger struct{}

func (okPinger) PingContext(context.Context) error { return nil }

func newTestEcho() *echo.Echo {
	e := echo.New()
	d := Deps{
		Auth:   handler.NewAuthHandler(config.Config{}, stubAuth{}, stubPurger{}),
		Gate:   stubGate{},
		DB:     okPinger{},
		APIKey: "k",
	}
	RegisterRoutes(e, d)
	RegisterAuth(e, d)
	return e
}

func TestRoutes(t *testing.T) {
	e := newTestEcho()
	tests := []struct {
		name   string
		method string
		target string
		cookie string
		want   int
	}{
		{"health", http.MethodGet, "/healthz", "", http.StatusOK},
		{"login is public", http.MethodPost, "/v1/auth/login", "", http.StatusOK},
		{"register needs secret", http.MethodPost, "/v1/auth/register", "", http.StatusUnauthorized},
		{"register with secret", http.MethodPost, "/v1/auth/register?secret=k", "", http.StatusCreated},
		{"me needs cookie", http.MethodGet, "/v1/me", "", http.StatusUnauthorized},
		{"me with cookie", http.MethodGet, "/v1/me", "tok", http.StatusOK},
		{"logout needs cookie", http.MethodPost, "/v1/auth/logout", "", http.StatusUnauthorized},
		{"logout with cookie", http.MethodPost, "/v1/auth/logout", "tok", http.StatusNoContent},
		{"purge needs admin", http.MethodPost, "/v1/admin/sessions/purge", "tok", http.StatusForbidden},
		{"purge as admin", http.MethodPost, "/v1/admin/sessions/purge", "admin-token", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(`{"username":"u","password":"p"}`))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "X-Sync.Ref", Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
