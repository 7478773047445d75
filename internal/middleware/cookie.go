package middleware

import (
	"net/http"
	"time"
)

// SessionCookieName carries the signed session token.
const SessionCookieName = "X-Sync.Ref"

// NewSessionCookie builds the session cookie: HttpOnly, SameSite=Lax,
// Path=/ and Max-Age equal to the token TTL.
func NewSessionCookie(token string, maxAge int, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ExpiredSessionCookie tells the browser to drop the session cookie.
func ExpiredSessionCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
