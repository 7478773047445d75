package model

import "time"

// Session models a row of the `sessions` table.  ID is the subject of the
// signed token handed to the client; ExpiresAt is written from the token's own
// expiry claim so both expire at the same instant.
type Session struct {
	ID        string    // sessions.id
	Username  string    // sessions.username
	ExpiresAt time.Time // sessions.expires_at (UTC)
}

// Expired reports whether the session is no longer usable at now.  The
// expiry instant itself counts as expired, matching the token's exp check.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
