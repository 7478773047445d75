// Package queue defines the auth event payloads exchanged over RabbitMQ
// together with their publisher and the log-writing consumer.
package queue

import (
	"fmt"
	"strings"
)

// AuthEventsQueue is the durable queue every auth event is routed to.
const AuthEventsQueue = "auth.events"

// Event types.
const (
	EventUserRegistered = "user.registered"
	EventSessionOpened  = "session.opened"
	EventSessionClosed  = "session.closed"
)

// AuthEvent is published after a registration, a login or a logout.  It
// carries enough for downstream consumers to audit activity without querying
// the primary database.  Timestamps are RFC 3339 strings in UTC.
type AuthEvent struct {
	Type       string `json:"type"`
	Username   string `json:"username"`
	Role       string `json:"role,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	ExpiresAt  string `json:"expires_at,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// LogLine renders the event as one line of the auth log.
func (e AuthEvent) LogLine() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | user=%q", e.OccurredAt, e.Type, e.Username)
	if e.Role != "" {
		fmt.Fprintf(&b, " | role=%q", e.Role)
	}
	if e.SessionID != "" {
		fmt.Fprintf(&b, " | session=%s", shortID(e.SessionID))
	}
	if e.ExpiresAt != "" {
		fmt.Fprintf(&b, " | expires=%s", e.ExpiresAt)
	}
	b.WriteByte('\n')
	return b.String()
}

// shortID keeps log lines readable; a prefix is enough to correlate entries.
func shortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12]
}
