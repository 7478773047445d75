package service

import (
	"context"
	"time"

	"github.com/iliyamo/sync-auth/internal/model"
	"github.com/iliyamo/sync-auth/internal/queue"
)

// CredentialStore is the persistence collaborator for credential records.
// Implementations return repository.ErrNotFound for a missing user and
// repository.ErrConflict for a duplicate username.
type CredentialStore interface {
	InsertCredential(ctx context.Context, c model.Credential) error
	FindCredential(ctx context.Context, username string) (model.Credential, error)
}

// SessionStore is the persistence collaborator for session records.
type SessionStore interface {
	InsertSession(ctx context.Context, s model.Session) error
	FindSession(ctx context.Context, id string) (model.Session, error)
	DeleteSession(ctx context.Context, id string) (bool, error)
	DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error)
}

// EventPublisher receives auth events.  Publication is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.AuthEvent) error
}

func eventTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }
