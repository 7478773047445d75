package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iliyamo/sync-auth/internal/model"
	"github.com/iliyamo/sync-auth/internal/repository"
	"github.com/iliyamo/sync-auth/internal/utils"
)

// SessionManager opens, looks up, closes and purges session records.  It
// holds no mutable state of its own; the store is the only shared resource.
type SessionManager struct {
	store  SessionStore
	tokens *utils.TokenCodec
	logger *slog.Logger
	now    func() time.Time
}

func NewSessionManager(store SessionStore, tokens *utils.TokenCodec, logger *slog.Logger) *SessionManager {
	return &SessionManager{store: store, tokens: tokens, logger: logger, now: time.Now}
}

// WithClock returns a copy that reads the current time from now.
func (m *SessionManager) WithClock(now func() time.Time) *SessionManager {
	cp := *m
	cp.now = now
	return &cp
}

// OpenSession persists a record for a freshly minted token.  The record's
// id and expiry are read back from the token itself.  A store failure is
// returned as ErrPersistence; the caller must not hand the token out.
func (m *SessionManager) OpenSession(ctx context.Context, username, token string) (model.Session, error) {
	id, exp, err := m.tokens.ExtractSubjectAndExpiry(token)
	if err != nil {
		return model.Session{}, err
	}
	s := model.Session{ID: id, Username: username, ExpiresAt: exp}
	if err := m.store.InsertSession(ctx, s); err != nil {
		m.logger.ErrorContext(ctx, "open session: insert failed", "username", username, "err", err)
		return model.Session{}, fmt.Errorf("%w: open session: %w", ErrPersistence, err)
	}
	return s, nil
}

// FindSession returns the record for id, ErrSessionNotFound when there is
// none, or ErrPersistence.
func (m *SessionManager) FindSession(ctx context.Context, id string) (model.Session, error) {
	s, err := m.store.FindSession(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Session{}, ErrSessionNotFound
		}
		m.logger.ErrorContext(ctx, "find session failed", "err", err)
		return model.Session{}, fmt.Errorf("%w: find session: %w", ErrPersistence, err)
	}
	return s, nil
}

// CloseSession deletes the record for id.  Closing an unknown session is
// not an error; the boolean tells whether a record went away.
func (m *SessionManager) CloseSession(ctx context.Context, id string) (bool, error) {
	ok, err := m.store.DeleteSession(ctx, id)
	if err != nil {
		m.logger.ErrorContext(ctx, "close session failed", "err", err)
		return false, fmt.Errorf("%w: close session: %w", ErrPersistence, err)
	}
	return ok, nil
}

// PurgeExpired deletes every record whose expiry is strictly before now and
// returns the count.  Running it again on a clean store returns 0.
func (m *SessionManager) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := m.store.DeleteExpiredSessions(ctx, m.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: purge sessions: %w", ErrPersistence, err)
	}
	if n > 0 {
		m.logger.DebugContext(ctx, "purged expired sessions", "count", n)
	}
	return n, nil
}

// purgeBestEffort runs PurgeExpired and only logs a failure.
func (m *SessionManager) purgeBestEffort(ctx context.Context) {
	if _, err := m.PurgeExpired(ctx); err != nil {
		m.logger.WarnContext(ctx, "session purge failed", "err", err)
	}
}

// Now is the manager's clock reading in UTC.
func (m *SessionManager) Now() time.Time { return m.now().UTC() }
