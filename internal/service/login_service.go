package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/sync-auth/internal/model"
	"github.com/iliyamo/sync-auth/internal/queue"
	"github.com/iliyamo/sync-auth/internal/repository"
	"github.com/iliyamo/sync-auth/internal/utils"
)

// LoginResult is what a successful login hands to the transport layer.
type LoginResult struct {
	Token   string
	Session model.Session
	MaxAge  int // cookie Max-Age in seconds, the configured TTL
}

// LoginService answers login, logout and registration requests.
type LoginService struct {
	users    CredentialStore
	hasher   utils.PasswordHasher
	tokens   *utils.TokenCodec
	sessions *SessionManager
	events   EventPublisher // nil disables events
	logger   *slog.Logger

	dummyOnce   sync.Once
	dummyDigest string
}

func NewLoginService(users CredentialStore, hasher utils.PasswordHasher, tokens *utils.TokenCodec,
	sessions *SessionManager, events EventPublisher, logger *slog.Logger) *LoginService {
	return &LoginService{users: users, hasher: hasher, tokens: tokens, sessions: sessions, events: events, logger: logger}
}

// Login checks the password of the normalized username, mints a token and
// persists its session.  Expired sessions are purged first so a burst of
// logins cannot pile up stale rows.  If the session cannot be stored the
// login fails and no token is returned.
func (s *LoginService) Login(ctx context.Context, username, password string) (LoginResult, error) {
	name := utils.NormalizeUsername(username)
	if name == "" || password == "" {
		return LoginResult{}, ErrMissingField
	}

	s.sessions.purgeBestEffort(ctx)

	cred, err := s.users.FindCredential(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// same hashing cost as a wrong password
			s.hasher.Verify(s.dummy(), password)
			return LoginResult{}, ErrUserNotFound
		}
		s.logger.ErrorContext(ctx, "login: credential lookup failed", "username", name, "err", err)
		return LoginResult{}, fmt.Errorf("%w: find credential: %w", ErrPersistence, err)
	}
	if !s.hasher.Verify(cred.PasswordHash, password) {
		return LoginResult{}, ErrBadCredentials
	}

	token, _, err := s.tokens.Mint()
	if err != nil {
		return LoginResult{}, fmt.Errorf("mint token: %w", err)
	}
	sess, err := s.sessions.OpenSession(ctx, name, token)
	if err != nil {
		return LoginResult{}, err
	}

	s.logger.InfoContext(ctx, "session opened", "username", name, "expires_at", sess.ExpiresAt)
	s.publish(ctx, queue.AuthEvent{
		Type:      queue.EventSessionOpened,
		Username:  name,
		SessionID: sess.ID,
		ExpiresAt: eventTime(sess.ExpiresAt),
	})
	return LoginResult{Token: token, Session: sess, MaxAge: int(s.tokens.TTL() / time.Second)}, nil
}

// Logout closes the session behind id.
func (s *LoginService) Logout(ctx context.Context, id *Identity) error {
	closed, err := s.sessions.CloseSession(ctx, id.SessionID)
	if err != nil {
		return err
	}
	if closed {
		s.publish(ctx, queue.AuthEvent{Type: queue.EventSessionClosed, Username: id.Username, SessionID: id.SessionID})
	}
	return nil
}

// Register stores a new credential under the normalized username.  The
// role is stored as given, trimmed.
func (s *LoginService) Register(ctx context.Context, username, password, role string) (model.Credential, error) {
	name := utils.NormalizeUsername(username)
	if name == "" || password == "" {
		return model.Credential{}, ErrMissingField
	}

	if _, err := s.users.FindCredential(ctx, name); err == nil {
		return model.Credential{}, ErrConflict
	} else if !errors.Is(err, repository.ErrNotFound) {
		s.logger.ErrorContext(ctx, "register: credential lookup failed", "username", name, "err", err)
		return model.Credential{}, fmt.Errorf("%w: find credential: %w", ErrPersistence, err)
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return model.Credential{}, fmt.Errorf("hash password: %w", err)
	}
	cred := model.Credential{Username: name, PasswordHash: digest, Role: strings.TrimSpace(role)}
	if err := s.users.InsertCredential(ctx, cred); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return model.Credential{}, ErrConflict
		}
		s.logger.ErrorContext(ctx, "register: insert failed", "username", name, "err", err)
		return model.Credential{}, fmt.Errorf("%w: insert credential: %w", ErrPersistence, err)
	}

	s.logger.InfoContext(ctx, "user registered", "username", name, "role", cred.Role)
	s.publish(ctx, queue.AuthEvent{Type: queue.EventUserRegistered, Username: name, Role: cred.Role})
	return cred, nil
}

// dummy is a digest no password matches, hashed once with the live hasher
// so verifying against it costs what a real verify costs.
func (s *LoginService) dummy() string {
	s.dummyOnce.Do(func() {
		d, err := s.hasher.Hash("unknown-user-placeholder")
		if err != nil {
			s.logger.Warn("dummy digest unavailable", "err", err)
		}
		s.dummyDigest = d
	})
	return s.dummyDigest
}

func (s *LoginService) publish(ctx context.Context, ev queue.AuthEvent) {
	if s.events == nil {
		return
	}
	ev.OccurredAt = eventTime(s.sessions.Now())
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "auth event not published", "type", ev.Type, "err", err)
	}
}
