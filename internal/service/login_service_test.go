package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/sync-auth/internal/model"
	"github.com/iliyamo/sync-auth/internal/queue"
	"github.com/iliyamo/sync-auth/internal/repository"
	"github.com/iliyamo/sync-auth/internal/utils"
)

func TestRegisterThenLogin(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	ctx := context.Background()

	cred, err := env.svc.Register(ctx, "ana", "s3cret", "admin")
	require.NoError(t, err)
	assert.Equal(t, "ANA", cred.Username)
	assert.Equal(t, "admin", cred.Role)
	assert.NotEqual(t, "s3cret", cred.PasswordHash)
	assert.True(t, strings.HasPrefix(cred.PasswordHash, "$argon2id$"))

	res, err := env.svc.Login(ctx, "ana", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, 3600, res.MaxAge)
	assert.Equal(t, "ANA", res.Session.Username)

	id, err := env.gate.Authorize(ctx, res.Token, "admin")
	require.NoError(t, err)
	assert.Equal(t, "ANA", id.Username)

	_, err = env.svc.Login(ctx, "ana", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestLogin_NormalizesUsername(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	env.register(t, " Ana  Pérez ", "pw", "user")

	for _, name := range []string{"ANA PEREZ", "ana pérez", "  ana   perez"} {
		res, err := env.svc.Login(context.Background(), name, "pw")
		require.NoError(t, err, name)
		assert.Equal(t, "ANA PEREZ", res.Session.Username)
	}
}

func TestLogin_Failures(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	env.register(t, "ana", "s3cret", "admin")
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		password string
		want     error
	}{
		{"blank username", "", "s3cret", ErrMissingField},
		{"whitespace username", "   ", "s3cret", ErrMissingField},
		{"blank password", "ana", "", ErrMissingField},
		{"unknown user", "bob", "s3cret", ErrUserNotFound},
		{"wrong password", "ana", "nope", ErrBadCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := env.svc.Login(ctx, tt.username, tt.password)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, res.Token)
		})
	}
	assert.Zero(t, env.sessions.count(), "failed logins open no session")
}

func TestLogin_SessionPersistenceFailureFailsLogin(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	env.register(t, "ana", "s3cret", "admin")
	env.sessions.insertErr = errors.New("disk full")

	res, err := env.svc.Login(context.Background(), "ana", "s3cret")
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Empty(t, res.Token, "no token without a stored session")
	assert.NotContains(t, env.events.types(), queue.EventSessionOpened)
}

func TestLogin_CredentialLookupFailure(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	env.users.findErr = errors.New("db down")

	_, err := env.svc.Login(context.Background(), "ana", "s3cret")
	assert.ErrorIs(t, err, ErrPersistence)
	assert.NotErrorIs(t, err, ErrUserNotFound)
}

func TestLogin_FreshSessionEachTime(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	env.register(t, "ana", "s3cret", "admin")

	a := env.login(t, "ana", "s3cret")
	b := env.login(t, "ana", "s3cret")
	assert.NotEqual(t, a.Session.ID, b.Session.ID)
	assert.Equal(t, 2, env.sessions.count())

	for _, res := range []LoginResult{a, b} {
		_, err := env.gate.Authorize(context.Background(), res.Token)
		assert.NoError(t, err)
	}
}

func TestLogin_PurgesExpiredSessions(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	env.register(t, "ana", "s3cret", "admin")
	env.sessions.set(model.Session{ID: "stale", Username: "ANA", ExpiresAt: env.clock.Now().Add(-time.Hour)})

	env.login(t, "ana", "s3cret")
	_, err := env.manager.FindSession(context.Background(), "stale")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestLogin_PurgeFailureDoesNotBlockLogin(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	env.register(t, "ana", "s3cret", "admin")
	env.sessions.purgeErr = errors.New("purge down")

	res := env.login(t, "ana", "s3cret")
	assert.NotEmpty(t, res.Token)
}

func TestLogin_EventFailureDoesNotBlockLogin(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	env.register(t, "ana", "s3cret", "admin")
	env.events.err = errors.New("broker down")

	res := env.login(t, "ana", "s3cret")
	assert.NotEmpty(t, res.Token)
}

func TestRegister_Conflict(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	env.register(t, "ana", "s3cret", "admin")

	_, err := env.svc.Register(context.Background(), "ana", "s3cret", "admin")
	assert.ErrorIs(t, err, ErrConflict)

	_, err = env.svc.Register(context.Background(), "  ANA ", "other", "viewer")
	assert.ErrorIs(t, err, ErrConflict, "normalized names collide")
}

func TestRegister_InsertRaceIsConflict(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	env.users.insertErr = repository.ErrConflict

	_, err := env.svc.Register(context.Background(), "ana", "s3cret", "admin")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRegister_Failures(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	ctx := context.Background()

	_, err := env.svc.Register(ctx, "", "pw", "admin")
	assert.ErrorIs(t, err, ErrMissingField)
	_, err = env.svc.Register(ctx, "ana", "", "admin")
	assert.ErrorIs(t, err, ErrMissingField)

	env.users.insertErr = errors.New("db down")
	_, err = env.svc.Register(ctx, "ana", "pw", "admin")
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestRegister_SaltsEachHash(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	a, err := env.svc.Register(context.Background(), "ana", "same", "x")
	require.NoError(t, err)
	b, err := env.svc.Register(context.Background(), "bob", "same", "x")
	require.NoError(t, err)
	assert.NotEqual(t, a.PasswordHash, b.PasswordHash)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	env.register(t, "ana", "s3cret", "admin")
	res := env.login(t, "ana", "s3cret")
	ctx := context.Background()

	id, err := env.gate.Authorize(ctx, res.Token)
	require.NoError(t, err)
	require.NoError(t, env.svc.Logout(ctx, id))

	_, err = env.gate.Authorize(ctx, res.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, env.svc.Logout(ctx, id), "second logout is a no-op")
	assert.Equal(t,
		[]string{queue.EventUserRegistered, queue.EventSessionOpened, queue.EventSessionClosed},
		env.events.types())
}

func TestEvents_Content(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	env.register(t, "ana", "s3cret", "admin")
	res := env.login(t, "ana", "s3cret")

	require.Len(t, env.events.events, 2)
	reg, opened := env.events.events[0], env.events.events[1]
	assert.Equal(t, "ANA", reg.Username)
	assert.Equal(t, "admin", reg.Role)
	assert.Equal(t, "2026-03-01T12:00:00Z", reg.OccurredAt)
	assert.Equal(t, res.Session.ID, opened.SessionID)
	assert.Equal(t, "2026-03-01T13:00:00Z", opened.ExpiresAt)
}

func TestLoginService_NilPublisher(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	env.svc.events = nil
	env.register(t, "ana", "s3cret", "admin")
	res := env.login(t, "ana", "s3cret")
	assert.NotEmpty(t, res.Token)
}

type countingHasher struct {
	utils.PasswordHasher
	verifies int
	digests  []string
}

func (c *countingHasher) Verify(digest, plain string) bool {
	c.verifies++
	c.digests = append(c.digests, digest)
	return c.PasswordHasher.Verify(digest, plain)
}

func TestLogin_UnknownUserStillVerifiesAPassword(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	env.register(t, "ana", "s3cret", "admin")
	counter := &countingHasher{PasswordHasher: env.svc.hasher}
	env.svc.hasher = counter

	_, err := env.svc.Login(context.Background(), "bob", "s3cret")
	require.ErrorIs(t, err, ErrUserNotFound)
	_, err = env.svc.Login(context.Background(), "bob", "other")
	require.ErrorIs(t, err, ErrUserNotFound)
	_, err = env.svc.Login(context.Background(), "ana", "wrong")
	require.ErrorIs(t, err, ErrBadCredentials)

	assert.Equal(t, 3, counter.verifies, "unknown users pay the same hashing cost")
	assert.True(t, strings.HasPrefix(counter.digests[0], "$argon2id$"))
	assert.Equal(t, counter.digests[0], counter.digests[1], "dummy digest is computed once")
}
