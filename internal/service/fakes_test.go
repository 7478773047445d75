package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/sync-auth/internal/model"
	"github.com/iliyamo/sync-auth/internal/queue"
	"github.com/iliyamo/sync-auth/internal/repository"
	"github.com/iliyamo/sync-auth/internal/utils"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeUsers struct {
	mu        sync.Mutex
	rows      map[string]model.Credential
	findErr   error
	insertErr error
}

func newFakeUsers() *fakeUsers { return &fakeUsers{rows: map[string]model.Credential{}} }

func (f *fakeUsers) InsertCredential(_ context.Context, c model.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	if _, ok := f.rows[c.Username]; ok {
		return repository.ErrConflict
	}
	f.rows[c.Username] = c
	return nil
}

func (f *fakeUsers) FindCredential(_ context.Context, username string) (model.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return model.Credential{}, f.findErr
	}
	c, ok := f.rows[username]
	if !ok {
		return model.Credential{}, repository.ErrNotFound
	}
	return c, nil
}

type fakeSessions struct {
	mu        sync.Mutex
	rows      map[string]model.Session
	insertErr error
	findErr   error
	deleteErr error
	purgeErr  error
	purges    int
}

func newFakeSessions() *fakeSessions { return &fakeSessions{rows: map[string]model.Session{}} }

func (f *fakeSessions) InsertSession(_ context.Context, s model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	if _, ok := f.rows[s.ID]; ok {
		return repository.ErrConflict
	}
	f.rows[s.ID] = s
	return nil
}

func (f *fakeSessions) FindSession(_ context.Context, id string) (model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return model.Session{}, f.findErr
	}
	s, ok := f.rows[id]
	if !ok {
		return model.Session{}, repository.ErrNotFound
	}
	return s, nil
}

func (f *fakeSessions) DeleteSession(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	_, ok := f.rows[id]
	delete(f.rows, id)
	return ok, nil
}

func (f *fakeSessions) DeleteExpiredSessions(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purges++
	if f.purgeErr != nil {
		return 0, f.purgeErr
	}
	var n int64
	for id, s := range f.rows {
		if s.ExpiresAt.Before(before) {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeSessions) set(s model.Session) {
	f.mu.Lock()
	f.rows[s.ID] = s
	f.mu.Unlock()
}

func (f *fakeSessions) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeEvents struct {
	mu     sync.Mutex
	events []queue.AuthEvent
	err    error
}

func (f *fakeEvents) Publish(_ context.Context, ev queue.AuthEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.err
}

func (f *fakeEvents) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.Type)
	}
	return out
}

type testEnv struct {
	clock    *testClock
	users    *fakeUsers
	sessions *fakeSessions
	events   *fakeEvents
	codec    *utils.TokenCodec
	manager  *SessionManager
	gate     *Gate
	svc      *LoginService
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestEnv(t *testing.T, ttl time.Duration) *testEnv {
	t.Helper()
	clock := &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	codec, err := utils.NewTokenCodec(utils.TokenConfig{Secret: []byte("test-secret"), Algorithm: "HS256", TTL: ttl})
	require.NoError(t, err)
	codec = codec.WithClock(clock.Now)

	logger := discardLogger()
	env := &testEnv{
		clock:    clock,
		users:    newFakeUsers(),
		sessions: newFakeSessions(),
		events:   &fakeEvents{},
		codec:    codec,
	}
	env.manager = NewSessionManager(env.sessions, codec, logger).WithClock(clock.Now)
	env.gate = NewGate(codec, env.manager, env.users, logger)
	hasher := utils.NewArgon2Hasher(utils.Argon2Params{Memory: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	env.svc = NewLoginService(env.users, hasher, codec, env.manager, env.events, logger)
	return env
}

func (e *testEnv) register(t *testing.T, username, password, role string) {
	t.Helper()
	_, err := e.svc.Register(context.Background(), username, password, role)
	require.NoError(t, err)
}

func (e *testEnv) login(t *testing.T, username, password string) LoginResult {
	t.Helper()
	res, err := e.svc.Login(context.Background(), username, password)
	require.NoError(t, err)
	return res
}
