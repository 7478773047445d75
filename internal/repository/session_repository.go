package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/iliyamo/sync-auth/internal/model"
)

// SessionRepo persists session records in the `sessions` table.  Rows are
// only ever inserted or deleted, never updated, so concurrent requests need
// no locking beyond what the database provides.
type SessionRepo struct{ DB DBTX }

func NewSessionRepo(db DBTX) *SessionRepo { return &SessionRepo{DB: db} }

// InsertSession stores a session row.  Expiry is written in UTC.
func (r *SessionRepo) InsertSession(ctx context.Context, s model.Session) error {
	query, args, err := sq.Insert("sessions").
		Columns("id", "username", "expires_at").
		Values(s.ID, s.Username, s.ExpiresAt.UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session: %w", err)
	}
	if _, err := r.DB.ExecContext(ctx, query, args...); err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// FindSession returns the session with the given id, or ErrNotFound.  The
// row is returned even when expired; judging expiry is the caller's job.
func (r *SessionRepo) FindSession(ctx context.Context, id string) (model.Session, error) {
	query, args, err := sq.Select("id", "username", "expires_at").
		From("sessions").
		Where(sq.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Session{}, fmt.Errorf("build select session: %w", err)
	}
	var s model.Session
	if err := r.DB.QueryRowContext(ctx, query, args...).Scan(&s.ID, &s.Username, &s.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Session{}, ErrNotFound
		}
		return model.Session{}, fmt.Errorf("select session: %w", err)
	}
	s.ExpiresAt = s.ExpiresAt.UTC()
	return s, nil
}

// DeleteSession removes one session and reports whether a row existed.
func (r *SessionRepo) DeleteSession(ctx context.Context, id string) (bool, error) {
	query, args, err := sq.Delete("sessions").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return false, fmt.Errorf("build delete session: %w", err)
	}
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete session rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteExpiredSessions removes every session whose expiry is strictly
// before the given instant and returns how many rows went away.
func (r *SessionRepo) DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	query, args, err := sq.Delete("sessions").Where(sq.Lt{"expires_at": before.UTC()}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build purge sessions: %w", err)
	}
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge sessions rows affected: %w", err)
	}
	return n, nil
}
