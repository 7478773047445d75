package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/iliyamo/sync-auth/internal/model"
)

// UserRepo persists credential records in the `users` table.  Usernames must
// already be normalized by the caller.
type UserRepo struct{ DB DBTX }

func NewUserRepo(db DBTX) *UserRepo { return &UserRepo{DB: db} }

// InsertCredential stores a new credential.  A duplicate username yields
// ErrConflict.
func (r *UserRepo) InsertCredential(ctx context.Context, c model.Credential) error {
	query, args, err := sq.Insert("users").
		Columns("username", "password_hash", "role").
		Values(c.Username, c.PasswordHash, c.Role).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user: %w", err)
	}
	if _, err := r.DB.ExecContext(ctx, query, args...); err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindCredential fetches a credential by normalized username.  It returns
// ErrNotFound when no row matches.
func (r *UserRepo) FindCredential(ctx context.Context, username string) (model.Credential, error) {
	query, args, err := sq.Select("username", "password_hash", "role", "created_at").
		From("users").
		Where(sq.Eq{"username": username}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Credential{}, fmt.Errorf("build select user: %w", err)
	}
	var c model.Credential
	err = r.DB.QueryRowContext(ctx, query, args...).Scan(&c.Username, &c.PasswordHash, &c.Role, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Credential{}, ErrNotFound
		}
		return model.Credential{}, fmt.Errorf("select user: %w", err)
	}
	return c, nil
}
