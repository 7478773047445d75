package model

import "time"

// Credential represents a row of the `users` table.  Username is always the
// normalized key produced by utils.NormalizeUsername; it is the only
// equality rule for users anywhere in the service.
//
// Fields:
//
//	Username     – normalized, unique username (primary key).
//	PasswordHash – argon2id PHC string or bcrypt hash.
//	Role         – free-form role tag (e.g. "admin").
//	CreatedAt    – timestamp of registration.
type Credential struct {
	Username     string    // users.username
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	CreatedAt    time.Time // users.created_at
}
