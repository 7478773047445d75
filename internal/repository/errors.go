// Package repository holds the MySQL-backed stores for credential and
// session records.  Repositories translate driver errors into the sentinel
// values below so the service layer can tell "absent" and "duplicate" apart
// from real storage failures.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert collides with an existing primary
// key, such as registering a username that is already taken.
var ErrConflict = errors.New("conflict")

// mysqlDuplicateEntry is the server error number for a unique key violation.
const mysqlDuplicateEntry = 1062
