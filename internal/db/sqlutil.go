package db

import (
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"github.com/hpungsan/sideclip/internal/errors"
)

// IsUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func IsUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Unavailable maps a backend error to STORAGE_UNAVAILABLE.
// Locked, full, read-only and closed databases all land here; callers decide whether to degrade.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	var cErr *errors.ClipError
	if stderrors.As(err, &cErr) {
		return err
	}
	return errors.NewStorageUnavailable(err)
}

// ToNullString converts a *string to sql.NullString.
func ToNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// FromNullString converts a sql.NullString to *string.
func FromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

// ToUnixNano stores timestamps as integer nanoseconds.
func ToUnixNano(t time.Time) int64 {
	return t.UnixNano()
}

// FromUnixNano converts stored nanoseconds back to a UTC time.
func FromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
