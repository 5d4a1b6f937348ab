package util

import (
	"database/sql"
	"time"
)

// StringToNullString converts a string to sql.NullString.
// An empty string is treated as NULL.
func StringToNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{} // Valid is false, String is ""
	}
	return sql.NullString{String: s, Valid: true}
}

// Int64PtrToNull converts an optional integer to sql.NullInt64.
func Int64PtrToNull(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// NullToInt64Ptr is the inverse of Int64PtrToNull.
func NullToInt64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

// NullFloat64Or returns the value or fallback when NULL.
func NullFloat64Or(v sql.NullFloat64, fallback float64) float64 {
	if !v.Valid {
		return fallback
	}
	return v.Float64
}

// UnixMillis is the storage representation of timestamps; it is portable across SQLite and Postgres.
func UnixMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromUnixMillis converts a stored timestamp back to UTC time.
func FromUnixMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
