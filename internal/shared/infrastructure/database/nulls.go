package database

import (
	"database/sql"
	"time"
)

// NullableInt64 binds zero as SQL NULL.
func NullableInt64(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

// NullableString binds the empty string as SQL NULL.
func NullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// NullableTime binds nil or the zero time as SQL NULL.
func NullableTime(v *time.Time) any {
	if v == nil || v.IsZero() {
		return nil
	}
	return v.UTC()
}

// TimePtr converts a scanned nullable timestamp.
func TimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}
