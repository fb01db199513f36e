package mpointers

import "time"

// String returns a pointer to the given string.
func String(s string) *string {
	return &s
}

// Bool returns a pointer to the given bool.
func Bool(b bool) *bool {
	return &b
}

// Time returns a pointer to the given time.Time.
func Time(t time.Time) *time.Time {
	return &t
}

// Int64 returns a pointer to the given int64.
func Int64(i int64) *int64 {
	return &i
}

// Int returns a pointer to the given int.
func Int(i int) *int {
	return &i
}
