package main

import (
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
)

// NewSessionID returns a fresh, time-ordered session identifier
func NewSessionID() string {
	return ulid.Make().String()
}

// ValidSessionID reports whether s is a well-formed session identifier
func ValidSessionID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}

// truncate cuts s to at most n runes
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
