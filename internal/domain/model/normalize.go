package model

import (
	"strings"
	"unicode"
)

// NormalizeKey lower-cases s and collapses every run of non alphanumeric
// runes to a single space, so "Artist-X", "artist x" and " ARTIST  X " all
// compare equal.
func NormalizeKey(s string) string {
	var out strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			out.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			out.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(out.String())
}

// Task is one (profile, event) pair queued for asynchronous scoring.
type Task struct {
	JobID   string
	UserID  string
	Profile *UserTasteProfile // shared read-only across a job's tasks
	Event   Event
}
