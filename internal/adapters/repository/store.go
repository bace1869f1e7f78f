// Package repository keeps each user's scored events ranked by match score.
package repository

import (
	"context"
	"time"
)

// Entry is one scored event in a user's ranking.
type Entry struct {
	Rank           int
	EventID        string
	Name           string
	Score          int
	IsMusicEvent   bool
	Classification string
	JobID          string
	UpdatedAt      time.Time
}

// Store provides read/write access to per-user rankings.
type Store interface {
	// Upsert records e for userID, replacing any earlier score for the same
	// event. Returns true if the event was new for this user.
	Upsert(ctx context.Context, userID string, e Entry) (bool, error)

	// Rank returns the dense rank and entry of one event for a user.
	// Returns ErrNotFound if the user or event is unknown.
	Rank(ctx context.Context, userID, eventID string) (Entry, error)

	// TopN returns the user's top-N events ordered by score desc, then
	// event ID asc. Equal scores share a rank.
	TopN(ctx context.Context, userID string, n int) ([]Entry, error)

	// Count returns the number of (user, event) entries.
	Count(ctx context.Context) int

	// Users returns the number of users with at least one entry.
	Users(ctx context.Context) int
}
