// Package types contains common types used across the application
package types

import (
	"time"

	"github.com/okian/sonar/internal/domain/model"
)

// RankedEvent is one row of a user's event ranking as served over HTTP.
type RankedEvent struct {
	Rank           int       `json:"rank"`
	EventID        string    `json:"event_id"`
	Name           string    `json:"name,omitempty"`
	Score          int       `json:"score"`
	IsMusicEvent   bool      `json:"is_music_event"`
	Classification string    `json:"classification"`
	JobID          string    `json:"job_id,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RankingJob asks for a batch of events to be scored against one profile
// and merged into that user's ranking.
type RankingJob struct {
	JobID   string                 `json:"job_id,omitempty"`
	Profile model.UserTasteProfile `json:"profile"`
	Events  []model.Event          `json:"events"`
}

// Ack acknowledges a ranking job submission.
type Ack struct {
	Status    string `json:"status"`
	JobID     string `json:"job_id"`
	Tasks     int    `json:"tasks"`
	Duplicate bool   `json:"duplicate"`
}

// Ack statuses.
const (
	AckAccepted  = "accepted"
	AckDuplicate = "duplicate"
)

// Stats summarizes service state for GET /stats.
type Stats struct {
	Started        bool    `json:"started"`
	QueueLength    int     `json:"queue_length"`
	QueueCapacity  int     `json:"queue_capacity"`
	Workers        int     `json:"workers"`
	Users          int     `json:"users"`
	RankedEntries  int     `json:"ranked_entries"`
	SeenJobs       int64   `json:"seen_jobs"`
	CatalogArtists int64   `json:"catalog_artists"`
	BreakerState   string  `json:"breaker_state"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}
