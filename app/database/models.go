package database

import (
	"time"
)

// Version status values for a catalog entry.
const (
	StatusNew     = "new"
	StatusUpdated = "updated"
	StatusLatest  = "latest"
)

// Work is one catalog entry: the persistent mirror of a listing entry
// enriched with user data. ID is the surrogate key, assigned once at
// first insert and never reused; BusinessKey is the listing's own entry
// number and the only valid join key between scrapes and the catalog.
type Work struct {
	ID              string
	BusinessKey     string
	Title           string
	Author          string
	LastUpdateLabel string
	UpdateTimestamp *time.Time
	SourceURL       string

	// User-owned fields: never touched by the scrape pipeline.
	RatingTotal  int
	Review       string
	IsPlayed     bool
	LastPlayedAt *time.Time

	VersionStatus string
	DataProtected bool
	LastSeenAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ChangeMarker flags a recently added or updated entry for UI badging.
// Markers are cleared by consumer confirmation or garbage-collected by age.
type ChangeMarker struct {
	BusinessKey string
	Type        string // "new" or "updated"
	ChangeTypes []string
	MarkedAt    time.Time
	Confirmed   bool
}

// RunState is the singleton monitoring state shared by all trigger sources.
type RunState struct {
	LastCheckAt            *time.Time
	LastErrorAt            *time.Time
	ConsecutiveErrors      int
	CurrentIntervalMinutes int
}

// RunSummary is one row of the bounded run-history log.
type RunSummary struct {
	ID           int64
	RunAt        time.Time
	Trigger      string
	NewCount     int
	UpdatedCount int
	TotalCount   int
	Error        string
}

// CachedDocument is the last successfully fetched document, kept only for
// graceful degradation after a failed fetch.
type CachedDocument struct {
	Body       string
	EntryCount int
	FetchedAt  time.Time
}
