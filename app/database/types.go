package database

import (
	"time"
)

// WorkRepository is the catalog access surface. UpsertFromScrape is the
// only write path the monitoring pipeline may use; UpdateUserFields is the
// explicit user-edit contract.
type WorkRepository interface {
	GetAll() ([]Work, error)
	GetByBusinessKey(businessKey string) (*Work, error)
	GetCount() (int, error)

	UpsertFromScrape(candidate Work) (string, error)
	UpdateUserFields(businessKey string, ratingTotal int, review string, isPlayed bool) error
	SetVersionStatus(businessKey string, status string) error
}

type MarkerRepository interface {
	GetAll() ([]ChangeMarker, error)
	Get(businessKey string) (*ChangeMarker, error)
	Upsert(marker ChangeMarker) error
	Confirm(businessKey string) error
	Delete(businessKey string) error
	DeleteOlderThan(cutoff time.Time) (int, error)
}

// StateRepository owns the run-state singleton, the bounded run-history
// log, and the degradation cache.
type StateRepository interface {
	GetRunState() (*RunState, error)
	SaveRunState(state RunState) error

	AppendRunSummary(summary RunSummary) error
	GetRunHistory(limit int) ([]RunSummary, error)

	GetCachedDocument() (*CachedDocument, error)
	SaveCachedDocument(doc CachedDocument) error
}
