package database

import (
	"time"
)

// mergeFromScrape overlays a freshly extracted candidate onto an existing
// catalog entry. Pipeline-owned fields take the candidate's values;
// rating, review, played state and last-played time always come from the
// existing entry. This is what lets the pipeline re-run arbitrarily often
// (including against a stale cache) without discarding a user's
// evaluation.
func mergeFromScrape(existing, candidate Work, now time.Time) Work {
	merged := existing

	if candidate.Title != "" {
		merged.Title = candidate.Title
	}
	if candidate.Author != "" {
		merged.Author = candidate.Author
	}
	if candidate.LastUpdateLabel != "" {
		merged.LastUpdateLabel = candidate.LastUpdateLabel
	}
	if candidate.UpdateTimestamp != nil {
		merged.UpdateTimestamp = candidate.UpdateTimestamp
	}
	if candidate.SourceURL != "" {
		merged.SourceURL = candidate.SourceURL
	}
	if candidate.VersionStatus != "" {
		merged.VersionStatus = candidate.VersionStatus
	}
	if candidate.LastSeenAt != nil {
		merged.LastSeenAt = candidate.LastSeenAt
	}

	// User-owned fields stay exactly as stored.
	merged.RatingTotal = existing.RatingTotal
	merged.Review = existing.Review
	merged.IsPlayed = existing.IsPlayed
	merged.LastPlayedAt = existing.LastPlayedAt

	merged.DataProtected = true
	merged.UpdatedAt = now

	return merged
}
