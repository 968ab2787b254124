package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"contestwatch/app/database"
	"contestwatch/app/detector"
	"contestwatch/app/extractor"
	"contestwatch/app/notifier"
)

// notifyWindow is the rolling window for notification bursts: at most one
// burst is dispatched per window, regardless of how many runs complete.
const notifyWindow = 60 * time.Second

// maxListedWorks bounds how many works a burst message names before
// collapsing the rest into a "+N more" summary.
const maxListedWorks = 3

// Outcome reports what the coordinator did with one change-set.
type Outcome struct {
	NewCount          int
	UpdatedCount      int
	NotificationCount int
	Errors            []string
}

// Coordinator folds a classified change-set into the catalog through the
// merge-policy write path, maintains change markers, and dispatches
// rate-limited notifications. A failure on any single item is recorded
// and skipped; it never aborts the rest of the batch.
type Coordinator struct {
	workRepo   database.WorkRepository
	markerRepo database.MarkerRepository
	notifier   notifier.Notifier

	notifyNew     bool
	notifyUpdated bool

	burstMu     sync.Mutex
	lastBurstAt time.Time
	now         func() time.Time
}

func NewCoordinator(workRepo database.WorkRepository, markerRepo database.MarkerRepository,
	n notifier.Notifier, notifyNew, notifyUpdated bool) *Coordinator {
	return &Coordinator{
		workRepo:      workRepo,
		markerRepo:    markerRepo,
		notifier:      n,
		notifyNew:     notifyNew,
		notifyUpdated: notifyUpdated,
		now:           time.Now,
	}
}

func (c *Coordinator) Process(ctx context.Context, changeSet *detector.ChangeSet, runID string) Outcome {
	var outcome Outcome
	now := c.now().UTC()

	for _, record := range changeSet.New {
		candidate := workFromRecord(record, now)
		candidate.VersionStatus = database.StatusNew

		if _, err := c.workRepo.UpsertFromScrape(candidate); err != nil {
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("insert %s: %v", record.BusinessKey, err))
			slog.Error("Failed to persist new work", "run_id", runID, "business_key", record.BusinessKey, "error", err)
			continue
		}
		outcome.NewCount++

		c.refreshMarker(record.BusinessKey, "new", nil, now, &outcome)
	}

	for _, updated := range changeSet.Updated {
		candidate := partialUpdate(updated, now)

		if _, err := c.workRepo.UpsertFromScrape(candidate); err != nil {
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("update %s: %v", updated.Record.BusinessKey, err))
			slog.Error("Failed to persist updated work", "run_id", runID, "business_key", updated.Record.BusinessKey, "error", err)
			continue
		}
		outcome.UpdatedCount++

		c.refreshMarker(updated.Record.BusinessKey, "updated", updated.ChangeTypes, now, &outcome)
	}

	outcome.NotificationCount = c.dispatchNotifications(ctx, changeSet, now)

	slog.Info("Change-set processed", "run_id", runID,
		"new", outcome.NewCount, "updated", outcome.UpdatedCount,
		"unchanged", len(changeSet.Unchanged),
		"notifications", outcome.NotificationCount, "errors", len(outcome.Errors))

	return outcome
}

// workFromRecord normalizes an extracted record into catalog-entry shape
// with defaulted user fields.
func workFromRecord(record extractor.WorkRecord, now time.Time) database.Work {
	return database.Work{
		BusinessKey:     record.BusinessKey,
		Title:           record.Title,
		Author:          record.Author,
		LastUpdateLabel: record.LastUpdateLabel,
		UpdateTimestamp: record.UpdateTimestamp,
		SourceURL:       record.SourceURL,
		LastSeenAt:      &now,
	}
}

// partialUpdate builds a candidate carrying only the changed fields plus
// monitoring metadata; the merge policy keeps everything else as stored.
func partialUpdate(updated detector.UpdatedWork, now time.Time) database.Work {
	candidate := database.Work{
		BusinessKey:     updated.Record.BusinessKey,
		LastUpdateLabel: updated.Record.LastUpdateLabel,
		UpdateTimestamp: updated.Record.UpdateTimestamp,
		SourceURL:       updated.Record.SourceURL,
		VersionStatus:   database.StatusUpdated,
		LastSeenAt:      &now,
	}

	for _, change := range updated.ChangeTypes {
		switch change {
		case detector.ChangeTitle:
			candidate.Title = updated.Record.Title
		case detector.ChangeAuthor:
			candidate.Author = updated.Record.Author
		}
	}

	return candidate
}

func (c *Coordinator) refreshMarker(businessKey, markerType string, changeTypes []string, now time.Time, outcome *Outcome) {
	marker := database.ChangeMarker{
		BusinessKey: businessKey,
		Type:        markerType,
		ChangeTypes: changeTypes,
		MarkedAt:    now,
	}
	if err := c.markerRepo.Upsert(marker); err != nil {
		outcome.Errors = append(outcome.Errors, fmt.Sprintf("marker %s: %v", businessKey, err))
		slog.Error("Failed to refresh change marker", "business_key", businessKey, "error", err)
	}
}

// dispatchNotifications sends at most one burst per rolling window. New
// and updated works are independent channels inside the burst. The burst
// mutex serializes overlapping runs (the scheduler worker and a manual
// API trigger can process change-sets concurrently) so the window check
// and the window stamp stay atomic.
func (c *Coordinator) dispatchNotifications(ctx context.Context, changeSet *detector.ChangeSet, now time.Time) int {
	if changeSet.Empty() {
		return 0
	}

	c.burstMu.Lock()
	defer c.burstMu.Unlock()

	if !c.lastBurstAt.IsZero() && now.Sub(c.lastBurstAt) < notifyWindow {
		slog.Debug("Notification burst suppressed by rate limit",
			"since_last", now.Sub(c.lastBurstAt).String())
		return 0
	}

	sent := 0

	if c.notifyNew && len(changeSet.New) > 0 {
		payload := notifier.Payload{
			Title:   "New works listed",
			Message: formatWorkList(newWorkLabels(changeSet.New)),
		}
		if err := c.notifier.Notify(ctx, notifier.KindNew, payload); err != nil {
			slog.Warn("Notification dispatch failed", "kind", notifier.KindNew, "error", err)
		} else {
			sent++
		}
	}

	if c.notifyUpdated && len(changeSet.Updated) > 0 {
		payload := notifier.Payload{
			Title:   "Works updated",
			Message: formatWorkList(updatedWorkLabels(changeSet.Updated)),
		}
		if err := c.notifier.Notify(ctx, notifier.KindUpdated, payload); err != nil {
			slog.Warn("Notification dispatch failed", "kind", notifier.KindUpdated, "error", err)
		} else {
			sent++
		}
	}

	if sent > 0 {
		c.lastBurstAt = now
	}

	return sent
}

func newWorkLabels(records []extractor.WorkRecord) []string {
	labels := make([]string, 0, len(records))
	for _, record := range records {
		labels = append(labels, fmt.Sprintf("No.%s %s", record.BusinessKey, record.Title))
	}
	return labels
}

func updatedWorkLabels(updated []detector.UpdatedWork) []string {
	labels := make([]string, 0, len(updated))
	for _, u := range updated {
		labels = append(labels, fmt.Sprintf("No.%s %s", u.Record.BusinessKey, u.Record.Title))
	}
	return labels
}

// formatWorkList names a single work outright; for more it lists up to
// maxListedWorks and appends a "+N more" summary.
func formatWorkList(labels []string) string {
	if len(labels) == 1 {
		return labels[0]
	}

	listed := labels
	if len(listed) > maxListedWorks {
		listed = listed[:maxListedWorks]
	}

	message := strings.Join(listed, ", ")
	if rest := len(labels) - len(listed); rest > 0 {
		message += fmt.Sprintf(" +%d more", rest)
	}
	return message
}
