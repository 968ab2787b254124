package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"contestwatch/app/database"
)

// markerRetention mirrors the monitor's per-run sweep; the daily task is
// the backstop for deployments where checks rarely succeed.
const markerRetention = 30 * 24 * time.Hour

type CleanupMarkersTask struct {
	Task
	markerRepo database.MarkerRepository
}

func NewCleanupMarkersTask(markerRepo database.MarkerRepository) *CleanupMarkersTask {
	return &CleanupMarkersTask{
		Task:       NewTask(TaskTypeCleanupMarkers),
		markerRepo: markerRepo,
	}
}

func (t *CleanupMarkersTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	cutoff := time.Now().UTC().Add(-markerRetention)
	removed, err := t.markerRepo.DeleteOlderThan(cutoff)
	if err != nil {
		return fmt.Errorf("failed to delete expired markers: %w", err)
	}

	if removed > 0 {
		slog.Info("Expired change markers removed", "count", removed, "cutoff", cutoff)
	}

	return nil
}
