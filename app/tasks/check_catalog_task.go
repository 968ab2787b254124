package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

// CheckCatalogTask runs one catalog check. MaxRetries is zero: the fetch
// controller already retries transiently inside the run, and re-running a
// failed check from here would advance the instability counter more than
// once per tick.
type CheckCatalogTask struct {
	Task
	runner  CheckRunner
	trigger string
}

func NewCheckCatalogTask(runner CheckRunner, trigger string) *CheckCatalogTask {
	task := NewTask(TaskTypeCheckCatalog)
	task.MaxRetries = 0

	return &CheckCatalogTask{
		Task:    task,
		runner:  runner,
		trigger: trigger,
	}
}

func (t *CheckCatalogTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result := t.runner.RunCheck(ctx, t.trigger)

	if result.Skipped {
		slog.Debug("Catalog check skipped", "trigger", t.trigger)
		return nil
	}
	if !result.Success {
		return fmt.Errorf("catalog check failed: %s", result.Error)
	}

	slog.Debug("Catalog check task finished", "trigger", t.trigger,
		"total", result.TotalWorks, "new", len(result.NewWorks),
		"updated", len(result.UpdatedWorks), "degraded", result.Degraded)

	return nil
}
