package tasks

import (
	"context"

	"contestwatch/app/monitor"
)

// TaskSchedulerInterface defines the interface for background task
// scheduling. The scheduler owns the task queue and the single worker
// that drains it; the catalog check itself stays serialized this way
// without any locking in the monitor.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

// CheckRunner is the slice of the monitor the check task needs.
type CheckRunner interface {
	RunCheck(ctx context.Context, trigger string) monitor.RunResult
}
