package api

import (
	"context"

	"contestwatch/app/database"
	"contestwatch/app/monitor"
	"contestwatch/app/tasks"
)

// CheckRunnerInterface is the slice of the monitor the API needs for
// manually triggered checks.
type CheckRunnerInterface interface {
	RunCheck(ctx context.Context, trigger string) monitor.RunResult
}

var _ CheckRunnerInterface = (*monitor.Monitor)(nil)

type Handler struct {
	workRepo   database.WorkRepository
	markerRepo database.MarkerRepository
	stateRepo  database.StateRepository
	runner     CheckRunnerInterface
	scheduler  tasks.TaskSchedulerInterface
}
