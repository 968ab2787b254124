package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"contestwatch/app/database"
	"contestwatch/app/monitor"
)

type mockRunner struct {
	triggers []string
	result   monitor.RunResult
}

func (m *mockRunner) RunCheck(_ context.Context, trigger string) monitor.RunResult {
	m.triggers = append(m.triggers, trigger)
	return m.result
}

// mockMarkerRepo only records DeleteOlderThan; the rest satisfies the
// repository interface.
type mockMarkerRepo struct {
	cutoff  *time.Time
	removed int
	err     error
}

func (m *mockMarkerRepo) GetAll() ([]database.ChangeMarker, error)         { return nil, nil }
func (m *mockMarkerRepo) Get(string) (*database.ChangeMarker, error)       { return nil, nil }
func (m *mockMarkerRepo) Upsert(database.ChangeMarker) error               { return nil }
func (m *mockMarkerRepo) Confirm(string) error                             { return nil }
func (m *mockMarkerRepo) Delete(string) error                              { return nil }

func (m *mockMarkerRepo) DeleteOlderThan(cutoff time.Time) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.cutoff = &cutoff
	return m.removed, nil
}

func TestNewTask(t *testing.T) {
	task := NewTask(TaskTypeCheckCatalog)

	if task.Type != TaskTypeCheckCatalog {
		t.Errorf("Expected type %s, got %s", TaskTypeCheckCatalog, task.Type)
	}
	if task.RetryCount != 0 {
		t.Errorf("Expected retry count 0, got %d", task.RetryCount)
	}
	if task.MaxRetries != DefaultMaxRetries {
		t.Errorf("Expected max retries %d, got %d", DefaultMaxRetries, task.MaxRetries)
	}
	if task.ID == "" {
		t.Error("Expected a non-empty task ID")
	}
}

func TestTaskRetryAccounting(t *testing.T) {
	task := NewTask(TaskTypeCleanupMarkers)

	for i := 0; i < DefaultMaxRetries; i++ {
		if !task.CanRetry() {
			t.Fatalf("Expected CanRetry at count %d", task.RetryCount)
		}
		task.IncrementRetryCount()
	}

	if task.CanRetry() {
		t.Errorf("Expected retries exhausted at count %d", task.RetryCount)
	}
}

func TestCheckCatalogTaskDoesNotRetry(t *testing.T) {
	task := NewCheckCatalogTask(&mockRunner{}, monitor.TriggerScheduled)

	if task.CanRetry() {
		t.Error("Check tasks must not be retried by the scheduler")
	}
}

func TestCheckCatalogTaskExecute(t *testing.T) {
	runner := &mockRunner{result: monitor.RunResult{Success: true, TotalWorks: 2}}
	task := NewCheckCatalogTask(runner, monitor.TriggerScheduled)

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if len(runner.triggers) != 1 || runner.triggers[0] != monitor.TriggerScheduled {
		t.Errorf("Expected one scheduled run, got %v", runner.triggers)
	}
}

func TestCheckCatalogTaskSurfacesFailure(t *testing.T) {
	runner := &mockRunner{result: monitor.RunResult{Success: false, Error: "connection refused"}}
	task := NewCheckCatalogTask(runner, monitor.TriggerScheduled)

	err := task.Execute(context.Background())
	if err == nil {
		t.Fatal("Expected an error from a failed run")
	}
}

func TestCheckCatalogTaskHonorsSkip(t *testing.T) {
	runner := &mockRunner{result: monitor.RunResult{Success: true, Skipped: true}}
	task := NewCheckCatalogTask(runner, monitor.TriggerScheduled)

	if err := task.Execute(context.Background()); err != nil {
		t.Errorf("A skipped run is not a failure, got %v", err)
	}
}

func TestCheckCatalogTaskCancelledContext(t *testing.T) {
	runner := &mockRunner{}
	task := NewCheckCatalogTask(runner, monitor.TriggerScheduled)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := task.Execute(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if len(runner.triggers) != 0 {
		t.Error("A cancelled task must not run the check")
	}
}

func TestCleanupMarkersTaskExecute(t *testing.T) {
	repo := &mockMarkerRepo{removed: 3}
	task := NewCleanupMarkersTask(repo)

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected success, got %v", err)
	}

	if repo.cutoff == nil {
		t.Fatal("Expected DeleteOlderThan to be called")
	}
	want := time.Now().UTC().Add(-markerRetention)
	if diff := want.Sub(*repo.cutoff); diff < 0 || diff > time.Minute {
		t.Errorf("Cutoff %v is not about %v ago", repo.cutoff, markerRetention)
	}
}

func TestCleanupMarkersTaskSurfacesRepositoryError(t *testing.T) {
	repo := &mockMarkerRepo{err: errors.New("database is locked")}
	task := NewCleanupMarkersTask(repo)

	if err := task.Execute(context.Background()); err == nil {
		t.Error("Expected the repository error surfaced")
	}
}

func TestEnqueueTaskQueueFull(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &Scheduler{
		ctx:       ctx,
		cancel:    cancel,
		taskQueue: make(chan TaskInterface, 1),
	}

	first := NewCheckCatalogTask(&mockRunner{}, monitor.TriggerScheduled)
	if err := s.EnqueueTask(first); err != nil {
		t.Fatalf("Expected first enqueue to succeed, got %v", err)
	}

	second := NewCheckCatalogTask(&mockRunner{}, monitor.TriggerScheduled)
	if err := s.EnqueueTask(second); err == nil {
		t.Error("Expected an error when the queue is full")
	}
}

func TestStopWaitsForPendingRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		ctx:       ctx,
		cancel:    cancel,
		taskQueue: make(chan TaskInterface, 1),
	}

	// A failing retryable task schedules its re-enqueue in a background
	// goroutine. Stop must wait that goroutine out before closing the
	// queue; otherwise the re-enqueue races a send on a closed channel.
	task := NewCleanupMarkersTask(&mockMarkerRepo{err: errors.New("database is locked")})
	s.executeTask(task)

	if task.GetRetryCount() != 1 {
		t.Fatalf("Expected a retry scheduled, got count %d", task.GetRetryCount())
	}

	s.Stop()

	if len(s.taskQueue) != 0 {
		t.Error("Expected no retry enqueued after stop")
	}
}

func TestEnqueueTaskAfterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		ctx:       ctx,
		cancel:    cancel,
		taskQueue: make(chan TaskInterface),
	}
	cancel()

	task := NewCheckCatalogTask(&mockRunner{}, monitor.TriggerScheduled)
	if err := s.EnqueueTask(task); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled after stop, got %v", err)
	}
}
