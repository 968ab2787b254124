package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"contestwatch/app/cfg"
	"contestwatch/app/database"
	"contestwatch/app/monitor"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const cleanupInterval = 24 * time.Hour

// Scheduler drives the periodic catalog check and housekeeping tasks.
// A single worker drains the queue, so at most one check run executes at
// a time regardless of how many trigger sources enqueue one.
type Scheduler struct {
	runner     CheckRunner
	markerRepo database.MarkerRepository
	interval   time.Duration
	enabled    bool
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	taskQueue  chan TaskInterface
}

func NewScheduler(runner CheckRunner, markerRepo database.MarkerRepository) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		runner:     runner,
		markerRepo: markerRepo,
		interval:   time.Duration(cfg.SchedulerTick) * time.Second,
		enabled:    cfg.EnableScheduled,
		ctx:        ctx,
		cancel:     cancel,
		taskQueue:  make(chan TaskInterface, 100),
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.worker()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueStartupTasks()

		lastCleanup := time.Now()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()

				if time.Since(lastCleanup) >= cleanupInterval {
					lastCleanup = time.Now()
					if err := s.EnqueueTask(NewCleanupMarkersTask(s.markerRepo)); err != nil {
						slog.Warn("Failed to enqueue CleanupMarkersTask", "error", err)
					}
				}
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueueStartupTasks() {
	if err := s.EnqueueTask(NewCleanupMarkersTask(s.markerRepo)); err != nil {
		slog.Warn("Failed to enqueue CleanupMarkersTask", "error", err)
	}

	if !s.enabled {
		slog.Debug("Scheduled checks disabled, skipping startup check")
		return
	}

	if err := s.EnqueueTask(NewCheckCatalogTask(s.runner, monitor.TriggerScheduled)); err != nil {
		slog.Warn("Failed to enqueue CheckCatalogTask", "error", err)
	}
}

// enqueueTasks fires a scheduled check on every tick; the monitor's own
// time gate decides whether the check is actually due.
func (s *Scheduler) enqueueTasks() {
	if !s.enabled {
		return
	}

	if err := s.EnqueueTask(NewCheckCatalogTask(s.runner, monitor.TriggerScheduled)); err != nil {
		slog.Warn("Failed to enqueue CheckCatalogTask", "error", err)
	}
}

func (s *Scheduler) worker() {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		slog.Debug("Task finished", "type", string(task.GetType()), "id", task.GetID(), "duration", task.GetDuration().String())
		return
	}

	slog.Error("Task execution failed", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		return
	}

	task.IncrementRetryCount()
	retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
	if retryDelay > 30*time.Second {
		retryDelay = 30 * time.Second
	}

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	// The retry goroutine joins the WaitGroup so Stop cannot close the
	// queue while a re-enqueue is still pending.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "error", retryErr)
			}
		}
	}()
}
