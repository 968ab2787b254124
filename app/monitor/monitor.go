package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"contestwatch/app/database"
	"contestwatch/app/detector"
	"contestwatch/app/extractor"
	"contestwatch/app/notifier"
)

// Trigger sources for a check run. The gap applied before skipping a run
// depends on who asked.
const (
	TriggerManual    = "manual"
	TriggerAutoVisit = "auto-visit"
	TriggerAutoOpen  = "auto-open"
	TriggerScheduled = "scheduled"
)

const (
	// unstableThreshold is the consecutive-failure count at which the
	// source is declared unstable and the check interval starts doubling.
	unstableThreshold = 5

	// markerRetention is how long unconfirmed change markers survive
	// before the post-run sweep removes them.
	markerRetention = 30 * 24 * time.Hour

	// cacheAgeFactor bounds degradation: a cached document older than
	// cacheAgeFactor check intervals is too stale to serve.
	cacheAgeFactor = 2

	// minPlausibleEntries rejects degradation from a cache whose entry
	// count suggests the stored document was itself broken.
	minPlausibleEntries = 1
)

// RunResult is what a single check run reports back to its caller.
type RunResult struct {
	Success           bool
	Skipped           bool
	Degraded          bool
	NewWorks          []extractor.WorkRecord
	UpdatedWorks      []detector.UpdatedWork
	TotalWorks        int
	Error             string
	ConsecutiveErrors int
}

// Fetcher retrieves the remote listing document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Monitor orchestrates one check run end to end: gate, fetch, extract,
// detect, coordinate, and bookkeeping. Time gates are advisory only;
// concurrent runs are tolerated and resolve through last-write-wins on
// the shared state row.
type Monitor struct {
	fetcher     Fetcher
	engine      *extractor.Engine
	workRepo    database.WorkRepository
	stateRepo   database.StateRepository
	markerRepo  database.MarkerRepository
	coordinator *Coordinator
	notifier    notifier.Notifier

	sourceURL       string
	nominalInterval int // minutes
	intervalCap     int // minutes
	visitGap        time.Duration
	openGap         time.Duration

	now func() time.Time
}

type Options struct {
	SourceURL       string
	CheckInterval   int // minutes
	IntervalCap     int // minutes
	VisitGapMinutes int
	OpenGapMinutes  int
}

func New(f Fetcher, engine *extractor.Engine, workRepo database.WorkRepository,
	stateRepo database.StateRepository, markerRepo database.MarkerRepository,
	coordinator *Coordinator, n notifier.Notifier, opts Options) *Monitor {
	return &Monitor{
		fetcher:         f,
		engine:          engine,
		workRepo:        workRepo,
		stateRepo:       stateRepo,
		markerRepo:      markerRepo,
		coordinator:     coordinator,
		notifier:        n,
		sourceURL:       opts.SourceURL,
		nominalInterval: opts.CheckInterval,
		intervalCap:     opts.IntervalCap,
		visitGap:        time.Duration(opts.VisitGapMinutes) * time.Minute,
		openGap:         time.Duration(opts.OpenGapMinutes) * time.Minute,
		now:             time.Now,
	}
}

// RunCheck performs one full check run for the given trigger source.
func (m *Monitor) RunCheck(ctx context.Context, trigger string) RunResult {
	now := m.now().UTC()
	state := m.loadState()

	if gap := m.gapFor(trigger, state); gap > 0 && state.LastCheckAt != nil {
		if since := now.Sub(*state.LastCheckAt); since < gap {
			slog.Debug("Check skipped by time gate", "trigger", trigger,
				"since_last", since.String(), "gap", gap.String())
			return RunResult{Success: true, Skipped: true, ConsecutiveErrors: state.ConsecutiveErrors}
		}
	}

	runID := uuid.NewString()
	slog.Info("Check run started", "run_id", runID, "trigger", trigger)

	body, err := m.fetcher.Fetch(ctx, m.sourceURL)
	if err != nil {
		return m.handleFetchFailure(ctx, trigger, state, now, err)
	}

	result := m.engine.Run(body)
	if !result.Success {
		return m.handleParseFailure(trigger, state, now, result)
	}

	catalog, err := m.workRepo.GetAll()
	if err != nil {
		return m.failRun(trigger, state, now, fmt.Errorf("load catalog: %w", err))
	}

	changeSet := detector.Detect(result.Records, catalog, now)
	outcome := m.coordinator.Process(ctx, changeSet, runID)

	if err := m.stateRepo.SaveCachedDocument(database.CachedDocument{
		Body:       body,
		EntryCount: len(result.Records),
		FetchedAt:  now,
	}); err != nil {
		slog.Warn("Failed to refresh degradation cache", "run_id", runID, "error", err)
	}

	state.LastCheckAt = &now
	state.ConsecutiveErrors = 0
	state.CurrentIntervalMinutes = m.nominalInterval
	m.saveState(state)

	m.appendHistory(database.RunSummary{
		RunAt:        now,
		Trigger:      trigger,
		NewCount:     outcome.NewCount,
		UpdatedCount: outcome.UpdatedCount,
		TotalCount:   len(result.Records),
	})

	m.sweepMarkers(now)

	slog.Info("Check run finished", "run_id", runID, "trigger", trigger,
		"strategy", result.StrategyUsed, "total", len(result.Records),
		"new", outcome.NewCount, "updated", outcome.UpdatedCount)

	return RunResult{
		Success:      true,
		NewWorks:     changeSet.New,
		UpdatedWorks: changeSet.Updated,
		TotalWorks:   len(result.Records),
	}
}

// handleFetchFailure records an exhausted fetch, advances the instability
// counter, and serves the degradation cache when it is fresh enough.
func (m *Monitor) handleFetchFailure(ctx context.Context, trigger string, state database.RunState, now time.Time, fetchErr error) RunResult {
	state.ConsecutiveErrors++
	state.LastCheckAt = &now
	state.LastErrorAt = &now

	if state.ConsecutiveErrors >= unstableThreshold {
		m.escalateUnstable(ctx, &state)
	}

	m.saveState(state)
	m.appendHistory(database.RunSummary{
		RunAt:   now,
		Trigger: trigger,
		Error:   fetchErr.Error(),
	})

	if cache := m.usableCache(now, state.CurrentIntervalMinutes); cache != nil {
		slog.Warn("Fetch failed, serving cached snapshot", "trigger", trigger,
			"cache_age", now.Sub(cache.FetchedAt).String(), "error", fetchErr)
		return RunResult{
			Success:           true,
			Degraded:          true,
			TotalWorks:        cache.EntryCount,
			ConsecutiveErrors: state.ConsecutiveErrors,
		}
	}

	slog.Error("Check run failed", "trigger", trigger,
		"consecutive_errors", state.ConsecutiveErrors, "error", fetchErr)

	return RunResult{
		Success:           false,
		Error:             fetchErr.Error(),
		ConsecutiveErrors: state.ConsecutiveErrors,
	}
}

// handleParseFailure surfaces an extraction failure without touching the
// instability counter: the document arrived, it just was not usable, and
// escalation on a transient layout change would be noise.
func (m *Monitor) handleParseFailure(trigger string, state database.RunState, now time.Time, result extractor.Result) RunResult {
	state.LastCheckAt = &now
	state.LastErrorAt = &now
	m.saveState(state)

	err := fmt.Sprintf("extraction failed: no strategy matched (markers=%v lines=%d)",
		result.Diagnostics.MarkerHits, result.Diagnostics.Lines)

	m.appendHistory(database.RunSummary{
		RunAt:   now,
		Trigger: trigger,
		Error:   err,
	})

	slog.Error("Extraction produced no records", "trigger", trigger,
		"diagnostics", fmt.Sprintf("%+v", result.Diagnostics))

	return RunResult{
		Success:           false,
		Error:             err,
		ConsecutiveErrors: state.ConsecutiveErrors,
	}
}

// failRun records an internal failure that is neither a fetch nor a parse
// problem, without advancing the instability counter.
func (m *Monitor) failRun(trigger string, state database.RunState, now time.Time, err error) RunResult {
	state.LastCheckAt = &now
	state.LastErrorAt = &now
	m.saveState(state)

	m.appendHistory(database.RunSummary{RunAt: now, Trigger: trigger, Error: err.Error()})

	slog.Error("Check run failed", "trigger", trigger, "error", err)

	return RunResult{
		Success:           false,
		Error:             err.Error(),
		ConsecutiveErrors: state.ConsecutiveErrors,
	}
}

// escalateUnstable reports the source as unstable and backs the check
// interval off, doubling per failing run up to the configured cap.
func (m *Monitor) escalateUnstable(ctx context.Context, state *database.RunState) {
	doubled := state.CurrentIntervalMinutes * 2
	if doubled > m.intervalCap {
		doubled = m.intervalCap
	}
	state.CurrentIntervalMinutes = doubled

	slog.Warn("Source marked unstable", "consecutive_errors", state.ConsecutiveErrors,
		"interval_minutes", state.CurrentIntervalMinutes)

	payload := notifier.Payload{
		Title: "Source unstable",
		Message: fmt.Sprintf("%d consecutive check failures, interval backed off to %d minutes",
			state.ConsecutiveErrors, state.CurrentIntervalMinutes),
	}
	if err := m.notifier.Notify(ctx, notifier.KindSystemUnstable, payload); err != nil {
		slog.Warn("Notification dispatch failed", "kind", notifier.KindSystemUnstable, "error", err)
	}
}

// usableCache returns the degradation cache when it is younger than
// cacheAgeFactor check intervals and holds a plausible entry count.
func (m *Monitor) usableCache(now time.Time, intervalMinutes int) *database.CachedDocument {
	cache, err := m.stateRepo.GetCachedDocument()
	if err != nil || cache == nil {
		return nil
	}

	maxAge := time.Duration(cacheAgeFactor*intervalMinutes) * time.Minute
	if now.Sub(cache.FetchedAt) >= maxAge {
		return nil
	}
	if cache.EntryCount < minPlausibleEntries {
		return nil
	}
	return cache
}

func (m *Monitor) gapFor(trigger string, state database.RunState) time.Duration {
	switch trigger {
	case TriggerAutoVisit:
		return m.visitGap
	case TriggerAutoOpen:
		return m.openGap
	case TriggerScheduled:
		return time.Duration(state.CurrentIntervalMinutes) * time.Minute
	default:
		return 0
	}
}

func (m *Monitor) loadState() database.RunState {
	state, err := m.stateRepo.GetRunState()
	if err != nil || state == nil {
		if err != nil {
			slog.Warn("Failed to load run state, starting fresh", "error", err)
		}
		return database.RunState{CurrentIntervalMinutes: m.nominalInterval}
	}
	if state.CurrentIntervalMinutes <= 0 {
		state.CurrentIntervalMinutes = m.nominalInterval
	}
	return *state
}

func (m *Monitor) saveState(state database.RunState) {
	if err := m.stateRepo.SaveRunState(state); err != nil {
		slog.Error("Failed to save run state", "error", err)
	}
}

func (m *Monitor) appendHistory(summary database.RunSummary) {
	if err := m.stateRepo.AppendRunSummary(summary); err != nil {
		slog.Warn("Failed to append run history", "error", err)
	}
}

func (m *Monitor) sweepMarkers(now time.Time) {
	removed, err := m.markerRepo.DeleteOlderThan(now.Add(-markerRetention))
	if err != nil {
		slog.Warn("Marker sweep failed", "error", err)
		return
	}
	if removed > 0 {
		slog.Info("Expired change markers removed", "count", removed)
	}
}
