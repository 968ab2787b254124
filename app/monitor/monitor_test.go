package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"contestwatch/app/database"
	"contestwatch/app/extractor"
	"contestwatch/app/notifier"
)

const sampleDocument = "【3】『Sample Title』 ダウンロード [7/13] 作者:Sample Author\n" +
	"【7】『Other Title』 ダウンロード [7/10] 作者:Other Author\n"

type monitorHarness struct {
	monitor    *Monitor
	fetcher    *fakeFetcher
	workRepo   *fakeWorkRepo
	stateRepo  *fakeStateRepo
	markerRepo *fakeMarkerRepo
	notifier   *fakeNotifier
	now        time.Time
}

func newMonitorHarness(t *testing.T) *monitorHarness {
	t.Helper()

	h := &monitorHarness{
		fetcher:    &fakeFetcher{body: sampleDocument},
		workRepo:   newFakeWorkRepo(),
		stateRepo:  &fakeStateRepo{},
		markerRepo: newFakeMarkerRepo(),
		notifier:   &fakeNotifier{},
		now:        time.Date(2026, 7, 13, 12, 0, 0, 0, time.UTC),
	}

	engine := extractor.NewEngine(extractor.DefaultProfile(), "https://example.com/list.html")
	coordinator := NewCoordinator(h.workRepo, h.markerRepo, h.notifier, true, true)
	coordinator.now = func() time.Time { return h.now }

	h.monitor = New(h.fetcher, engine, h.workRepo, h.stateRepo, h.markerRepo,
		coordinator, h.notifier, Options{
			SourceURL:       "https://example.com/list.html",
			CheckInterval:   60,
			IntervalCap:     240,
			VisitGapMinutes: 30,
			OpenGapMinutes:  60,
		})
	h.monitor.now = func() time.Time { return h.now }

	return h
}

func TestRunCheckSuccess(t *testing.T) {
	h := newMonitorHarness(t)

	result := h.monitor.RunCheck(context.Background(), TriggerManual)

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.TotalWorks != 2 {
		t.Errorf("expected 2 extracted works, got %d", result.TotalWorks)
	}
	if len(result.NewWorks) != 2 {
		t.Errorf("expected 2 new works against an empty catalog, got %d", len(result.NewWorks))
	}

	state := h.stateRepo.state
	if state == nil {
		t.Fatal("run state was not saved")
	}
	if state.ConsecutiveErrors != 0 {
		t.Errorf("expected error counter reset, got %d", state.ConsecutiveErrors)
	}
	if state.CurrentIntervalMinutes != 60 {
		t.Errorf("expected nominal interval restored, got %d", state.CurrentIntervalMinutes)
	}
	if state.LastCheckAt == nil || !state.LastCheckAt.Equal(h.now) {
		t.Errorf("expected LastCheckAt stamped with run time, got %v", state.LastCheckAt)
	}

	if h.stateRepo.cache == nil {
		t.Fatal("degradation cache was not refreshed")
	}
	if h.stateRepo.cache.EntryCount != 2 {
		t.Errorf("expected cache entry count 2, got %d", h.stateRepo.cache.EntryCount)
	}

	if len(h.stateRepo.history) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(h.stateRepo.history))
	}
	if h.stateRepo.history[0].NewCount != 2 || h.stateRepo.history[0].Error != "" {
		t.Errorf("unexpected history row: %+v", h.stateRepo.history[0])
	}
}

func TestRunCheckSuccessResetsErrorCounter(t *testing.T) {
	h := newMonitorHarness(t)
	h.stateRepo.state = &database.RunState{ConsecutiveErrors: 3, CurrentIntervalMinutes: 120}

	result := h.monitor.RunCheck(context.Background(), TriggerManual)

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if h.stateRepo.state.ConsecutiveErrors != 0 {
		t.Errorf("expected counter reset on success, got %d", h.stateRepo.state.ConsecutiveErrors)
	}
	if h.stateRepo.state.CurrentIntervalMinutes != 60 {
		t.Errorf("expected interval restored to nominal, got %d", h.stateRepo.state.CurrentIntervalMinutes)
	}
}

func TestRunCheckFetchFailureWithoutCache(t *testing.T) {
	h := newMonitorHarness(t)
	h.fetcher.err = errors.New("connection refused")

	result := h.monitor.RunCheck(context.Background(), TriggerScheduled)

	if result.Success {
		t.Fatal("expected failure without a usable cache")
	}
	if result.ConsecutiveErrors != 1 {
		t.Errorf("expected counter incremented to 1, got %d", result.ConsecutiveErrors)
	}
	if result.Error == "" {
		t.Error("expected the fetch error surfaced")
	}
	if h.stateRepo.state.LastErrorAt == nil {
		t.Error("expected LastErrorAt stamped")
	}
	if len(h.stateRepo.history) != 1 || h.stateRepo.history[0].Error == "" {
		t.Errorf("expected a history row recording the failure, got %+v", h.stateRepo.history)
	}
}

func TestRunCheckDegradesToFreshCache(t *testing.T) {
	h := newMonitorHarness(t)
	h.fetcher.err = errors.New("connection refused")
	h.stateRepo.cache = &database.CachedDocument{
		Body:       sampleDocument,
		EntryCount: 2,
		FetchedAt:  h.now.Add(-30 * time.Minute),
	}

	result := h.monitor.RunCheck(context.Background(), TriggerManual)

	if !result.Success || !result.Degraded {
		t.Fatalf("expected degraded success, got success=%v degraded=%v error=%q",
			result.Success, result.Degraded, result.Error)
	}
	if len(result.NewWorks) != 0 || len(result.UpdatedWorks) != 0 {
		t.Error("degraded result must report no changes")
	}
	if result.TotalWorks != 2 {
		t.Errorf("expected cached entry count reported, got %d", result.TotalWorks)
	}
	if result.ConsecutiveErrors != 1 {
		t.Errorf("degradation must not hide the failure from the counter, got %d", result.ConsecutiveErrors)
	}
}

func TestRunCheckRejectsStaleCache(t *testing.T) {
	h := newMonitorHarness(t)
	h.fetcher.err = errors.New("connection refused")
	h.stateRepo.cache = &database.CachedDocument{
		Body:       sampleDocument,
		EntryCount: 2,
		FetchedAt:  h.now.Add(-3 * time.Hour), // past 2x the 60-minute interval
	}

	result := h.monitor.RunCheck(context.Background(), TriggerManual)

	if result.Success {
		t.Fatal("a stale cache must not produce a degraded success")
	}
}

func TestRunCheckRejectsImplausibleCache(t *testing.T) {
	h := newMonitorHarness(t)
	h.fetcher.err = errors.New("connection refused")
	h.stateRepo.cache = &database.CachedDocument{
		Body:       "",
		EntryCount: 0,
		FetchedAt:  h.now.Add(-time.Minute),
	}

	result := h.monitor.RunCheck(context.Background(), TriggerManual)

	if result.Success {
		t.Fatal("an empty cached document must not produce a degraded success")
	}
}

func TestRunCheckEscalatesAfterRepeatedFailures(t *testing.T) {
	h := newMonitorHarness(t)
	h.fetcher.err = errors.New("connection refused")
	h.stateRepo.state = &database.RunState{ConsecutiveErrors: 4, CurrentIntervalMinutes: 60}

	result := h.monitor.RunCheck(context.Background(), TriggerManual)

	if result.ConsecutiveErrors != 5 {
		t.Fatalf("expected counter at 5, got %d", result.ConsecutiveErrors)
	}
	if h.stateRepo.state.CurrentIntervalMinutes != 120 {
		t.Errorf("expected interval doubled to 120, got %d", h.stateRepo.state.CurrentIntervalMinutes)
	}

	if len(h.notifier.sent) != 1 {
		t.Fatalf("expected a systemUnstable notification, got %d", len(h.notifier.sent))
	}
	if h.notifier.sent[0].kind != notifier.KindSystemUnstable {
		t.Errorf("expected kind %q, got %q", notifier.KindSystemUnstable, h.notifier.sent[0].kind)
	}
}

func TestRunCheckIntervalDoublingIsCapped(t *testing.T) {
	h := newMonitorHarness(t)
	h.fetcher.err = errors.New("connection refused")
	h.stateRepo.state = &database.RunState{ConsecutiveErrors: 7, CurrentIntervalMinutes: 240}

	h.monitor.RunCheck(context.Background(), TriggerManual)

	if h.stateRepo.state.CurrentIntervalMinutes != 240 {
		t.Errorf("expected interval capped at 240, got %d", h.stateRepo.state.CurrentIntervalMinutes)
	}
}

func TestRunCheckTimeGates(t *testing.T) {
	lastCheck := 10 * time.Minute

	cases := []struct {
		trigger string
		skipped bool
	}{
		{TriggerManual, false},
		{TriggerAutoVisit, true},  // 10m since last check, 30m gap
		{TriggerAutoOpen, true},   // 60m gap
		{TriggerScheduled, true},  // 60m interval
	}

	for _, tc := range cases {
		t.Run(tc.trigger, func(t *testing.T) {
			h := newMonitorHarness(t)
			checkedAt := h.now.Add(-lastCheck)
			h.stateRepo.state = &database.RunState{
				LastCheckAt:            &checkedAt,
				CurrentIntervalMinutes: 60,
			}

			result := h.monitor.RunCheck(context.Background(), tc.trigger)

			if result.Skipped != tc.skipped {
				t.Errorf("trigger %s: expected skipped=%v, got %v", tc.trigger, tc.skipped, result.Skipped)
			}
			if tc.skipped && h.fetcher.calls != 0 {
				t.Errorf("trigger %s: skipped run must not fetch", tc.trigger)
			}
		})
	}
}

func TestRunCheckGateOpensAfterGap(t *testing.T) {
	h := newMonitorHarness(t)
	checkedAt := h.now.Add(-45 * time.Minute)
	h.stateRepo.state = &database.RunState{
		LastCheckAt:            &checkedAt,
		CurrentIntervalMinutes: 60,
	}

	result := h.monitor.RunCheck(context.Background(), TriggerAutoVisit)

	if result.Skipped {
		t.Error("45 minutes since last check should pass the 30-minute visit gate")
	}
}

func TestRunCheckParseFailureLeavesCounterAlone(t *testing.T) {
	h := newMonitorHarness(t)
	h.fetcher.body = "<html><body>maintenance page</body></html>"
	h.stateRepo.state = &database.RunState{ConsecutiveErrors: 2, CurrentIntervalMinutes: 60}

	result := h.monitor.RunCheck(context.Background(), TriggerManual)

	if result.Success {
		t.Fatal("expected parse failure")
	}
	if result.ConsecutiveErrors != 2 {
		t.Errorf("parse failures must not advance the fetch-error counter, got %d", result.ConsecutiveErrors)
	}
	if result.Error == "" {
		t.Error("expected a diagnostic error message")
	}
}

func TestRunCheckSweepsExpiredMarkers(t *testing.T) {
	h := newMonitorHarness(t)

	h.monitor.RunCheck(context.Background(), TriggerManual)

	if h.markerRepo.deletedBefore == nil {
		t.Fatal("expected a marker sweep after a successful run")
	}
	want := h.now.Add(-30 * 24 * time.Hour)
	if !h.markerRepo.deletedBefore.Equal(want) {
		t.Errorf("expected sweep cutoff %v, got %v", want, *h.markerRepo.deletedBefore)
	}
}

func TestRunCheckDetectsUpdateAgainstCatalog(t *testing.T) {
	h := newMonitorHarness(t)
	// ParseUpdateLabel builds timestamps in the configured local zone.
	old := time.Date(2026, 7, 10, 0, 0, 0, 0, time.Local)
	h.workRepo.works["3"] = database.Work{
		BusinessKey:     "3",
		Title:           "Sample Title",
		Author:          "Sample Author",
		LastUpdateLabel: "[7/10]",
		UpdateTimestamp: &old,
		RatingTotal:     45,
		Review:          "Great game",
		IsPlayed:        true,
	}
	h.workRepo.works["7"] = database.Work{
		BusinessKey:     "7",
		Title:           "Other Title",
		Author:          "Other Author",
		LastUpdateLabel: "[7/10]",
		UpdateTimestamp: &old,
	}

	result := h.monitor.RunCheck(context.Background(), TriggerManual)

	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if len(result.NewWorks) != 0 {
		t.Errorf("expected no new works, got %d", len(result.NewWorks))
	}
	if len(result.UpdatedWorks) != 1 {
		t.Fatalf("expected exactly work 3 updated (label moved to 7/13), got %d", len(result.UpdatedWorks))
	}
	if result.UpdatedWorks[0].Record.BusinessKey != "3" {
		t.Errorf("expected work 3 updated, got %s", result.UpdatedWorks[0].Record.BusinessKey)
	}
}
