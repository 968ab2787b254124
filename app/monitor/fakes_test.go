package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"contestwatch/app/database"
	"contestwatch/app/notifier"
)

// The fakes guard their state with a mutex so tests can drive the
// coordinator from several goroutines at once.
type fakeWorkRepo struct {
	mu       sync.Mutex
	works    map[string]database.Work
	upserted []database.Work
	failKeys map[string]bool
}

func newFakeWorkRepo() *fakeWorkRepo {
	return &fakeWorkRepo{works: map[string]database.Work{}, failKeys: map[string]bool{}}
}

func (r *fakeWorkRepo) GetAll() ([]database.Work, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]database.Work, 0, len(r.works))
	for _, w := range r.works {
		all = append(all, w)
	}
	return all, nil
}

func (r *fakeWorkRepo) GetByBusinessKey(businessKey string) (*database.Work, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.works[businessKey]; ok {
		return &w, nil
	}
	return nil, nil
}

func (r *fakeWorkRepo) GetCount() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.works), nil
}

func (r *fakeWorkRepo) UpsertFromScrape(candidate database.Work) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failKeys[candidate.BusinessKey] {
		return "", errors.New("database is locked")
	}
	r.upserted = append(r.upserted, candidate)
	r.works[candidate.BusinessKey] = candidate
	return candidate.BusinessKey, nil
}

func (r *fakeWorkRepo) UpdateUserFields(string, int, string, bool) error { return nil }
func (r *fakeWorkRepo) SetVersionStatus(string, string) error            { return nil }

type fakeMarkerRepo struct {
	mu            sync.Mutex
	markers       map[string]database.ChangeMarker
	deletedBefore *time.Time
}

func newFakeMarkerRepo() *fakeMarkerRepo {
	return &fakeMarkerRepo{markers: map[string]database.ChangeMarker{}}
}

func (r *fakeMarkerRepo) GetAll() ([]database.ChangeMarker, error) { return nil, nil }

func (r *fakeMarkerRepo) Get(businessKey string) (*database.ChangeMarker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.markers[businessKey]; ok {
		return &m, nil
	}
	return nil, nil
}

func (r *fakeMarkerRepo) Upsert(marker database.ChangeMarker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markers[marker.BusinessKey] = marker
	return nil
}

func (r *fakeMarkerRepo) Confirm(string) error { return nil }
func (r *fakeMarkerRepo) Delete(string) error  { return nil }

func (r *fakeMarkerRepo) DeleteOlderThan(cutoff time.Time) (int, error) {
	r.deletedBefore = &cutoff
	return 0, nil
}

type fakeStateRepo struct {
	state     *database.RunState
	history   []database.RunSummary
	cache     *database.CachedDocument
	saveCalls int
}

func (r *fakeStateRepo) GetRunState() (*database.RunState, error) { return r.state, nil }

func (r *fakeStateRepo) SaveRunState(state database.RunState) error {
	r.state = &state
	r.saveCalls++
	return nil
}

func (r *fakeStateRepo) AppendRunSummary(summary database.RunSummary) error {
	r.history = append(r.history, summary)
	return nil
}

func (r *fakeStateRepo) GetRunHistory(limit int) ([]database.RunSummary, error) {
	return r.history, nil
}

func (r *fakeStateRepo) GetCachedDocument() (*database.CachedDocument, error) { return r.cache, nil }

func (r *fakeStateRepo) SaveCachedDocument(doc database.CachedDocument) error {
	r.cache = &doc
	return nil
}

type sentNotification struct {
	kind    string
	payload notifier.Payload
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (n *fakeNotifier) Notify(_ context.Context, kind string, payload notifier.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentNotification{kind: kind, payload: payload})
	return nil
}

type fakeFetcher struct {
	body  string
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(context.Context, string) (string, error) {
	f.calls++
	return f.body, f.err
}
