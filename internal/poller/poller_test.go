package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvins/queuepulse-data/internal/source"
	"github.com/dvins/queuepulse-data/internal/waits"
)

func intPtr(n int) *int { return &n }

// fakeSource serves canned snapshots (or errors) per external park id.
type fakeSource struct {
	snapshots map[int]*source.Snapshot
	errs      map[int]error
}

func (f *fakeSource) FetchQueueTimes(ctx context.Context, externalParkID int) (*source.Snapshot, error) {
	if err, ok := f.errs[externalParkID]; ok {
		return nil, err
	}
	snap, ok := f.snapshots[externalParkID]
	if !ok {
		return nil, &source.FetchError{ParkID: externalParkID, Err: errors.New("no snapshot")}
	}
	return snap, nil
}

// fakeStore is an in-memory Store mirroring the upsert and append-only
// semantics of the Postgres implementation.
type fakeStore struct {
	mu          sync.Mutex
	parks       []waits.Park
	nextID      int
	attractions map[[2]int]int // (parkID, externalAPIID) -> attraction id
	samples     map[int][]waits.Sample
	failAppend  map[string]bool // attraction name -> fail appends
	nameByID    map[int]string
}

func newFakeStore(parks ...waits.Park) *fakeStore {
	return &fakeStore{
		parks:       parks,
		attractions: make(map[[2]int]int),
		samples:     make(map[int][]waits.Sample),
		failAppend:  make(map[string]bool),
		nameByID:    make(map[int]string),
	}
}

func (f *fakeStore) ListActiveParks(ctx context.Context) ([]waits.Park, error) {
	return f.parks, nil
}

func (f *fakeStore) EnsureAttraction(ctx context.Context, parkID int, name string, externalAPIID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]int{parkID, externalAPIID}
	if id, ok := f.attractions[key]; ok {
		return id, nil
	}
	f.nextID++
	f.attractions[key] = f.nextID
	f.nameByID[f.nextID] = name
	return f.nextID, nil
}

func (f *fakeStore) Latest(ctx context.Context, attractionID int) (*waits.Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	history := f.samples[attractionID]
	if len(history) == 0 {
		return nil, nil
	}
	latest := history[len(history)-1]
	return &latest, nil
}

func (f *fakeStore) Append(ctx context.Context, sample waits.Sample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAppend[f.nameByID[sample.AttractionID]] {
		return &waits.PersistenceError{Op: "append", Err: errors.New("disk full")}
	}
	f.samples[sample.AttractionID] = append(f.samples[sample.AttractionID], sample)
	return nil
}

func (f *fakeStore) historyFor(parkID, externalAPIID int) []waits.Sample {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.samples[f.attractions[[2]int{parkID, externalAPIID}]]
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func snapshot(rides ...source.Entry) *source.Snapshot {
	return &source.Snapshot{Rides: rides}
}

func TestTickProcessesAllParks(t *testing.T) {
	store := newFakeStore(
		waits.Park{ID: 1, Abbreviation: "MK", ExternalAPIID: 101},
		waits.Park{ID: 2, Abbreviation: "EPCOT", ExternalAPIID: 102},
	)
	src := &fakeSource{snapshots: map[int]*source.Snapshot{
		101: {
			Rides: []source.Entry{
				{ID: 1, Name: "Space Mountain", WaitTime: intPtr(45), Status: "open"},
				{ID: 2, Name: "Haunted Mansion", WaitTime: intPtr(30), Status: "open"},
			},
			Shows: []source.Entry{
				{ID: 3, Name: "Festival of Fantasy", WaitTime: nil, Status: "closed"},
			},
		},
		102: snapshot(source.Entry{ID: 9, Name: "Test Track", WaitTime: intPtr(60), Status: "open"}),
	}}

	p := New(src, store, 2, testLogger())
	result := p.Tick(context.Background())

	assert.Equal(t, 2, result.ParksPolled)
	assert.Equal(t, 0, result.ParksFailed)
	assert.Equal(t, 4, result.AttractionsProcessed)
	assert.Empty(t, result.Errors)

	// First observation of every attraction starts with trend "new".
	history := store.historyFor(1, 1)
	require.Len(t, history, 1)
	assert.Equal(t, waits.TrendNew, history[0].Trend)
	assert.Equal(t, waits.StatusOpen, history[0].Status)

	// Shows are reconciled exactly like rides.
	showHistory := store.historyFor(1, 3)
	require.Len(t, showHistory, 1)
	assert.Nil(t, showHistory[0].WaitMinutes)
	assert.Equal(t, waits.StatusClosed, showHistory[0].Status)
}

func TestTickIsolatesSourceFailure(t *testing.T) {
	parks := make([]waits.Park, 0, 4)
	snapshots := make(map[int]*source.Snapshot)
	for i := 1; i <= 4; i++ {
		parks = append(parks, waits.Park{ID: i, Abbreviation: fmt.Sprintf("P%d", i), ExternalAPIID: 100 + i})
		snapshots[100+i] = snapshot(source.Entry{ID: i, Name: fmt.Sprintf("Ride %d", i), WaitTime: intPtr(10), Status: "open"})
	}
	store := newFakeStore(parks...)
	src := &fakeSource{
		snapshots: snapshots,
		errs: map[int]error{
			102: &source.FetchError{ParkID: 102, Err: errors.New("connection timed out")},
		},
	}

	p := New(src, store, 4, testLogger())
	result := p.Tick(context.Background())

	assert.Equal(t, 4, result.ParksPolled)
	assert.Equal(t, 1, result.ParksFailed)
	assert.Equal(t, 3, result.AttractionsProcessed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "P2")
}

func TestEntryFailureSkipsOnlyThatEntry(t *testing.T) {
	store := newFakeStore(waits.Park{ID: 1, Abbreviation: "MK", ExternalAPIID: 101})
	store.failAppend["Haunted Mansion"] = true
	src := &fakeSource{snapshots: map[int]*source.Snapshot{
		101: snapshot(
			source.Entry{ID: 1, Name: "Space Mountain", WaitTime: intPtr(45), Status: "open"},
			source.Entry{ID: 2, Name: "Haunted Mansion", WaitTime: intPtr(30), Status: "open"},
			source.Entry{ID: 3, Name: "Pirates of the Caribbean", WaitTime: intPtr(20), Status: "open"},
		),
	}}

	p := New(src, store, 1, testLogger())
	result := p.Tick(context.Background())

	assert.Equal(t, 2, result.AttractionsProcessed)
	assert.Equal(t, 1, result.AttractionsSkipped)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Haunted Mansion")
}

func TestTrendAcrossTicks(t *testing.T) {
	store := newFakeStore(waits.Park{ID: 1, Abbreviation: "MK", ExternalAPIID: 101})
	src := &fakeSource{snapshots: map[int]*source.Snapshot{
		101: snapshot(source.Entry{ID: 7, Name: "Space Mountain", WaitTime: intPtr(30), Status: "open"}),
	}}

	p := New(src, store, 1, testLogger())
	p.Tick(context.Background())

	// Same wait -> same; higher -> up; nil -> same; lower -> down.
	steps := []struct {
		wait  *int
		trend waits.Trend
	}{
		{intPtr(30), waits.TrendSame},
		{intPtr(45), waits.TrendUp},
		{nil, waits.TrendSame},
		{intPtr(10), waits.TrendDown},
	}
	for _, step := range steps {
		src.snapshots[101] = snapshot(source.Entry{ID: 7, Name: "Space Mountain", WaitTime: step.wait, Status: "open"})
		p.Tick(context.Background())
	}

	history := store.historyFor(1, 7)
	require.Len(t, history, len(steps)+1)
	assert.Equal(t, waits.TrendNew, history[0].Trend)
	for i, step := range steps {
		assert.Equal(t, step.trend, history[i+1].Trend, "step %d", i)
	}

	// Resolve-or-create stayed idempotent across five ticks.
	assert.Len(t, store.attractions, 1)
}

func TestTrendReadsPreviousWaitThroughNilSample(t *testing.T) {
	// A nil reading does not regress trend state, but the sample after it
	// compares against the nil (the immediately preceding sample), so it
	// reports "new" exactly like the first observation after a gap.
	store := newFakeStore(waits.Park{ID: 1, Abbreviation: "MK", ExternalAPIID: 101})
	src := &fakeSource{snapshots: map[int]*source.Snapshot{}}
	p := New(src, store, 1, testLogger())

	for _, wait := range []*int{intPtr(20), nil, intPtr(25)} {
		src.snapshots[101] = snapshot(source.Entry{ID: 7, Name: "Space Mountain", WaitTime: wait, Status: "open"})
		p.Tick(context.Background())
	}

	history := store.historyFor(1, 7)
	require.Len(t, history, 3)
	assert.Equal(t, waits.TrendSame, history[1].Trend)
	assert.Equal(t, waits.TrendNew, history[2].Trend)
}

func TestSampleTimestampsMonotonic(t *testing.T) {
	store := newFakeStore(waits.Park{ID: 1, Abbreviation: "MK", ExternalAPIID: 101})
	src := &fakeSource{snapshots: map[int]*source.Snapshot{
		101: snapshot(source.Entry{ID: 7, Name: "Space Mountain", WaitTime: intPtr(30), Status: "open"}),
	}}

	p := New(src, store, 1, testLogger())
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	p.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	for i := 0; i < 5; i++ {
		p.Tick(context.Background())
	}

	history := store.historyFor(1, 7)
	require.Len(t, history, 5)
	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].FetchedAt.Before(history[i-1].FetchedAt),
			"sample %d observed before sample %d", i, i-1)
	}
}
