// Package poller implements the wait-time reconciliation loop.
//
// Each tick fetches a snapshot per park, resolves every ride/show to an
// internal attraction, computes the trend against the previous sample, and
// appends a new sample to the cache. Parks are independent: one park's
// fetch failure never aborts the others, and a bad entry never aborts the
// rest of its park.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dvins/queuepulse-data/internal/source"
	"github.com/dvins/queuepulse-data/internal/waits"
)

// Source fetches one park's raw snapshot.
type Source interface {
	FetchQueueTimes(ctx context.Context, externalParkID int) (*source.Snapshot, error)
}

// Store is the persistence boundary the poller writes through.
type Store interface {
	ListActiveParks(ctx context.Context) ([]waits.Park, error)
	EnsureAttraction(ctx context.Context, parkID int, name string, externalAPIID int) (int, error)
	Latest(ctx context.Context, attractionID int) (*waits.Sample, error)
	Append(ctx context.Context, sample waits.Sample) error
}

// Poller reconciles upstream wait times into the cache store.
type Poller struct {
	src     Source
	store   Store
	workers int
	logger  *slog.Logger

	// now is swappable for tests.
	now func() time.Time

	running atomic.Bool
}

// New creates a Poller. workers bounds per-park concurrency within a tick.
func New(src Source, store Store, workers int, logger *slog.Logger) *Poller {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		src:     src,
		store:   store,
		workers: workers,
		logger:  logger,
		now:     time.Now,
	}
}

// Tick runs one full reconciliation pass over all tracked parks.
func (p *Poller) Tick(ctx context.Context) TickResult {
	start := p.now()
	var result TickResult

	parks, err := p.store.ListActiveParks(ctx)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		result.Duration = p.now().Sub(start)
		return result
	}
	if len(parks) == 0 {
		p.logger.Info("No parks configured, nothing to poll")
		result.Duration = p.now().Sub(start)
		return result
	}

	workers := p.workers
	if workers > len(parks) {
		workers = len(parks)
	}

	ch := make(chan waits.Park, len(parks))
	for _, park := range parks {
		ch <- park
	}
	close(ch)

	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for park := range ch {
				parkResult := p.pollPark(ctx, park)

				mu.Lock()
				result.ParksPolled++
				if parkResult.FetchFailed {
					result.ParksFailed++
				}
				result.AttractionsProcessed += parkResult.Processed
				result.AttractionsSkipped += parkResult.Skipped
				result.Errors = append(result.Errors, parkResult.Errors...)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	result.Duration = p.now().Sub(start)
	return result
}

// parkResult is the outcome of polling a single park.
type parkResult struct {
	FetchFailed bool
	Processed   int
	Skipped     int
	Errors      []string
}

// pollPark fetches and reconciles one park. Never returns an error: every
// failure is captured in the result so sibling parks keep going.
func (p *Poller) pollPark(ctx context.Context, park waits.Park) parkResult {
	var res parkResult

	snapshot, err := p.src.FetchQueueTimes(ctx, park.ExternalAPIID)
	if err != nil {
		p.logger.Warn("Park fetch failed", "park", park.Abbreviation, "error", err)
		res.FetchFailed = true
		res.Errors = append(res.Errors, fmt.Sprintf("park %s: %s", park.Abbreviation, err))
		return res
	}

	for _, entry := range snapshot.Entries() {
		if err := p.processEntry(ctx, park, entry); err != nil {
			p.logger.Warn("Entry skipped",
				"park", park.Abbreviation, "attraction", entry.Name, "error", err)
			res.Skipped++
			res.Errors = append(res.Errors, fmt.Sprintf("park %s attraction %q: %s", park.Abbreviation, entry.Name, err))
			continue
		}
		res.Processed++
	}
	return res
}

// processEntry reconciles one ride/show: resolve-or-create the attraction,
// read the prior sample, derive the trend, append the new sample.
func (p *Poller) processEntry(ctx context.Context, park waits.Park, entry source.Entry) error {
	if entry.Name == "" {
		return errors.New("entry has no name")
	}

	attractionID, err := p.store.EnsureAttraction(ctx, park.ID, entry.Name, entry.ID)
	if err != nil {
		return err
	}

	previous, err := p.store.Latest(ctx, attractionID)
	if err != nil {
		return err
	}

	var previousWait *int
	if previous != nil {
		previousWait = previous.WaitMinutes
	}
	trend := waits.CalculateTrend(entry.WaitTime, previousWait)

	return p.store.Append(ctx, waits.Sample{
		AttractionID: attractionID,
		WaitMinutes:  entry.WaitTime,
		Status:       waits.ParseStatus(entry.Status),
		Trend:        trend,
		FetchedAt:    p.now().UTC(),
	})
}

// Start runs one tick immediately and then on every interval until ctx is
// cancelled. Blocks; intended to be called with `go`. A tick still running
// when the timer fires is not re-entered — the new tick is skipped so two
// writers never race on the same attraction's read-then-append sequence.
func (p *Poller) Start(ctx context.Context, interval time.Duration) {
	p.logger.Info("Wait-time poller started", "interval", interval, "workers", p.workers)

	p.runGuarded(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.runGuarded(ctx)
		case <-ctx.Done():
			p.logger.Info("Wait-time poller stopped")
			return
		}
	}
}

func (p *Poller) runGuarded(ctx context.Context) {
	if !p.running.CompareAndSwap(false, true) {
		p.logger.Warn("Previous poll tick still running, skipping")
		return
	}
	defer p.running.Store(false)

	result := p.Tick(ctx)
	p.logger.Info("Poll tick complete", "summary", result.Summary())
	for _, e := range result.Errors {
		p.logger.Warn("poll error", "error", e)
	}
}
