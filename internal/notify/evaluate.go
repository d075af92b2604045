package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dvins/queuepulse-data/internal/waits"
)

// Store is the read-only view of users, preferences, and sample history the
// engine evaluates against.
type Store interface {
	UsersWithDeviceToken(ctx context.Context) ([]User, error)
	ActivePreferences(ctx context.Context, userID int) ([]Preference, error)
	LatestTwo(ctx context.Context, attractionID int) ([]waits.Sample, error)
}

// Sender delivers one push notification and returns a delivery id.
type Sender interface {
	Send(ctx context.Context, token string, n Notification) (string, error)
}

// Engine runs the periodic notification evaluation.
type Engine struct {
	store   Store
	sender  Sender
	workers int
	logger  *slog.Logger

	running atomic.Bool
}

// NewEngine creates an evaluation engine. workers bounds per-user
// concurrency within a tick.
func NewEngine(store Store, sender Sender, workers int, logger *slog.Logger) *Engine {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:   store,
		sender:  sender,
		workers: workers,
		logger:  logger,
	}
}

// Tick evaluates every user with a device token once.
func (e *Engine) Tick(ctx context.Context) TickResult {
	start := time.Now()
	var result TickResult

	users, err := e.store.UsersWithDeviceToken(ctx)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		result.Duration = time.Since(start)
		return result
	}
	if len(users) == 0 {
		result.Duration = time.Since(start)
		return result
	}

	workers := e.workers
	if workers > len(users) {
		workers = len(users)
	}

	ch := make(chan User, len(users))
	for _, u := range users {
		ch <- u
	}
	close(ch)

	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range ch {
				userResult := e.evaluateUser(ctx, u)

				mu.Lock()
				result.UsersEvaluated++
				result.PrefsEvaluated += userResult.PrefsEvaluated
				result.Dispatched += userResult.Dispatched
				result.Failed += userResult.Failed
				result.Errors = append(result.Errors, userResult.Errors...)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	result.Duration = time.Since(start)
	return result
}

// userResult is the outcome of evaluating a single user.
type userResult struct {
	PrefsEvaluated int
	Dispatched     int
	Failed         int
	Errors         []string
}

// evaluateUser checks every active preference for one user. Failures are
// captured per preference and never abort the user's remaining prefs.
func (e *Engine) evaluateUser(ctx context.Context, u User) userResult {
	var res userResult

	prefs, err := e.store.ActivePreferences(ctx, u.ID)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("user %d prefs: %s", u.ID, err))
		return res
	}

	for _, pref := range prefs {
		res.PrefsEvaluated++

		samples, err := e.store.LatestTwo(ctx, pref.AttractionID)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("user %d attraction %d: %s", u.ID, pref.AttractionID, err))
			continue
		}
		if len(samples) == 0 {
			// No observation yet for this attraction.
			continue
		}
		current := samples[0]

		// Threshold rule. Level-triggered: fires on every tick the
		// condition holds, matching the product behavior. A nil wait
		// (closed/unknown attraction) never satisfies the threshold.
		if current.WaitMinutes != nil && *current.WaitMinutes <= pref.ThresholdMinutes {
			n := buildThresholdNotification(pref, *current.WaitMinutes)
			if sent := e.dispatch(ctx, u, pref, n, &res); sent {
				e.logger.Info("Threshold notification sent",
					"user_id", u.ID, "attraction", pref.AttractionName,
					"wait", *current.WaitMinutes, "threshold", pref.ThresholdMinutes)
			}
		}

		// Reopening rule: prior sample was closed, current no longer is.
		if pref.ReopeningAlert && CheckReopening(samples) {
			n := buildReopeningNotification(pref)
			if sent := e.dispatch(ctx, u, pref, n, &res); sent {
				e.logger.Info("Reopening notification sent",
					"user_id", u.ID, "attraction", pref.AttractionName)
			}
		}
	}
	return res
}

// dispatch sends one notification, recording success or failure in res.
func (e *Engine) dispatch(ctx context.Context, u User, pref Preference, n Notification, res *userResult) bool {
	deliveryID, err := e.sender.Send(ctx, u.DeviceToken, n)
	if err != nil {
		derr := &DispatchError{UserID: u.ID, Err: err}
		e.logger.Warn("Push dispatch failed",
			"user_id", u.ID, "attraction", pref.AttractionName, "error", derr)
		res.Failed++
		res.Errors = append(res.Errors, derr.Error())
		return false
	}
	e.logger.Debug("Push dispatched", "user_id", u.ID, "delivery_id", deliveryID)
	res.Dispatched++
	return true
}

// CheckReopening reports whether the two most recent samples (newest first)
// show a closed -> non-closed transition.
func CheckReopening(samples []waits.Sample) bool {
	if len(samples) < 2 {
		return false
	}
	return samples[1].Status == waits.StatusClosed && samples[0].Status != waits.StatusClosed
}

func buildThresholdNotification(pref Preference, waitMinutes int) Notification {
	return Notification{
		Title: fmt.Sprintf("%s - %d min wait", pref.AttractionName, waitMinutes),
		Body:  "Wait time dropped below your threshold!",
		Data: map[string]string{
			"attraction_id": strconv.Itoa(pref.AttractionID),
			"type":          TypeThresholdMet,
		},
	}
}

func buildReopeningNotification(pref Preference) Notification {
	return Notification{
		Title: fmt.Sprintf("%s has reopened!", pref.AttractionName),
		Body:  "The attraction is now open!",
		Data: map[string]string{
			"attraction_id": strconv.Itoa(pref.AttractionID),
			"type":          TypeReopening,
		},
	}
}

// Start runs one evaluation immediately and then on every interval until
// ctx is cancelled. Blocks; intended to be called with `go`. Overlapping
// ticks are skipped, not queued.
func (e *Engine) Start(ctx context.Context, interval time.Duration) {
	e.logger.Info("Notification evaluation engine started", "interval", interval, "workers", e.workers)

	e.runGuarded(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.runGuarded(ctx)
		case <-ctx.Done():
			e.logger.Info("Notification evaluation engine stopped")
			return
		}
	}
}

func (e *Engine) runGuarded(ctx context.Context) {
	if !e.running.CompareAndSwap(false, true) {
		e.logger.Warn("Previous evaluation tick still running, skipping")
		return
	}
	defer e.running.Store(false)

	result := e.Tick(ctx)
	if result.UsersEvaluated > 0 || len(result.Errors) > 0 {
		e.logger.Info("Evaluation tick complete", "summary", result.Summary())
	}
	for _, errMsg := range result.Errors {
		e.logger.Warn("evaluation error", "error", errMsg)
	}
}
