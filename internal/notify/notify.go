// Package notify evaluates user notification preferences against the
// wait-time cache and dispatches push notifications.
//
// The evaluation loop is independent of the polling loop; the two share
// only the cache store. Per tick: enumerate users with a device token, join
// each user's active preferences against the latest samples, and fire the
// threshold and reopening rules. A dispatch failure for one user never
// blocks the others.
package notify

import (
	"fmt"
	"time"
)

// Notification types carried in the push data payload.
const (
	TypeThresholdMet = "threshold_met"
	TypeReopening    = "reopening"
)

// User is the slice of a user record the engine consumes.
type User struct {
	ID          int
	DeviceToken string
}

// Preference is one active subscription, joined with the attraction name
// for message construction.
type Preference struct {
	UserID           int
	AttractionID     int
	ThresholdMinutes int
	ReopeningAlert   bool
	AttractionName   string
}

// Notification is the payload handed to the push dispatcher.
type Notification struct {
	Title string
	Body  string
	Data  map[string]string
}

// DispatchError wraps a push delivery failure. Non-fatal: the affected
// user/preference is skipped for the tick.
type DispatchError struct {
	UserID int
	Err    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch to user %d: %v", e.UserID, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// TickResult tracks the outcome of one evaluation pass.
type TickResult struct {
	UsersEvaluated int
	PrefsEvaluated int
	Dispatched     int
	Failed         int
	Duration       time.Duration
	Errors         []string
}

// Summary returns a human-readable summary.
func (r *TickResult) Summary() string {
	return fmt.Sprintf(
		"users=%d prefs=%d dispatched=%d failed=%d errors=%d dur=%s",
		r.UsersEvaluated, r.PrefsEvaluated, r.Dispatched, r.Failed,
		len(r.Errors), r.Duration.Round(time.Millisecond))
}
