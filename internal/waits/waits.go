// Package waits defines wait-time sample types, the trend calculator, and
// the Postgres-backed append-only cache store.
//
// A sample is one immutable observation of an attraction's wait time. The
// "current" value for an attraction is the sample with the latest
// fetched_at; trend is computed strictly from the immediately preceding
// sample.
package waits

import (
	"strings"
	"time"
)

// Status is the operational state reported for an attraction.
type Status string

const (
	StatusOpen    Status = "open"
	StatusClosed  Status = "closed"
	StatusDown    Status = "down"
	StatusUnknown Status = "unknown"
)

// ParseStatus normalizes an upstream status string. Anything unrecognized
// maps to unknown rather than failing the sample.
func ParseStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "open", "operating":
		return StatusOpen
	case "closed":
		return StatusClosed
	case "down", "refurbishment":
		return StatusDown
	default:
		return StatusUnknown
	}
}

// Trend is the directional classification of a wait-time change.
type Trend string

const (
	TrendNew  Trend = "new"
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendSame Trend = "same"
)

// CalculateTrend classifies the change between the current reading and the
// previous one. A nil previous means the attraction has no history; a nil
// current (closed/unknown attraction) does not regress the trend.
func CalculateTrend(current, previous *int) Trend {
	if previous == nil {
		return TrendNew
	}
	if current == nil {
		return TrendSame
	}
	switch {
	case *current > *previous:
		return TrendUp
	case *current < *previous:
		return TrendDown
	default:
		return TrendSame
	}
}

// Park is a tracked theme park, mapped to one Queue-Times external id.
type Park struct {
	ID            int
	Name          string
	Abbreviation  string
	ExternalAPIID int
}

// Sample is one immutable wait-time observation for an attraction.
type Sample struct {
	AttractionID int
	WaitMinutes  *int
	Status       Status
	Trend        Trend
	FetchedAt    time.Time
}

// PersistenceError wraps a store write failure. It aborts the affected
// attraction's processing but never the whole tick.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return "waits: " + e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }
