package poller

import (
	"fmt"
	"time"
)

// TickResult tracks the outcome of one full reconciliation pass.
// Its public shape is "count of attractions processed + per-source errors".
type TickResult struct {
	ParksPolled          int
	ParksFailed          int
	AttractionsProcessed int
	AttractionsSkipped   int
	Duration             time.Duration
	Errors               []string
}

// Summary returns a human-readable summary.
func (r *TickResult) Summary() string {
	return fmt.Sprintf(
		"parks=%d failed=%d attractions=%d skipped=%d errors=%d dur=%s",
		r.ParksPolled, r.ParksFailed,
		r.AttractionsProcessed, r.AttractionsSkipped,
		len(r.Errors), r.Duration.Round(time.Millisecond))
}
