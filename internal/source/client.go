// Package source fetches raw wait-time snapshots from the Queue-Times API.
//
// One GET per park per poll tick. The client enforces a hard request
// timeout and a token-bucket rate limit against the upstream; it never
// retries — the next scheduled tick is the retry mechanism.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const requestTimeout = 30 * time.Second

// FetchError is any failure to produce a snapshot for a park: transport
// error, timeout, non-200 response, or a malformed payload.
type FetchError struct {
	ParkID int // external Queue-Times park id
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch park %d: %v", e.ParkID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Entry is one ride or show in a snapshot.
type Entry struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	WaitTime *int   `json:"wait_time"`
	Status   string `json:"status"`
}

// Snapshot is the raw payload for one park.
type Snapshot struct {
	Rides []Entry `json:"rides"`
	Shows []Entry `json:"shows"`
}

// Entries returns rides and shows merged; both are tracked identically.
func (s *Snapshot) Entries() []Entry {
	merged := make([]Entry, 0, len(s.Rides)+len(s.Shows))
	merged = append(merged, s.Rides...)
	merged = append(merged, s.Shows...)
	return merged
}

// Client is the Queue-Times HTTP client shared across poll ticks.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a rate-limited Queue-Times client.
func NewClient(baseURL string, requestsPerMinute int, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	rps := float64(requestsPerMinute) / 60.0
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger,
	}
}

// FetchQueueTimes fetches the snapshot for one park by its external id.
// All failure modes return a *FetchError.
func (c *Client) FetchQueueTimes(ctx context.Context, externalParkID int) (*Snapshot, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{ParkID: externalParkID, Err: fmt.Errorf("rate limit wait: %w", err)}
	}

	u := fmt.Sprintf("%s/parks/%d/queue_times.json", c.baseURL, externalParkID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &FetchError{ParkID: externalParkID, Err: fmt.Errorf("create request: %w", err)}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{ParkID: externalParkID, Err: fmt.Errorf("http request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{ParkID: externalParkID, Err: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{
			ParkID: externalParkID,
			Err:    fmt.Errorf("queue-times returned %d: %s", resp.StatusCode, truncate(body, 200)),
		}
	}

	var snapshot Snapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, &FetchError{ParkID: externalParkID, Err: fmt.Errorf("decode response: %w", err)}
	}

	return &snapshot, nil
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
