package waits

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the pgx-backed sample history and entity resolution layer.
// Appends are single-statement inserts, so concurrent per-park writers
// serialize at the database without any in-process locking.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store on an existing pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ListActiveParks returns all tracked parks.
func (s *Store) ListActiveParks(ctx context.Context) ([]Park, error) {
	rows, err := s.pool.Query(ctx, "list_active_parks")
	if err != nil {
		return nil, fmt.Errorf("list parks: %w", err)
	}
	defer rows.Close()

	var parks []Park
	for rows.Next() {
		var p Park
		if err := rows.Scan(&p.ID, &p.Name, &p.Abbreviation, &p.ExternalAPIID); err != nil {
			return nil, fmt.Errorf("scan park: %w", err)
		}
		parks = append(parks, p)
	}
	return parks, rows.Err()
}

// EnsureAttraction resolves the internal attraction id for
// (park, external id), creating the row on first observation. The upsert
// makes resolve-or-create idempotent under concurrent callers.
func (s *Store) EnsureAttraction(ctx context.Context, parkID int, name string, externalAPIID int) (int, error) {
	var id int
	err := s.pool.QueryRow(ctx, "ensure_attraction", parkID, name, externalAPIID).Scan(&id)
	if err != nil {
		return 0, &PersistenceError{Op: fmt.Sprintf("ensure attraction %q", name), Err: err}
	}
	return id, nil
}

// Append persists one sample. History is append-only; no update or delete
// path exists through the store.
func (s *Store) Append(ctx context.Context, sample Sample) error {
	_, err := s.pool.Exec(ctx, "append_sample",
		sample.AttractionID, sample.WaitMinutes,
		string(sample.Status), string(sample.Trend), sample.FetchedAt,
	)
	if err != nil {
		return &PersistenceError{Op: fmt.Sprintf("append sample for attraction %d", sample.AttractionID), Err: err}
	}
	return nil
}

// Latest returns the most recent sample for an attraction, or nil when the
// attraction has no history yet.
func (s *Store) Latest(ctx context.Context, attractionID int) (*Sample, error) {
	var sample Sample
	err := s.pool.QueryRow(ctx, "latest_sample", attractionID).Scan(
		&sample.AttractionID, &sample.WaitMinutes,
		&sample.Status, &sample.Trend, &sample.FetchedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest sample for attraction %d: %w", attractionID, err)
	}
	return &sample, nil
}

// LatestTwo returns up to the two most recent samples, newest first.
// The second entry carries the prior status used for reopening detection.
func (s *Store) LatestTwo(ctx context.Context, attractionID int) ([]Sample, error) {
	rows, err := s.pool.Query(ctx, "latest_two_samples", attractionID)
	if err != nil {
		return nil, fmt.Errorf("latest two samples for attraction %d: %w", attractionID, err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var sample Sample
		if err := rows.Scan(
			&sample.AttractionID, &sample.WaitMinutes,
			&sample.Status, &sample.Trend, &sample.FetchedAt,
		); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}
