package notify

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dvins/queuepulse-data/internal/waits"
)

// PGStore is the pgx-backed Store. User and preference rows are owned by
// the user-facing API; this layer only ever reads them.
type PGStore struct {
	pool    *pgxpool.Pool
	samples *waits.Store
}

// NewPGStore creates a PGStore on an existing pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool, samples: waits.NewStore(pool)}
}

// UsersWithDeviceToken returns every user that can receive a push.
func (s *PGStore) UsersWithDeviceToken(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, "users_with_device_token")
	if err != nil {
		return nil, fmt.Errorf("users with device token: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.DeviceToken); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ActivePreferences returns a user's active subscriptions joined with the
// attraction name. Inactive rows and deactivated attractions are skipped at
// the query level.
func (s *PGStore) ActivePreferences(ctx context.Context, userID int) ([]Preference, error) {
	rows, err := s.pool.Query(ctx, "active_prefs_for_user", userID)
	if err != nil {
		return nil, fmt.Errorf("active prefs for user %d: %w", userID, err)
	}
	defer rows.Close()

	var prefs []Preference
	for rows.Next() {
		var p Preference
		if err := rows.Scan(
			&p.UserID, &p.AttractionID, &p.ThresholdMinutes,
			&p.ReopeningAlert, &p.AttractionName,
		); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

// LatestTwo returns up to the two most recent samples, newest first.
func (s *PGStore) LatestTwo(ctx context.Context, attractionID int) ([]waits.Sample, error) {
	return s.samples.LatestTwo(ctx, attractionID)
}
