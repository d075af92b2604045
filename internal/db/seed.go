package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dvins/queuepulse-data/internal/config"
)

// SeedParks inserts the configured parks if they are not already present.
// Safe to run repeatedly.
func (p *Pool) SeedParks(ctx context.Context, logger *slog.Logger) error {
	inserted := 0
	for _, park := range config.ParkRegistry {
		tag, err := p.Exec(ctx, `
			INSERT INTO parks (name, abbreviation, external_api_id)
			VALUES ($1, $2, $3)
			ON CONFLICT (external_api_id) DO NOTHING`,
			park.Name, park.Abbreviation, park.ExternalAPIID,
		)
		if err != nil {
			return fmt.Errorf("seed park %s: %w", park.Abbreviation, err)
		}
		inserted += int(tag.RowsAffected())
	}
	logger.Info("Parks seeded", "total", len(config.ParkRegistry), "inserted", inserted)
	return nil
}
