package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"docvoice/internal/repository"
)

// UsagePostgres keeps free-tier conversion counters in usage_counters.
type UsagePostgres struct {
	db *sql.DB
}

// NewUsagePostgres creates a new UsagePostgres repository.
func NewUsagePostgres(db *sql.DB) *UsagePostgres {
	return &UsagePostgres{db: db}
}

var _ repository.UsageRepository = (*UsagePostgres)(nil)

// ReserveForDay upserts the counter in one statement. The update is skipped when the
// stored value already reached limit, which leaves no row to return.
func (r *UsagePostgres) ReserveForDay(ctx context.Context, userID string, day time.Time, limit int) (bool, error) {
	const q = `
		INSERT INTO usage_counters (user_id, day, conversions)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, day) DO UPDATE SET conversions = usage_counters.conversions + 1
		WHERE usage_counters.conversions < $3
		RETURNING conversions
	`
	var n int
	err := r.db.QueryRowContext(ctx, q, userID, day, limit).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ReleaseForDay decrements the counter for day.
func (r *UsagePostgres) ReleaseForDay(ctx context.Context, userID string, day time.Time) error {
	const q = `
		UPDATE usage_counters SET conversions = GREATEST(conversions - 1, 0)
		WHERE user_id = $1 AND day = $2
	`
	_, err := r.db.ExecContext(ctx, q, userID, day)
	return err
}
