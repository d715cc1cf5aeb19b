package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// UsageRepositoryPG implements domain.UsageRepository backed by PostgreSQL.
type UsageRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewUsageRepository creates a new UsageRepositoryPG.
func NewUsageRepository(pool *pgxpool.Pool) *UsageRepositoryPG {
	return &UsageRepositoryPG{pool: pool}
}

// IncrementDaily performs the check-and-increment as a single statement so
// two concurrent requests from the same user cannot both slip under the
// ceiling. A stale date resets the counter in the same write.
func (r *UsageRepositoryPG) IncrementDaily(ctx context.Context, userID, day string, limit int) (int, bool, error) {
	query := `
INSERT INTO ai_usage (user_id, usage_date, used)
VALUES ($1, $2, 1)
ON CONFLICT (user_id) DO UPDATE
SET used = CASE WHEN ai_usage.usage_date = EXCLUDED.usage_date THEN ai_usage.used + 1 ELSE 1 END,
    usage_date = EXCLUDED.usage_date,
    updated_at = NOW()
WHERE ai_usage.usage_date <> EXCLUDED.usage_date
   OR ai_usage.used < $3
RETURNING used;
`
	var used int
	err := r.pool.QueryRow(ctx, query, userID, day, limit).Scan(&used)
	if err == nil {
		return used, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, err
	}

	// The guarded upsert matched nothing: same day, ceiling reached.
	row := r.pool.QueryRow(ctx, `SELECT used FROM ai_usage WHERE user_id = $1 AND usage_date = $2;`, userID, day)
	if err := row.Scan(&used); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return used, false, nil
}

// Get returns the stored usage record for a user, if any.
func (r *UsageRepositoryPG) Get(ctx context.Context, userID string) (*domain.UsageRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT user_id, usage_date, used FROM ai_usage WHERE user_id = $1;`, userID)
	var rec domain.UsageRecord
	if err := row.Scan(&rec.UserID, &rec.Date, &rec.Used); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}
