package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// MetricsRepositoryPG implements domain.MetricsRepository using PostgreSQL.
type MetricsRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewMetricsRepository constructs the repository.
func NewMetricsRepository(pool *pgxpool.Pool) *MetricsRepositoryPG {
	return &MetricsRepositoryPG{pool: pool}
}

// IncrementCounters upserts pipeline counters for the provided day.
func (r *MetricsRepositoryPG) IncrementCounters(ctx context.Context, day string, counters map[string]int) error {
	query := `
INSERT INTO metrics_daily (day, jobs_started, jobs_completed, jobs_failed, quota_denied)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (day) DO UPDATE SET
    jobs_started = metrics_daily.jobs_started + EXCLUDED.jobs_started,
    jobs_completed = metrics_daily.jobs_completed + EXCLUDED.jobs_completed,
    jobs_failed = metrics_daily.jobs_failed + EXCLUDED.jobs_failed,
    quota_denied = metrics_daily.quota_denied + EXCLUDED.quota_denied,
    updated_at = NOW();
`
	_, err := r.pool.Exec(ctx, query,
		day,
		counters[domain.MetricJobsStarted],
		counters[domain.MetricJobsCompleted],
		counters[domain.MetricJobsFailed],
		counters[domain.MetricQuotaDenied],
	)
	return err
}

// GetSummary returns the latest day's counters.
func (r *MetricsRepositoryPG) GetSummary(ctx context.Context) (*domain.MetricsDaily, error) {
	row := r.pool.QueryRow(ctx, `
SELECT day, jobs_started, jobs_completed, jobs_failed, quota_denied, created_at, updated_at
FROM metrics_daily
ORDER BY day DESC
LIMIT 1;
`)
	var m domain.MetricsDaily
	if err := row.Scan(
		&m.Day,
		&m.JobsStarted,
		&m.JobsCompleted,
		&m.JobsFailed,
		&m.QuotaDenied,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}
