package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository backed by PostgreSQL.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

const jobColumns = `id, story_id, kind, status, progress, input_json, result_json, error_message, created_at, updated_at, started_at, completed_at`

// Create inserts a new job record in queued state.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	query := `
INSERT INTO jobs (id, story_id, kind, status, progress, input_json)
VALUES ($1, $2, $3, $4, $5, $6);
`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.StoryID,
		job.Kind,
		job.Status,
		job.Progress,
		job.Input,
	)
	return err
}

// UpdateStatus applies one lifecycle transition. Rows already in a terminal
// status are never touched; attempting to do so reports ErrTerminalStatus.
func (r *JobRepositoryPG) UpdateStatus(ctx context.Context, jobID string, update domain.JobUpdate) error {
	query := `
UPDATE jobs
SET status = $2,
    progress = COALESCE($3, progress),
    result_json = COALESCE($4, result_json),
    error_message = CASE WHEN $5 = '' THEN error_message ELSE $5 END,
    started_at = CASE WHEN $2 = 'processing' AND started_at IS NULL THEN NOW() ELSE started_at END,
    completed_at = CASE WHEN $2 IN ('completed', 'failed') THEN NOW() ELSE completed_at END,
    updated_at = NOW()
WHERE id = $1
  AND status NOT IN ('completed', 'failed');
`
	tag, err := r.pool.Exec(ctx, query,
		jobID,
		update.Status,
		update.Progress,
		nullableBytes(update.Result),
		update.ErrorMessage,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either the job does not exist or it already finished.
		if _, err := r.GetByID(ctx, jobID); err != nil {
			return err
		}
		return domain.ErrTerminalStatus
	}
	return nil
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1;`, jobID)
	return scanJob(row)
}

// ListByStory fetches all jobs for a story, newest first.
func (r *JobRepositoryPG) ListByStory(ctx context.Context, storyID string) ([]domain.Job, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+jobColumns+` FROM jobs WHERE story_id = $1 ORDER BY created_at DESC;`, storyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// ClaimQueued atomically moves the oldest queued job to processing, so
// concurrent workers never pick up the same job twice.
func (r *JobRepositoryPG) ClaimQueued(ctx context.Context) (*domain.Job, error) {
	query := `
UPDATE jobs
SET status = 'processing',
    progress = 0,
    started_at = NOW(),
    updated_at = NOW()
WHERE id = (
    SELECT id FROM jobs
    WHERE status = 'queued'
    ORDER BY created_at
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
RETURNING ` + jobColumns + `;`
	return scanJob(r.pool.QueryRow(ctx, query))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var job domain.Job
	if err := row.Scan(
		&job.ID,
		&job.StoryID,
		&job.Kind,
		&job.Status,
		&job.Progress,
		&job.Input,
		&job.Result,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.StartedAt,
		&job.CompletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

func nullableBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
