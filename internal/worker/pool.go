package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/pipeline"
)

// Options configures the pool.
type Options struct {
	// Size is the number of concurrent workers; it caps in-flight jobs.
	Size int
	// PollInterval is how long an idle worker sleeps between claims.
	PollInterval time.Duration
	// JobDeadline is the wall-clock ceiling for one job; on breach the job
	// fails with a timeout message instead of staying in processing forever.
	JobDeadline time.Duration
}

// Pool runs a fixed number of workers that claim queued jobs from the store
// and hand them to the pipeline runner. The store's atomic claim is the only
// coordination between workers.
type Pool struct {
	jobs         domain.JobRepository
	runner       *pipeline.Runner
	logger       infra.Logger
	size         int
	pollInterval time.Duration
	jobDeadline  time.Duration
	wg           sync.WaitGroup
}

// NewPool constructs a pool with sane defaults.
func NewPool(jobs domain.JobRepository, runner *pipeline.Runner, logger infra.Logger, opts Options) *Pool {
	size := opts.Size
	if size < 1 {
		size = 4
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	jobDeadline := opts.JobDeadline
	if jobDeadline <= 0 {
		jobDeadline = 15 * time.Minute
	}
	return &Pool{
		jobs:         jobs,
		runner:       runner,
		logger:       logger,
		size:         size,
		pollInterval: pollInterval,
		jobDeadline:  jobDeadline,
	}
}

// Start launches the workers. They stop when ctx is canceled.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info().Int("workers", p.size).Msg("worker: pool started")
	for i := 0; i < p.size; i++ {
		id := fmt.Sprintf("worker-%d", i)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run(ctx, id)
		}()
	}
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
	p.logger.Info().Msg("worker: pool stopped")
}

func (p *Pool) run(ctx context.Context, id string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.jobs.ClaimQueued(ctx)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				p.logger.Error().Err(err).Str("worker_id", id).Msg("worker: claim failed")
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.pollInterval):
			}
			continue
		}

		p.handle(ctx, id, job)
	}
}

func (p *Pool) handle(ctx context.Context, id string, job *domain.Job) {
	p.logger.Info().
		Str("worker_id", id).
		Str("job_id", job.ID).
		Str("kind", string(job.Kind)).
		Msg("worker: picked job")

	// Detached from the claim context so shutdown drains the current job
	// instead of failing it mid-flight; the deadline still bounds it.
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.jobDeadline)
	defer cancel()

	p.runner.Run(jobCtx, job)
}
