package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"server/internal/adapter/memrepo"
	"server/internal/domain"
	"server/internal/infra"
	"server/internal/pipeline"
)

type blockingInvoker struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	hold     time.Duration
}

func (b *blockingInvoker) Invoke(ctx context.Context, action string, parameters map[string]any) (json.RawMessage, error) {
	n := b.inFlight.Add(1)
	defer b.inFlight.Add(-1)
	for {
		peak := b.peak.Load()
		if n <= peak || b.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(b.hold):
	}
	return json.RawMessage(`{"content":"done"}`), nil
}

func discardLogger() infra.Logger {
	return zerolog.New(io.Discard)
}

func seedJobs(t *testing.T, jobs *memrepo.JobRepository, stories *memrepo.StoryRepository, n int) []string {
	t.Helper()
	stories.PutStory(domain.Story{ID: "story-1"})
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		job := &domain.Job{
			ID:      fmt.Sprintf("job-%d", i),
			StoryID: "story-1",
			Kind:    domain.JobKindGenerateStory,
			Status:  domain.JobStatusQueued,
			Input:   json.RawMessage(`{}`),
		}
		if err := jobs.Create(context.Background(), job); err != nil {
			t.Fatalf("seed job: %v", err)
		}
		ids = append(ids, job.ID)
	}
	return ids
}

func waitForTerminal(t *testing.T, jobs *memrepo.JobRepository, ids []string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		done := 0
		for _, id := range ids {
			job, err := jobs.GetByID(context.Background(), id)
			if err != nil {
				t.Fatalf("GetByID: %v", err)
			}
			if job.Status.Terminal() {
				done++
			}
		}
		if done == len(ids) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("only %d of %d jobs reached a terminal status", done, len(ids))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	jobs := memrepo.NewJobRepository()
	stories := memrepo.NewStoryRepository()
	invoker := &blockingInvoker{hold: 30 * time.Millisecond}
	runner := pipeline.NewRunner(jobs, stories, invoker, memrepo.NewMetricsRepository(), discardLogger())

	ids := seedJobs(t, jobs, stories, 6)

	pool := NewPool(jobs, runner, discardLogger(), Options{
		Size:         2,
		PollInterval: 5 * time.Millisecond,
		JobDeadline:  time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	waitForTerminal(t, jobs, ids, 3*time.Second)
	cancel()
	pool.Wait()

	if peak := invoker.peak.Load(); peak > 2 {
		t.Fatalf("peak concurrency = %d, want at most the pool size 2", peak)
	}
	for _, id := range ids {
		job, _ := jobs.GetByID(context.Background(), id)
		if job.Status != domain.JobStatusCompleted {
			t.Fatalf("job %s status = %q (error: %q)", id, job.Status, job.ErrorMessage)
		}
	}
}

func TestPoolDeadlineFailsJob(t *testing.T) {
	jobs := memrepo.NewJobRepository()
	stories := memrepo.NewStoryRepository()
	invoker := &blockingInvoker{hold: time.Minute}
	runner := pipeline.NewRunner(jobs, stories, invoker, memrepo.NewMetricsRepository(), discardLogger())

	ids := seedJobs(t, jobs, stories, 1)

	pool := NewPool(jobs, runner, discardLogger(), Options{
		Size:         1,
		PollInterval: 5 * time.Millisecond,
		JobDeadline:  30 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	waitForTerminal(t, jobs, ids, 3*time.Second)
	cancel()
	pool.Wait()

	job, _ := jobs.GetByID(context.Background(), ids[0])
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %q, want failed", job.Status)
	}
	if job.ErrorMessage != "generation timed out before the agent finished" {
		t.Fatalf("error = %q", job.ErrorMessage)
	}
}

func TestPoolStopsOnCancel(t *testing.T) {
	jobs := memrepo.NewJobRepository()
	stories := memrepo.NewStoryRepository()
	runner := pipeline.NewRunner(jobs, stories, &blockingInvoker{hold: time.Millisecond}, memrepo.NewMetricsRepository(), discardLogger())

	pool := NewPool(jobs, runner, discardLogger(), Options{Size: 3, PollInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop after cancellation")
	}
}
