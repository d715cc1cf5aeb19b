package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"

	"server/internal/adapter/memrepo"
	"server/internal/domain"
	"server/internal/infra"
	"server/internal/quota"
)

func discardLogger() infra.Logger {
	return zerolog.New(io.Discard)
}

func newTestOrchestrator(limit int) (*Orchestrator, *memrepo.JobRepository, *memrepo.MetricsRepository) {
	jobs := memrepo.NewJobRepository()
	metrics := memrepo.NewMetricsRepository()
	ledger := quota.NewLedger(memrepo.NewUsageRepository(), quota.Options{DailyLimit: limit})
	return NewOrchestrator(jobs, ledger, metrics, discardLogger()), jobs, metrics
}

func TestStartCreatesQueuedJob(t *testing.T) {
	orch, jobs, _ := newTestOrchestrator(10)

	job, err := orch.Start(context.Background(), "user-1", domain.JobKindGenerateChapter, "story-1", json.RawMessage(`{"chapterNumber":2,"language":"es"}`))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if job.ID == "" {
		t.Fatal("expected a job id")
	}
	if job.Status != domain.JobStatusQueued {
		t.Fatalf("status = %q, want queued", job.Status)
	}

	stored, err := jobs.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.StoryID != "story-1" || stored.Kind != domain.JobKindGenerateChapter {
		t.Fatalf("stored job = %+v", stored)
	}
	var input ChapterInput
	if err := json.Unmarshal(stored.Input, &input); err != nil {
		t.Fatalf("decode stored input: %v", err)
	}
	if input.ChapterNumber != 2 || input.Language != "es" {
		t.Fatalf("input = %+v", input)
	}
}

func TestStartRejectsMissingStoryID(t *testing.T) {
	orch, jobs, _ := newTestOrchestrator(10)

	_, err := orch.Start(context.Background(), "user-1", domain.JobKindGenerateStory, "  ", nil)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if listed, _ := jobs.ListByStory(context.Background(), "  "); len(listed) != 0 {
		t.Fatal("no job should be created for an invalid request")
	}
}

func TestStartRejectsInvalidChapterNumber(t *testing.T) {
	orch, _, _ := newTestOrchestrator(10)

	for _, raw := range []string{`{}`, `{"chapterNumber":0}`, `{"chapterNumber":-3}`} {
		_, err := orch.Start(context.Background(), "user-1", domain.JobKindGenerateChapter, "story-1", json.RawMessage(raw))
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("input %s: err = %v, want ErrInvalidInput", raw, err)
		}
	}
}

func TestStartDeniedByQuota(t *testing.T) {
	orch, jobs, metrics := newTestOrchestrator(1)

	ctx := context.Background()
	if _, err := orch.Start(ctx, "user-1", domain.JobKindGenerateStory, "story-1", nil); err != nil {
		t.Fatalf("first Start: %v", err)
	}

	_, err := orch.Start(ctx, "user-1", domain.JobKindGenerateStory, "story-1", nil)
	var denied *QuotaDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("err = %v, want *QuotaDeniedError", err)
	}
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatal("denial should match ErrQuotaExceeded")
	}
	if denied.Used != 1 || denied.Limit != 1 {
		t.Fatalf("denied = %+v", denied)
	}

	listed, _ := jobs.ListByStory(ctx, "story-1")
	if len(listed) != 1 {
		t.Fatalf("jobs = %d, want 1; a denied request must not create a job", len(listed))
	}

	summary, err := metrics.GetSummary(ctx)
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if summary.JobsStarted != 1 || summary.QuotaDenied != 1 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestStartValidationBeforeQuota(t *testing.T) {
	jobs := memrepo.NewJobRepository()
	usage := memrepo.NewUsageRepository()
	ledger := quota.NewLedger(usage, quota.Options{DailyLimit: 5})
	orch := NewOrchestrator(jobs, ledger, memrepo.NewMetricsRepository(), discardLogger())

	ctx := context.Background()
	_, err := orch.Start(ctx, "user-1", domain.JobKindGenerateChapter, "story-1", json.RawMessage(`{"chapterNumber":0}`))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}

	// The rejected request must not have consumed quota.
	used, _, err := usage.IncrementDaily(ctx, "user-1", quota.Day(nowUTC()), 5)
	if err != nil {
		t.Fatalf("IncrementDaily: %v", err)
	}
	if used != 1 {
		t.Fatalf("used = %d, want 1; validation failures must not charge quota", used)
	}
}
