package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/quota"
)

// StoryInput carries the parameters for a generate_story job.
type StoryInput struct {
	Genre    string `json:"genre,omitempty"`
	Tone     string `json:"tone,omitempty"`
	Length   string `json:"length,omitempty"`
	Language string `json:"language,omitempty"`
}

// ChapterInput carries the parameters for a generate_chapter job.
type ChapterInput struct {
	ChapterNumber int    `json:"chapterNumber"`
	Language      string `json:"language,omitempty"`
}

// QuotaDeniedError reports a request rejected by admission control before
// any job was created.
type QuotaDeniedError struct {
	Used  int
	Limit int
}

func (e *QuotaDeniedError) Error() string {
	return fmt.Sprintf("daily generation limit reached: used %d of %d", e.Used, e.Limit)
}

func (e *QuotaDeniedError) Is(target error) bool {
	return target == domain.ErrQuotaExceeded
}

// Orchestrator is the synchronous entry point of the generation pipeline:
// validate, admit, persist a queued job, return its id. The staged
// background half lives in Runner and picks the job up through the store.
type Orchestrator struct {
	jobs    domain.JobRepository
	ledger  *quota.Ledger
	metrics domain.MetricsRepository
	logger  infra.Logger
}

// NewOrchestrator wires the synchronous pipeline half.
func NewOrchestrator(jobs domain.JobRepository, ledger *quota.Ledger, metrics domain.MetricsRepository, logger infra.Logger) *Orchestrator {
	return &Orchestrator{jobs: jobs, ledger: ledger, metrics: metrics, logger: logger}
}

// Start validates the request, charges the caller's quota, and creates the
// job in queued state. It never waits for generation: the caller gets the
// job id and polls. Errors here are the only ones surfaced synchronously.
func (o *Orchestrator) Start(ctx context.Context, userID string, kind domain.JobKind, storyID string, rawInput json.RawMessage) (*domain.Job, error) {
	if strings.TrimSpace(storyID) == "" {
		return nil, fmt.Errorf("%w: storyId is required", domain.ErrInvalidInput)
	}

	input, err := normalizeInput(kind, rawInput)
	if err != nil {
		return nil, err
	}

	decision, err := o.ledger.CheckAndAdmit(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		o.count(ctx, domain.MetricQuotaDenied)
		return nil, &QuotaDeniedError{Used: decision.Used, Limit: decision.Limit}
	}

	job := &domain.Job{
		ID:      uuid.NewString(),
		StoryID: storyID,
		Kind:    kind,
		Status:  domain.JobStatusQueued,
		Input:   input,
	}
	if err := o.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	o.count(ctx, domain.MetricJobsStarted)

	o.logger.Info().
		Str("job_id", job.ID).
		Str("story_id", storyID).
		Str("kind", string(kind)).
		Int("quota_used", decision.Used).
		Msg("pipeline: job queued")

	return job, nil
}

func normalizeInput(kind domain.JobKind, rawInput json.RawMessage) (json.RawMessage, error) {
	if len(rawInput) == 0 {
		rawInput = []byte("{}")
	}
	switch kind {
	case domain.JobKindGenerateChapter:
		var input ChapterInput
		if err := json.Unmarshal(rawInput, &input); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		if input.ChapterNumber < 1 {
			return nil, fmt.Errorf("%w: chapterNumber is required and must be positive", domain.ErrInvalidInput)
		}
		return json.Marshal(input)
	case domain.JobKindGenerateStory:
		var input StoryInput
		if err := json.Unmarshal(rawInput, &input); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		return json.Marshal(input)
	default:
		return nil, fmt.Errorf("%w: unsupported job kind %q", domain.ErrInvalidInput, kind)
	}
}

func (o *Orchestrator) count(ctx context.Context, name string) {
	day := quota.Day(nowUTC())
	if err := o.metrics.IncrementCounters(ctx, day, map[string]int{name: 1}); err != nil {
		o.logger.Warn().Err(err).Str("counter", name).Msg("pipeline: metrics update failed")
	}
}
