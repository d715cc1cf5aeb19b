package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/quota"
)

// Progress checkpoints written at stage boundaries.
const (
	progressStarted   = 0
	progressGathered  = 25
	progressGenerated = 75
	progressDone      = 100
)

// Invoker is the retrying remote invocation contract the runner depends on.
type Invoker interface {
	Invoke(ctx context.Context, action string, parameters map[string]any) (json.RawMessage, error)
}

// Runner executes the background half of the pipeline: a strictly sequential
// chain of stages, each acknowledged in the job store before the next one
// begins. The runner is the only writer of its job.
type Runner struct {
	jobs    domain.JobRepository
	stories domain.StoryRepository
	invoker Invoker
	metrics domain.MetricsRepository
	logger  infra.Logger
	now     func() time.Time
}

// NewRunner wires the background pipeline half.
func NewRunner(jobs domain.JobRepository, stories domain.StoryRepository, invoker Invoker, metrics domain.MetricsRepository, logger infra.Logger) *Runner {
	return &Runner{
		jobs:    jobs,
		stories: stories,
		invoker: invoker,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Run drives one claimed job to a terminal status. Nothing escapes: any
// failure, panic included, ends as a failed record rather than a job stuck
// in processing.
func (r *Runner) Run(ctx context.Context, job *domain.Job) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Str("job_id", job.ID).
				Interface("panic", rec).
				Msg("pipeline: recovered panic in job")
			r.fail(job, fmt.Sprintf("internal error: %v", rec))
		}
	}()

	var err error
	switch job.Kind {
	case domain.JobKindGenerateChapter:
		err = r.runChapter(ctx, job)
	case domain.JobKindGenerateStory:
		err = r.runStory(ctx, job)
	default:
		err = fmt.Errorf("unsupported job kind %q", job.Kind)
	}

	if err != nil {
		r.logger.Error().Err(err).Str("job_id", job.ID).Msg("pipeline: job failed")
		r.fail(job, failureMessage(ctx, err))
		return
	}

	r.count(domain.MetricJobsCompleted)
	r.logger.Info().Str("job_id", job.ID).Msg("pipeline: job completed")
}

func (r *Runner) runChapter(ctx context.Context, job *domain.Job) error {
	var input ChapterInput
	if err := json.Unmarshal(job.Input, &input); err != nil {
		return fmt.Errorf("decode chapter input: %w", err)
	}

	if err := r.progress(ctx, job.ID, progressStarted); err != nil {
		return err
	}

	story, previous, err := gatherChapterContext(ctx, r.stories, job.StoryID, input.ChapterNumber)
	if err != nil {
		return err
	}

	if err := r.progress(ctx, job.ID, progressGathered); err != nil {
		return err
	}

	params := map[string]any{
		"storyId":          job.StoryID,
		"chapterNumber":    input.ChapterNumber,
		"previousChapters": previous,
	}
	if input.Language != "" {
		params["language"] = input.Language
	}
	if story.Genre != "" {
		params["genre"] = story.Genre
	}

	payload, err := r.invoker.Invoke(ctx, "generateChapter", params)
	if err != nil {
		return fmt.Errorf("chapter generation failed: %w", err)
	}

	if err := r.progress(ctx, job.ID, progressGenerated); err != nil {
		return err
	}

	content, _, err := parseGenerationPayload(payload)
	if err != nil {
		return err
	}
	title, body := splitChapterContent(content, input.ChapterNumber)

	chapter := &domain.Chapter{
		ID:            uuid.NewString(),
		StoryID:       job.StoryID,
		ChapterNumber: input.ChapterNumber,
		Title:         title,
		Content:       body,
	}
	if err := r.stories.AddChapter(ctx, chapter); err != nil {
		return fmt.Errorf("persist chapter: %w", err)
	}

	return r.complete(ctx, job.ID, map[string]any{
		"storyId":       job.StoryID,
		"chapterId":     chapter.ID,
		"chapterNumber": input.ChapterNumber,
		"title":         title,
	})
}

func (r *Runner) runStory(ctx context.Context, job *domain.Job) error {
	var input StoryInput
	if err := json.Unmarshal(job.Input, &input); err != nil {
		return fmt.Errorf("decode story input: %w", err)
	}

	if err := r.progress(ctx, job.ID, progressStarted); err != nil {
		return err
	}

	if _, err := r.stories.GetByID(ctx, job.StoryID); err != nil {
		return fmt.Errorf("load story %s: %w", job.StoryID, err)
	}

	if err := r.progress(ctx, job.ID, progressGathered); err != nil {
		return err
	}

	params := map[string]any{"storyId": job.StoryID}
	if input.Genre != "" {
		params["genre"] = input.Genre
	}
	if input.Tone != "" {
		params["tone"] = input.Tone
	}
	if input.Length != "" {
		params["length"] = input.Length
	}
	if input.Language != "" {
		params["language"] = input.Language
	}

	payload, err := r.invoker.Invoke(ctx, "generateStory", params)
	if err != nil {
		return fmt.Errorf("story generation failed: %w", err)
	}

	if err := r.progress(ctx, job.ID, progressGenerated); err != nil {
		return err
	}

	content, metadata, err := parseGenerationPayload(payload)
	if err != nil {
		return err
	}

	if err := r.stories.SaveGeneratedContent(ctx, job.StoryID, content, metadata); err != nil {
		return fmt.Errorf("persist story content: %w", err)
	}

	return r.complete(ctx, job.ID, map[string]any{
		"storyId": job.StoryID,
		"content": content,
	})
}

func (r *Runner) progress(ctx context.Context, jobID string, pct int) error {
	err := r.jobs.UpdateStatus(ctx, jobID, domain.JobUpdate{
		Status:   domain.JobStatusProcessing,
		Progress: &pct,
	})
	if err != nil {
		return fmt.Errorf("record progress %d: %w", pct, err)
	}
	return nil
}

func (r *Runner) complete(ctx context.Context, jobID string, result map[string]any) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	pct := progressDone
	err = r.jobs.UpdateStatus(ctx, jobID, domain.JobUpdate{
		Status:   domain.JobStatusCompleted,
		Progress: &pct,
		Result:   resultJSON,
	})
	if err != nil {
		return fmt.Errorf("record completion: %w", err)
	}
	return nil
}

// fail writes the terminal failure record. It deliberately detaches from the
// job context: a deadline that killed the pipeline must not also suppress
// the failure write.
func (r *Runner) fail(job *domain.Job, message string) {
	wctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := r.jobs.UpdateStatus(wctx, job.ID, domain.JobUpdate{
		Status:       domain.JobStatusFailed,
		ErrorMessage: message,
	})
	if err != nil && !errors.Is(err, domain.ErrTerminalStatus) {
		r.logger.Error().Err(err).Str("job_id", job.ID).Msg("pipeline: failed to record job failure")
	}
	r.count(domain.MetricJobsFailed)
}

func (r *Runner) count(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.metrics.IncrementCounters(ctx, quota.Day(r.now()), map[string]int{name: 1}); err != nil {
		r.logger.Warn().Err(err).Str("counter", name).Msg("pipeline: metrics update failed")
	}
}

// failureMessage turns pipeline errors into the message a polling client
// sees. Deadline expiry gets its own wording so a hung agent is
// distinguishable from a rejected generation.
func failureMessage(ctx context.Context, err error) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return "generation timed out before the agent finished"
	}
	return err.Error()
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
