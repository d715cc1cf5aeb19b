// Package memrepo provides in-memory implementations of the domain
// repositories. They back package tests and enforce the same lifecycle rules
// as the PostgreSQL adapters.
package memrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"server/internal/domain"
)

// JobRepository is an in-memory domain.JobRepository.
type JobRepository struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
	// Updates records every transition in order, for assertions on the
	// observed progress sequence.
	Updates []domain.JobUpdate
}

// NewJobRepository constructs an empty in-memory job repository.
func NewJobRepository() *JobRepository {
	return &JobRepository{jobs: make(map[string]*domain.Job)}
}

func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	stored := *job
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.jobs[job.ID] = &stored
	return nil
}

func (r *JobRepository) UpdateStatus(ctx context.Context, jobID string, update domain.JobUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if job.Status.Terminal() {
		return domain.ErrTerminalStatus
	}
	now := time.Now()
	job.Status = update.Status
	if update.Progress != nil {
		job.Progress = *update.Progress
	}
	if len(update.Result) > 0 {
		job.Result = append([]byte(nil), update.Result...)
	}
	if update.ErrorMessage != "" {
		job.ErrorMessage = update.ErrorMessage
	}
	if update.Status == domain.JobStatusProcessing && job.StartedAt == nil {
		job.StartedAt = &now
	}
	if update.Status.Terminal() {
		job.CompletedAt = &now
	}
	job.UpdatedAt = now
	r.Updates = append(r.Updates, update)
	return nil
}

func (r *JobRepository) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (r *JobRepository) ListByStory(ctx context.Context, storyID string) ([]domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var jobs []domain.Job
	for _, job := range r.jobs {
		if job.StoryID == storyID {
			jobs = append(jobs, *job)
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	return jobs, nil
}

func (r *JobRepository) ClaimQueued(ctx context.Context) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var oldest *domain.Job
	for _, job := range r.jobs {
		if job.Status != domain.JobStatusQueued {
			continue
		}
		if oldest == nil || job.CreatedAt.Before(oldest.CreatedAt) {
			oldest = job
		}
	}
	if oldest == nil {
		return nil, domain.ErrNotFound
	}
	now := time.Now()
	oldest.Status = domain.JobStatusProcessing
	oldest.Progress = 0
	oldest.StartedAt = &now
	oldest.UpdatedAt = now
	copied := *oldest
	return &copied, nil
}

// StoryRepository is an in-memory domain.StoryRepository.
type StoryRepository struct {
	mu       sync.Mutex
	stories  map[string]*domain.Story
	chapters map[string][]domain.Chapter
}

// NewStoryRepository constructs an empty in-memory story repository.
func NewStoryRepository() *StoryRepository {
	return &StoryRepository{
		stories:  make(map[string]*domain.Story),
		chapters: make(map[string][]domain.Chapter),
	}
}

// PutStory seeds a story document.
func (r *StoryRepository) PutStory(story domain.Story) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stories[story.ID] = &story
}

// PutChapter seeds an existing chapter.
func (r *StoryRepository) PutChapter(chapter domain.Chapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chapters[chapter.StoryID] = append(r.chapters[chapter.StoryID], chapter)
}

func (r *StoryRepository) GetByID(ctx context.Context, storyID string) (*domain.Story, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	story, ok := r.stories[storyID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *story
	return &copied, nil
}

func (r *StoryRepository) ListChapters(ctx context.Context, storyID string) ([]domain.Chapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chapters := append([]domain.Chapter(nil), r.chapters[storyID]...)
	sort.Slice(chapters, func(i, j int) bool { return chapters[i].ChapterNumber < chapters[j].ChapterNumber })
	return chapters, nil
}

func (r *StoryRepository) AddChapter(ctx context.Context, chapter *domain.Chapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stories[chapter.StoryID]; !ok {
		return domain.ErrNotFound
	}
	stored := *chapter
	stored.CreatedAt = time.Now()
	r.chapters[chapter.StoryID] = append(r.chapters[chapter.StoryID], stored)
	return nil
}

func (r *StoryRepository) SaveGeneratedContent(ctx context.Context, storyID, content string, metadata map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	story, ok := r.stories[storyID]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	story.GeneratedContent = content
	story.GeneratedAt = &now
	story.UpdatedAt = now
	return nil
}

// UsageRepository is an in-memory domain.UsageRepository with the same
// increment-with-ceiling semantics as the SQL implementation.
type UsageRepository struct {
	mu      sync.Mutex
	records map[string]*domain.UsageRecord
	// Err, when set, is returned from IncrementDaily to simulate outages.
	Err error
}

// NewUsageRepository constructs an empty in-memory usage repository.
func NewUsageRepository() *UsageRepository {
	return &UsageRepository{records: make(map[string]*domain.UsageRecord)}
}

func (r *UsageRepository) IncrementDaily(ctx context.Context, userID, day string, limit int) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return 0, false, r.Err
	}
	rec, ok := r.records[userID]
	if !ok || rec.Date != day {
		r.records[userID] = &domain.UsageRecord{UserID: userID, Date: day, Used: 1}
		return 1, true, nil
	}
	if rec.Used >= limit {
		return rec.Used, false, nil
	}
	rec.Used++
	return rec.Used, true, nil
}

func (r *UsageRepository) Get(ctx context.Context, userID string) (*domain.UsageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	rec, ok := r.records[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

// MetricsRepository is an in-memory domain.MetricsRepository.
type MetricsRepository struct {
	mu       sync.Mutex
	Counters map[string]map[string]int
}

// NewMetricsRepository constructs an empty in-memory metrics repository.
func NewMetricsRepository() *MetricsRepository {
	return &MetricsRepository{Counters: make(map[string]map[string]int)}
}

func (r *MetricsRepository) IncrementCounters(ctx context.Context, day string, counters map[string]int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	dayCounters, ok := r.Counters[day]
	if !ok {
		dayCounters = make(map[string]int)
		r.Counters[day] = dayCounters
	}
	for name, delta := range counters {
		dayCounters[name] += delta
	}
	return nil
}

func (r *MetricsRepository) GetSummary(ctx context.Context) (*domain.MetricsDaily, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest string
	for day := range r.Counters {
		if day > latest {
			latest = day
		}
	}
	if latest == "" {
		return nil, domain.ErrNotFound
	}
	counters := r.Counters[latest]
	return &domain.MetricsDaily{
		Day:           latest,
		JobsStarted:   counters[domain.MetricJobsStarted],
		JobsCompleted: counters[domain.MetricJobsCompleted],
		JobsFailed:    counters[domain.MetricJobsFailed],
		QuotaDenied:   counters[domain.MetricQuotaDenied],
	}, nil
}
