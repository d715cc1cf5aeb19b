package domain

import "context"

// JobRepository defines persistence for job entities.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	// UpdateStatus applies one transition. Implementations must refuse
	// writes against a terminal status and return ErrTerminalStatus.
	UpdateStatus(ctx context.Context, jobID string, update JobUpdate) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
	ListByStory(ctx context.Context, storyID string) ([]Job, error)
	// ClaimQueued atomically moves the oldest queued job to processing and
	// returns it, or ErrNotFound when nothing is queued.
	ClaimQueued(ctx context.Context) (*Job, error)
}

// StoryRepository provides read access to story documents and persistence
// for generated artifacts.
type StoryRepository interface {
	GetByID(ctx context.Context, storyID string) (*Story, error)
	ListChapters(ctx context.Context, storyID string) ([]Chapter, error)
	AddChapter(ctx context.Context, chapter *Chapter) error
	SaveGeneratedContent(ctx context.Context, storyID, content string, metadata map[string]any) error
}

// UsageRepository persists per-user daily generation counters.
type UsageRepository interface {
	// IncrementDaily atomically increments the user's counter for day
	// unless it already reached limit, resetting the counter first when the
	// stored date is older. It reports the resulting count and whether the
	// increment was applied.
	IncrementDaily(ctx context.Context, userID, day string, limit int) (used int, allowed bool, err error)
	// Get returns the stored record for a user, or ErrNotFound when the
	// user has never generated anything.
	Get(ctx context.Context, userID string) (*UsageRecord, error)
}

// MetricsRepository updates daily pipeline counters.
type MetricsRepository interface {
	IncrementCounters(ctx context.Context, day string, counters map[string]int) error
	GetSummary(ctx context.Context) (*MetricsDaily, error)
}
