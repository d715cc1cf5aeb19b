package domain

import "time"

// MetricsDaily aggregates pipeline counters for one UTC day.
type MetricsDaily struct {
	Day           string
	JobsStarted   int
	JobsCompleted int
	JobsFailed    int
	QuotaDenied   int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Counter names accepted by MetricsRepository.IncrementCounters.
const (
	MetricJobsStarted   = "jobs_started"
	MetricJobsCompleted = "jobs_completed"
	MetricJobsFailed    = "jobs_failed"
	MetricQuotaDenied   = "quota_denied"
)
