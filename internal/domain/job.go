package domain

import (
	"encoding/json"
	"time"
)

// JobKind enumerates supported generation job categories.
type JobKind string

const (
	JobKindGenerateStory   JobKind = "generate_story"
	JobKindGenerateChapter JobKind = "generate_chapter"
)

// Valid reports whether k names a known job kind.
func (k JobKind) Valid() bool {
	return k == JobKindGenerateStory || k == JobKindGenerateChapter
}

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition is permitted from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether a job may move from s to next. Transitions
// are one-directional: queued -> processing -> completed|failed. A
// processing -> processing transition carries a progress update.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobStatusQueued:
		return next == JobStatusProcessing
	case JobStatusProcessing:
		return next == JobStatusProcessing || next == JobStatusCompleted || next == JobStatusFailed
	default:
		return false
	}
}

// Job tracks the lifecycle of one asynchronous generation request. The
// pipeline runner is the only writer; everything else reads.
type Job struct {
	ID           string
	StoryID      string
	Kind         JobKind
	Status       JobStatus
	Progress     int
	Input        json.RawMessage
	Result       json.RawMessage
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// JobUpdate carries one status transition written by the pipeline. Progress
// is a pointer so a plain status flip does not clobber the stored value.
type JobUpdate struct {
	Status       JobStatus
	Progress     *int
	Result       json.RawMessage
	ErrorMessage string
}
