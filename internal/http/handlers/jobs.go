package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
	"server/internal/middleware"
	"server/internal/pipeline"
)

type startJobResponse struct {
	JobID   string `json:"jobId"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type jobResponse struct {
	ID           string          `json:"id"`
	StoryID      string          `json:"storyId"`
	Kind         string          `json:"kind"`
	Status       string          `json:"status"`
	Progress     int             `json:"progress"`
	Input        json.RawMessage `json:"input,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorMessage string          `json:"error,omitempty"`
	CreatedAt    string          `json:"createdAt"`
	UpdatedAt    string          `json:"updatedAt"`
}

// GenerateStory starts an asynchronous story generation job. The response is
// 202 Accepted with the job id; generation outlives the request.
func (a *App) GenerateStory(w http.ResponseWriter, r *http.Request) {
	a.startJob(w, r, domain.JobKindGenerateStory, "Story generation started")
}

// GenerateChapter starts an asynchronous chapter generation job.
func (a *App) GenerateChapter(w http.ResponseWriter, r *http.Request) {
	a.startJob(w, r, domain.JobKindGenerateChapter, "Chapter generation started")
}

func (a *App) startJob(w http.ResponseWriter, r *http.Request, kind domain.JobKind, message string) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	storyID := chi.URLParam(r, "story_id")

	rawInput, err := decodeInputWithLocale(r)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	job, err := a.Orchestrator.Start(r.Context(), userID, kind, storyID, rawInput)
	if err != nil {
		var denied *pipeline.QuotaDeniedError
		switch {
		case errors.As(err, &denied):
			a.json(w, http.StatusTooManyRequests, map[string]any{
				"error":     "quota_exceeded",
				"message":   "Daily AI usage limit reached. Please try again tomorrow.",
				"used":      denied.Used,
				"limit":     denied.Limit,
				"remaining": 0,
			})
		case errors.Is(err, domain.ErrInvalidInput):
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		default:
			a.Logger.Error().Err(err).Str("story_id", storyID).Msg("handlers: failed to start job")
			a.error(w, http.StatusInternalServerError, "internal", "failed to start generation")
		}
		return
	}

	a.json(w, http.StatusAccepted, startJobResponse{
		JobID:   job.ID,
		Status:  string(job.Status),
		Message: message,
	})
}

// decodeInputWithLocale reads the request body and stamps the detected
// locale into it so the stored job input is self-contained.
func decodeInputWithLocale(r *http.Request) (json.RawMessage, error) {
	input := map[string]any{}
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	}
	if _, ok := input["language"]; !ok {
		input["language"] = middleware.LocaleFromContext(r.Context())
	}
	return json.Marshal(input)
}

// JobStatus returns the full job record for polling clients.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}

	job, err := a.Jobs.GetByID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("handlers: failed to load job")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}

	a.json(w, http.StatusOK, toJobResponse(job))
}

// StoryJobs lists every job for a story, newest first.
func (a *App) StoryJobs(w http.ResponseWriter, r *http.Request) {
	storyID := chi.URLParam(r, "story_id")
	if storyID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "story_id required")
		return
	}

	jobs, err := a.Jobs.ListByStory(r.Context(), storyID)
	if err != nil {
		a.Logger.Error().Err(err).Str("story_id", storyID).Msg("handlers: failed to list jobs")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list jobs")
		return
	}

	items := make([]jobResponse, 0, len(jobs))
	for i := range jobs {
		items = append(items, toJobResponse(&jobs[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"jobs": items})
}

func toJobResponse(job *domain.Job) jobResponse {
	return jobResponse{
		ID:           job.ID,
		StoryID:      job.StoryID,
		Kind:         string(job.Kind),
		Status:       string(job.Status),
		Progress:     job.Progress,
		Input:        job.Input,
		Result:       job.Result,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    job.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
