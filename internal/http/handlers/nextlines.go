package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"server/internal/middleware"
)

type nextLinesRequest struct {
	Content        string `json:"content"`
	CursorPosition *int   `json:"cursorPosition"`
	ChapterID      string `json:"chapterId"`
}

// NextLines continues prose from the author's cursor. Like Brainstorm it is
// synchronous and quota-gated: completions are short enough to wait for, so
// no job is created and the agent payload passes through unchanged.
func (a *App) NextLines(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	storyID := chi.URLParam(r, "story_id")

	var req nextLinesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "content is required and must be a string")
		return
	}
	if req.CursorPosition == nil || *req.CursorPosition < 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "cursorPosition is required and must be a non-negative number")
		return
	}

	decision, err := a.Quota.CheckAndAdmit(r.Context(), userID)
	if err != nil {
		a.error(w, http.StatusServiceUnavailable, "quota_unavailable", "quota check failed, try again later")
		return
	}
	if !decision.Allowed {
		a.json(w, http.StatusTooManyRequests, map[string]any{
			"error":     "quota_exceeded",
			"message":   "Daily AI usage limit reached. Please try again tomorrow.",
			"used":      decision.Used,
			"limit":     decision.Limit,
			"remaining": 0,
		})
		return
	}

	params := map[string]any{
		"storyId":        storyID,
		"content":        req.Content,
		"cursorPosition": *req.CursorPosition,
		"language":       middleware.LocaleFromContext(r.Context()),
	}
	if req.ChapterID != "" {
		// Narrows which chapter the continuation belongs to.
		params["chapterId"] = req.ChapterID
	}

	data, err := a.Invoker.Invoke(r.Context(), "generateNextLines", params)
	if err != nil {
		a.Logger.Error().Err(err).Str("story_id", storyID).Msg("handlers: next lines failed")
		a.error(w, http.StatusBadGateway, "generation_failed", "failed to generate next lines")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
