package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"server/internal/middleware"
)

var brainstormTypes = map[string]struct{}{
	"characters": {},
	"plots":      {},
	"places":     {},
	"themes":     {},
}

const defaultIdeaCount = 5

type brainstormRequest struct {
	Type   string `json:"type"`
	Prompt string `json:"prompt"`
	Count  int    `json:"count"`
}

// Brainstorm generates story ideas synchronously. Unlike chapter and story
// generation it returns the agent payload directly: idea lists are quick
// enough to wait for, so no job is created.
func (a *App) Brainstorm(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	storyID := chi.URLParam(r, "story_id")

	var req brainstormRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	if _, ok := brainstormTypes[req.Type]; !ok {
		a.error(w, http.StatusBadRequest, "bad_request", "type must be one of: characters, plots, places, themes")
		return
	}
	if req.Count <= 0 {
		req.Count = defaultIdeaCount
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
		"storyId":  storyID,
		"type":     req.Type,
		"count":    req.Count,
		"language": middleware.LocaleFromContext(r.Context()),
	}
	if req.Prompt != "" {
		params["prompt"] = req.Prompt
	}

	data, err := a.Invoker.Invoke(r.Context(), "brainstormIdeas", params)
	if err != nil {
		a.Logger.Error().Err(err).Str("story_id", storyID).Msg("handlers: brainstorm failed")
		a.error(w, http.StatusBadGateway, "generation_failed", "failed to generate ideas")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
