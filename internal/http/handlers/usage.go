package handlers

import (
	"errors"
	"net/http"
	"time"

	"server/internal/domain"
	"server/internal/middleware"
	"server/internal/quota"
)

// UsageStatus reports the caller's generation allowance for the current UTC
// day. A record from an earlier day counts as zero used. This is a read-only
// peek: it never touches the counter.
func (a *App) UsageStatus(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	day := quota.Day(time.Now())
	used := 0
	rec, err := a.Usage.Get(r.Context(), userID)
	switch {
	case err == nil:
		if rec.Date == day {
			used = rec.Used
		}
	case errors.Is(err, domain.ErrNotFound):
	default:
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("handlers: failed to load usage")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load usage")
		return
	}

	limit := a.Quota.Limit()
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	a.json(w, http.StatusOK, map[string]any{
		"day":       day,
		"used":      used,
		"limit":     limit,
		"remaining": remaining,
	})
}
