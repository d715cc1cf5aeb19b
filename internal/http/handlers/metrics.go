package handlers

import (
	"errors"
	"net/http"

	"server/internal/domain"
)

// MetricsSummary returns the latest day's pipeline counters.
func (a *App) MetricsSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := a.Metrics.GetSummary(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.json(w, http.StatusOK, map[string]any{"day": "", "jobs_started": 0, "jobs_completed": 0, "jobs_failed": 0, "quota_denied": 0})
			return
		}
		a.Logger.Error().Err(err).Msg("handlers: failed to load metrics summary")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load metrics")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"day":            summary.Day,
		"jobs_started":   summary.JobsStarted,
		"jobs_completed": summary.JobsCompleted,
		"jobs_failed":    summary.JobsFailed,
		"quota_denied":   summary.QuotaDenied,
	})
}
