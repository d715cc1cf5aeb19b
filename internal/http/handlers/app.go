package handlers

import (
	"encoding/json"
	"net/http"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/pipeline"
	"server/internal/quota"
)

// App bundles the dependencies the HTTP handlers need.
type App struct {
	Jobs         domain.JobRepository
	Stories      domain.StoryRepository
	Usage        domain.UsageRepository
	Metrics      domain.MetricsRepository
	Quota        *quota.Ledger
	Orchestrator *pipeline.Orchestrator
	Invoker      pipeline.Invoker
	Logger       infra.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]string{"error": errCode, "message": message})
}
