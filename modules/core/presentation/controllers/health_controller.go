package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/rescueranger/rescueranger/pkg/application"
)

// CachePinger reports cache backend liveness.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// HealthController reports subsystem health. Its routes are exempt from
// tenant resolution: they must answer under any host.
type HealthController struct {
	app      application.Application
	cache    CachePinger
	basePath string
}

func NewHealthController(app application.Application, cache CachePinger) application.Controller {
	return &HealthController{
		app:      app,
		cache:    cache,
		basePath: "/health",
	}
}

func (c *HealthController) Key() string {
	return c.basePath
}

func (c *HealthController) Register(r *mux.Router) {
	r.HandleFunc(c.basePath, c.health).Methods(http.MethodGet)
}

type healthResponse struct {
	Status   string            `json:"status"`
	Checks   map[string]string `json:"checks"`
	Duration string            `json:"duration"`
}

func (c *HealthController) health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := c.app.DB().Ping(ctx); err != nil {
		checks["database"] = err.Error()
		healthy = false
	} else {
		checks["database"] = "ok"
	}

	if c.cache != nil {
		if err := c.cache.Ping(ctx); err != nil {
			// A dead cache degrades lookups but does not take the
			// service down.
			checks["cache"] = "degraded: " + err.Error()
		} else {
			checks["cache"] = "ok"
		}
	}

	status := http.StatusOK
	statusText := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		statusText = "unavailable"
	}

	writeJSON(w, status, &healthResponse{
		Status:   statusText,
		Checks:   checks,
		Duration: time.Since(start).String(),
	})
}
