package api

import (
	"context"
	"net/http"
	"time"
)

// Checker reports whether a dependency is usable.
type Checker interface {
	Health(ctx context.Context) error
}

// SystemHandler serves liveness and build information. DB failures make the
// service unhealthy; the narrative backend is optional and only reported.
type SystemHandler struct {
	DB       Checker
	Narrator Checker
}

type healthBody struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Database  string `json:"database,omitempty"`
	Narrative string `json:"narrative,omitempty"`
}

func (h *SystemHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := healthBody{Status: "ok", Service: "dosecert"}
	status := http.StatusOK
	if h.DB != nil {
		body.Database = "ok"
		if err := h.DB.Health(ctx); err != nil {
			body.Status, body.Database = "degraded", "unavailable"
			status = http.StatusServiceUnavailable
		}
	}
	if h.Narrator != nil {
		body.Narrative = "ok"
		if err := h.Narrator.Health(ctx); err != nil {
			body.Narrative = "unavailable"
		}
	}
	writeJSON(w, body, status)
}

func (h *SystemHandler) VersionHandler(version, buildTime string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"version": version, "buildTime": buildTime}, http.StatusOK)
	}
}
