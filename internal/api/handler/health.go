package handler

import (
	"net/http"
	"time"

	"github.com/authgate/authgate/internal/api/response"
)

// HealthHandler handles the GET /health endpoint.
type HealthHandler struct {
	version string
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version}
}

type healthData struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// ServeHTTP handles the health check request.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response.Success(w, http.StatusOK, healthData{
		Service:   "auth-gateway",
		Version:   h.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
