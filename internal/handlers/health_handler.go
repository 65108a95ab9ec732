package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// HealthHandler answers liveness probes
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// RegisterRoutes registers the routes for this handler
func (h *HealthHandler) RegisterRoutes(router *mux.Router, _ *zap.Logger) {
	router.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
}

func (h *HealthHandler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
