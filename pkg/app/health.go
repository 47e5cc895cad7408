package app

import (
	"context"
	"net/http"
	"time"

	httputil "courtbook/pkg/http"
	"courtbook/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

const readinessTimeout = 2 * time.Second

// Pinger reports whether the durable store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage,omitempty"`
	Backend string `json:"backend,omitempty"`
}

type HealthHandler struct {
	pinger  Pinger
	backend string
	log     *logger.Logger
}

func NewHealthHandler(pinger Pinger, backend string, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		pinger:  pinger,
		backend: backend,
		log:     log,
	}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
	}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Health", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	if h.pinger != nil {
		if err := h.pinger.Ping(ctx); err != nil {
			h.log.Error("Storage health check failed",
				"error", err,
				"backend", h.backend,
				"path", r.URL.Path,
			)
			if writeErr := httputil.WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status:  "unavailable",
				Storage: "error",
				Backend: h.backend,
			}); writeErr != nil {
				h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", writeErr)
			}
			return
		}
	}

	if err := httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:  "ready",
		Storage: "ok",
		Backend: h.backend,
	}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}
