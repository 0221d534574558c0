package handler

import (
	"context"
	"go-storefront-auth/common"
	"go-storefront-auth/logger"
	"net/http"
	"time"
)

// PingFunc reports whether a backing store is reachable.
type PingFunc func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]PingFunc
}

// NewHealthHandler reports healthy only while every named check passes.
func NewHealthHandler(checks map[string]PingFunc) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Check godoc
// @Summary      Show the status of server
// @Description  get the status of server and its database
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /health [get]
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, body := http.StatusOK, map[string]string{"status": "ok"}
	for name, ping := range h.checks {
		if err := ping(ctx); err != nil {
			logger.Log.WithError(err).WithField("dependency", name).Warn("Health check failed")
			status = http.StatusServiceUnavailable
			body["status"] = "unavailable"
			body[name] = "down"
		}
	}
	common.WriteJSON(w, status, body)
}
