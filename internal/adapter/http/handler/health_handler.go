package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iller75/BybitMover/internal/usecase"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	ledger      usecase.LedgerReader
	redisClient *redis.Client
}

// NewHealthHandler creates a new HealthHandler. redisClient may be nil when
// the sweep lock is disabled.
func NewHealthHandler(ledger usecase.LedgerReader, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{
		ledger:      ledger,
		redisClient: redisClient,
	}
}

// Liveness returns 200 if the service is alive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness returns 200 if the ledger is readable and Redis, when
// configured, answers.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, err := h.ledger.List(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "ledger unreadable", err.Error())
		return
	}

	status := map[string]string{
		"status": "ready",
		"ledger": "ok",
	}

	if h.redisClient != nil {
		if err := h.redisClient.Ping(ctx).Err(); err != nil {
			writeError(w, http.StatusServiceUnavailable, "redis unhealthy", err.Error())
			return
		}
		status["redis"] = "ok"
	}

	writeJSON(w, http.StatusOK, status)
}
