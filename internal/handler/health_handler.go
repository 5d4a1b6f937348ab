package handler

import (
	"context"
	"net/http"
	"time"

	"quizierra/internal/domain"
	"quizierra/internal/dto"
	"quizierra/internal/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const healthCheckTimeout = 2 * time.Second

// DatabasePinger is satisfied by *sqlx.DB and *sql.DB.
type DatabasePinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports whether the datastore and the optional cache are reachable.
type HealthHandler struct {
	db    DatabasePinger
	cache domain.Cache
}

// NewHealthHandler creates a HealthHandler. cache may be nil when Redis is disabled.
func NewHealthHandler(db DatabasePinger, cache domain.Cache) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

// Health handles GET /healthz
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthCheckTimeout)
	defer cancel()

	resp := dto.HealthResponse{Status: "ok", Database: "ok"}
	status := http.StatusOK

	if err := h.db.PingContext(ctx); err != nil {
		logger.Get().Error("Database health check failed", zap.Error(err))
		resp.Status = "degraded"
		resp.Database = "unavailable"
		status = http.StatusServiceUnavailable
	}

	// The cache is best-effort, so an outage degrades the report without failing the check.
	if h.cache != nil {
		resp.Cache = "ok"
		if err := h.cache.Ping(ctx); err != nil {
			logger.Get().Warn("Cache health check failed", zap.Error(err))
			resp.Cache = "unavailable"
			if resp.Status == "ok" {
				resp.Status = "degraded"
			}
		}
	}

	return c.Status(status).JSON(resp)
}
