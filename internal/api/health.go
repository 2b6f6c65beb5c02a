package api

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"stockpulse/internal/cache"
	"stockpulse/internal/storage"
)

// HealthHandler serves liveness and service status.
type HealthHandler struct {
	store     *storage.Storage
	cache     *cache.Cache
	startedAt time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(store *storage.Storage, trendingCache *cache.Cache) *HealthHandler {
	return &HealthHandler{store: store, cache: trendingCache, startedAt: time.Now()}
}

// Health reports liveness. The database is required; Redis is optional
// and only reported.
func (h *HealthHandler) Health(c fiber.Ctx) error {
	if err := h.store.Ping(); err != nil {
		return jsonError(c, fiber.StatusServiceUnavailable, "database unavailable")
	}

	redisState := "disabled"
	if h.cache != nil {
		redisState = "ok"
		if err := h.cache.Ping(c.Context()); err != nil {
			redisState = "unavailable"
		}
	}
	return jsonSuccess(c, fiber.Map{
		"database": "ok",
		"redis":    redisState,
	})
}

// Status returns uptime and ingest totals.
func (h *HealthHandler) Status(c fiber.Ctx) error {
	total, err := h.store.MentionTotal()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "failed to read status")
	}
	watchlist, err := h.store.Watchlist()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "failed to read status")
	}

	return jsonSuccess(c, fiber.Map{
		"uptime_seconds":  int(time.Since(h.startedAt).Seconds()),
		"mentions_stored": total,
		"watchlist":       watchlist,
	})
}
