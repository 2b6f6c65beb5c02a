package api

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"stockpulse/internal/cache"
	"stockpulse/internal/logger"
	"stockpulse/internal/monitor"
	"stockpulse/internal/storage"
)

// TrendingHandler serves aggregate mention activity across all tickers.
type TrendingHandler struct {
	store *storage.Storage
	cache *cache.Cache
	mon   *monitor.Monitor
}

// NewTrendingHandler creates a new trending handler.
func NewTrendingHandler(store *storage.Storage, trendingCache *cache.Cache, mon *monitor.Monitor) *TrendingHandler {
	return &TrendingHandler{store: store, cache: trendingCache, mon: mon}
}

// Trending returns the most mentioned tickers over a trailing window,
// served from Redis when a fresh entry exists.
func (h *TrendingHandler) Trending(c fiber.Ctx) error {
	hours, err := queryInt(c, "hours", 24, 1, 168)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}
	limit, err := queryInt(c, "limit", 10, 1, 50)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}

	cached, err := h.cache.GetTrending(c.Context(), hours, limit)
	if err != nil {
		logger.Warn("trending cache read failed: %v", err)
	}
	if cached != nil {
		return jsonSuccess(c, fiber.Map{
			"hours":   hours,
			"tickers": cached,
			"cached":  true,
		})
	}

	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	tickers, err := h.store.Trending(since, limit)
	if err != nil {
		logger.Error("trending query failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "failed to compute trending tickers")
	}

	if err := h.cache.SetTrending(c.Context(), hours, limit, tickers); err != nil {
		logger.Warn("trending cache write failed: %v", err)
	}

	return jsonSuccess(c, fiber.Map{
		"hours":   hours,
		"tickers": tickers,
		"cached":  false,
	})
}

// Anomalies runs detection on demand and returns every ticker whose current
// mention count deviates from its trailing baseline.
func (h *TrendingHandler) Anomalies(c fiber.Ctx) error {
	windowMinutes, err := queryInt(c, "window_minutes", 60, 1, 1440)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}

	results, err := h.mon.Detect(windowMinutes)
	if err != nil {
		logger.Error("anomaly detection failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "anomaly detection failed")
	}

	return jsonSuccess(c, fiber.Map{
		"window_minutes": windowMinutes,
		"anomalies":      results,
	})
}
