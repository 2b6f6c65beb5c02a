package api

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"stockpulse/internal/config"
	"stockpulse/internal/logger"
	"stockpulse/internal/monitor"
	"stockpulse/internal/sentiment"
	"stockpulse/internal/storage"
	"stockpulse/internal/tickers"
)

// TickerHandler serves per-ticker mention, sentiment and price data.
type TickerHandler struct {
	store *storage.Storage
	mon   *monitor.Monitor
	cfg   *config.Config
}

// NewTickerHandler creates a new ticker handler.
func NewTickerHandler(store *storage.Storage, mon *monitor.Monitor, cfg *config.Config) *TickerHandler {
	return &TickerHandler{store: store, mon: mon, cfg: cfg}
}

// symbol extracts and validates the :symbol route parameter.
func (h *TickerHandler) symbol(c fiber.Ctx) (string, error) {
	sym := strings.ToUpper(strings.TrimSpace(c.Params("symbol")))
	if !tickers.IsValid(sym) {
		return "", errors.New("invalid ticker symbol")
	}
	return sym, nil
}

// Stats returns aggregate mention statistics plus the live detector reading
// for the current window.
func (h *TickerHandler) Stats(c fiber.Ctx) error {
	sym, err := h.symbol(c)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}
	hours, err := queryInt(c, "hours", 24, 1, 168)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}
	windowMinutes, err := queryInt(c, "window_minutes", h.cfg.Monitor.WindowMinutes, 1, 1440)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}

	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	stats, err := h.store.TickerStats(sym, since)
	if err != nil {
		logger.Error("ticker stats query failed for %s: %v", sym, err)
		return jsonError(c, fiber.StatusInternalServerError, "failed to compute ticker stats")
	}

	count, zScore, isAnomaly, err := h.mon.Score(sym, windowMinutes)
	if err != nil {
		logger.Error("detector score failed for %s: %v", sym, err)
		return jsonError(c, fiber.StatusInternalServerError, "failed to score current window")
	}

	return jsonSuccess(c, fiber.Map{
		"stats":           stats,
		"sentiment_label": sentiment.Label(stats.AvgSentiment),
		"current_window": fiber.Map{
			"window_minutes": windowMinutes,
			"mentions":       count,
			"z_score":        zScore,
			"is_anomaly":     isAnomaly,
		},
	})
}

// Sentiment returns time-bucketed average sentiment for a ticker.
func (h *TickerHandler) Sentiment(c fiber.Ctx) error {
	sym, err := h.symbol(c)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}
	hours, err := queryInt(c, "hours", 24, 1, 168)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}
	bucketMinutes, err := queryInt(c, "bucket_minutes", 60, 1, 1440)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}

	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	trend, err := h.store.SentimentTrend(sym, since, bucketMinutes)
	if err != nil {
		logger.Error("sentiment trend query failed for %s: %v", sym, err)
		return jsonError(c, fiber.StatusInternalServerError, "failed to compute sentiment trend")
	}

	return jsonSuccess(c, fiber.Map{
		"ticker":         sym,
		"bucket_minutes": bucketMinutes,
		"trend":          trend,
	})
}

// Mentions returns the most recent raw mentions for a ticker.
func (h *TickerHandler) Mentions(c fiber.Ctx) error {
	sym, err := h.symbol(c)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}
	limit, err := queryInt(c, "limit", 20, 1, 100)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}

	mentions, err := h.store.RecentMentions(sym, limit)
	if err != nil {
		logger.Error("recent mentions query failed for %s: %v", sym, err)
		return jsonError(c, fiber.StatusInternalServerError, "failed to load mentions")
	}

	return jsonSuccess(c, fiber.Map{
		"ticker":   sym,
		"mentions": mentions,
	})
}

// Price returns the most recently fetched quote for a ticker.
func (h *TickerHandler) Price(c fiber.Ctx) error {
	sym, err := h.symbol(c)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}

	quote, err := h.store.LatestPrice(sym)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return jsonError(c, fiber.StatusNotFound, "no price data for "+sym)
		}
		logger.Error("price query failed for %s: %v", sym, err)
		return jsonError(c, fiber.StatusInternalServerError, "failed to load price")
	}

	return jsonSuccess(c, quote)
}

// PriceHistory returns stored quotes for a ticker over a trailing window.
func (h *TickerHandler) PriceHistory(c fiber.Ctx) error {
	sym, err := h.symbol(c)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}
	hours, err := queryInt(c, "hours", 168, 1, 720)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}

	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	history, err := h.store.PriceHistory(sym, since)
	if err != nil {
		logger.Error("price history query failed for %s: %v", sym, err)
		return jsonError(c, fiber.StatusInternalServerError, "failed to load price history")
	}

	return jsonSuccess(c, fiber.Map{
		"ticker":  sym,
		"history": history,
	})
}

// Track adds a ticker to the watchlist so its price is polled going forward.
func (h *TickerHandler) Track(c fiber.Ctx) error {
	sym, err := h.symbol(c)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.store.AddToWatchlist(sym); err != nil {
		logger.Error("watchlist insert failed for %s: %v", sym, err)
		return jsonError(c, fiber.StatusInternalServerError, "failed to track ticker")
	}

	logger.Info("ticker %s added to watchlist", sym)
	return jsonSuccess(c, fiber.Map{
		"ticker":  sym,
		"message": "ticker is now tracked",
	})
}
