package api

import (
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stockpulse/internal/cache"
	"stockpulse/internal/monitor"
	"stockpulse/internal/storage"
)

// RegisterRoutes registers all application routes.
func (s *Server) RegisterRoutes(store *storage.Storage, mon *monitor.Monitor, trendingCache *cache.Cache) {
	healthHandler := NewHealthHandler(store, trendingCache)
	trendingHandler := NewTrendingHandler(store, trendingCache, mon)
	tickerHandler := NewTickerHandler(store, mon, s.Cfg)

	s.App.Get("/health", healthHandler.Health)
	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	s.App.Get("/api/status", healthHandler.Status)
	s.App.Get("/api/trending", trendingHandler.Trending)
	s.App.Get("/api/anomalies", trendingHandler.Anomalies)

	s.App.Get("/api/ticker/:symbol/stats", tickerHandler.Stats)
	s.App.Get("/api/ticker/:symbol/sentiment", tickerHandler.Sentiment)
	s.App.Get("/api/ticker/:symbol/mentions", tickerHandler.Mentions)
	s.App.Get("/api/ticker/:symbol/price", tickerHandler.Price)
	s.App.Get("/api/ticker/:symbol/price-history", tickerHandler.PriceHistory)
	s.App.Post("/api/ticker/:symbol/track", tickerHandler.Track)
}
