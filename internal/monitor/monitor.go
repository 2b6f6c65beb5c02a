// Package monitor runs the polling pipeline: fetch subreddit activity,
// extract and score ticker mentions, persist them, and raise alerts when
// mention volume turns anomalous.
package monitor

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"stockpulse/internal/anomaly"
	"stockpulse/internal/logger"
	"stockpulse/internal/metrics"
	"stockpulse/internal/models"
	"stockpulse/internal/reddit"
	"stockpulse/internal/sentiment"
	"stockpulse/internal/stocks"
	"stockpulse/internal/storage"
	"stockpulse/internal/telegram"
	"stockpulse/internal/tickers"
)

const (
	excerptMax       = 200
	mentionRetention = 7 * 24 * time.Hour
	pruneInterval    = 6 * time.Hour
)

type Config struct {
	Subreddits           []string
	FetchLimit           int
	PollInterval         time.Duration
	PriceRefreshInterval time.Duration
	WindowMinutes        int
	AlertCooldown        time.Duration
	Watchlist            []string
}

func DefaultConfig() Config {
	return Config{
		Subreddits:           []string{"wallstreetbets", "stocks", "investing"},
		FetchLimit:           50,
		PollInterval:         45 * time.Second,
		PriceRefreshInterval: 30 * time.Minute,
		WindowMinutes:        60,
		AlertCooldown:        time.Hour,
		Watchlist:            []string{"GME", "AMC", "TSLA", "AAPL", "NVDA", "PLTR", "BB", "NOK"},
	}
}

type notifiedRecord struct {
	Direction string
	SentAt    time.Time
}

// Monitor owns the ingest loop and the anomaly detector. The detector is
// not concurrency-safe, so every access goes through detMu; Detect, Score,
// and RecordMention may be called from other goroutines (the HTTP API).
type Monitor struct {
	cfg       Config
	store     *storage.Storage
	reddit    *reddit.Client
	stocks    *stocks.Client
	telegram  *telegram.Client
	extractor *tickers.Extractor
	analyzer  *sentiment.Analyzer

	detMu    sync.Mutex
	detector *anomaly.Detector

	notified            map[string]notifiedRecord
	consecutiveFailures int
}

// New wires the monitor. stocksClient and telegramClient may be nil, which
// disables price polling and alert delivery respectively. Mentions already
// stored within the detector window are replayed into the detector so
// history survives restarts.
func New(store *storage.Storage, det *anomaly.Detector, redditClient *reddit.Client,
	stocksClient *stocks.Client, telegramClient *telegram.Client, cfg Config) *Monitor {
	m := &Monitor{
		cfg:      cfg,
		store:    store,
		reddit:   redditClient,
		stocks:   stocksClient,
		telegram: telegramClient,
		analyzer: sentiment.New(),
		detector: det,
		notified: make(map[string]notifiedRecord),
	}

	for _, ticker := range cfg.Watchlist {
		if err := store.AddToWatchlist(ticker); err != nil {
			logger.Warn("Failed to seed watchlist with %s: %v", ticker, err)
		}
	}

	known := cfg.Watchlist
	if stored, err := store.Watchlist(); err != nil {
		logger.Warn("Failed to load stored watchlist: %v", err)
	} else if len(stored) > 0 {
		known = stored
	}
	m.extractor = tickers.NewExtractor(known)

	cutoff := time.Now().UTC().Add(-det.Window())
	if mentions, err := store.MentionsSince(cutoff); err != nil {
		logger.Warn("Failed to replay stored mentions: %v", err)
	} else {
		for _, mention := range mentions {
			det.AddMention(mention.Ticker, mention.MentionedAt)
		}
		if len(mentions) > 0 {
			logger.Info("Replayed %d stored mentions into the detector", len(mentions))
		}
	}

	return m
}

// Run executes the polling loop until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	logger.Info("Starting monitor (interval: %v, subreddits: %v, window: %dm)",
		m.cfg.PollInterval, m.cfg.Subreddits, m.cfg.WindowMinutes)

	pollTicker := time.NewTicker(m.cfg.PollInterval)
	defer pollTicker.Stop()
	priceTicker := time.NewTicker(m.cfg.PriceRefreshInterval)
	defer priceTicker.Stop()
	pruneTicker := time.NewTicker(pruneInterval)
	defer pruneTicker.Stop()

	logger.Debug("Running initial polling cycle")
	m.handleCycleResult(m.ProcessCycle(ctx))
	if err := m.RefreshPrices(ctx); err != nil {
		logger.Warn("Initial price refresh failed: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("Monitor stopped")
			return nil

		case <-pollTicker.C:
			logger.Debug("Starting scheduled polling cycle")
			m.handleCycleResult(m.ProcessCycle(ctx))

		case <-priceTicker.C:
			if err := m.RefreshPrices(ctx); err != nil {
				logger.Warn("Price refresh failed: %v", err)
			}

		case <-pruneTicker.C:
			m.pruneOldMentions()
		}
	}
}

// ProcessCycle runs one polling pass: pull fresh subreddit activity, store
// new ticker mentions, then check for anomalies and alert.
func (m *Monitor) ProcessCycle(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.PollCycleDuration.Observe(time.Since(start).Seconds())
	}()

	type fetchedItem struct {
		item   reddit.Item
		source string
	}
	var items []fetchedItem
	attempts, failures := 0, 0
	var lastErr error

	for _, sub := range m.cfg.Subreddits {
		attempts++
		posts, err := m.reddit.FetchNewPosts(ctx, sub, m.cfg.FetchLimit)
		if err != nil {
			failures++
			lastErr = err
			metrics.PollErrors.WithLabelValues("reddit").Inc()
			logger.Warn("Failed to fetch posts from r/%s: %v", sub, err)
		} else {
			for _, it := range posts {
				items = append(items, fetchedItem{item: it, source: "reddit_post"})
			}
		}

		attempts++
		comments, err := m.reddit.FetchNewComments(ctx, sub, m.cfg.FetchLimit)
		if err != nil {
			failures++
			lastErr = err
			metrics.PollErrors.WithLabelValues("reddit").Inc()
			logger.Warn("Failed to fetch comments from r/%s: %v", sub, err)
		} else {
			for _, it := range comments {
				items = append(items, fetchedItem{item: it, source: "reddit_comment"})
			}
		}
	}
	if attempts > 0 && failures == attempts {
		return fmt.Errorf("all subreddit fetches failed: %w", lastErr)
	}

	stored, duplicates := 0, 0
	for _, f := range items {
		text := f.item.Text()
		symbols := m.extractor.Extract(text)
		if len(symbols) == 0 {
			continue
		}
		score := m.analyzer.Score(text)

		for _, symbol := range symbols {
			mention := &models.Mention{
				ID:          uuid.NewString(),
				Source:      f.source,
				SourceID:    f.item.Name,
				Ticker:      symbol,
				Author:      f.item.Author,
				Excerpt:     truncateExcerpt(text, excerptMax),
				URL:         f.item.URL(),
				Sentiment:   score,
				MentionedAt: f.item.CreatedAt(),
			}
			inserted, err := m.store.InsertMention(mention)
			if err != nil {
				logger.Warn("Failed to store mention of %s: %v", symbol, err)
				continue
			}
			if !inserted {
				duplicates++
				metrics.MentionsDuplicate.Inc()
				continue
			}
			stored++
			metrics.MentionsIngested.WithLabelValues(f.source).Inc()
			m.RecordMention(symbol, mention.MentionedAt)
		}
	}
	logger.Debug("Ingested %d new mentions from %d items (%d duplicates)", stored, len(items), duplicates)

	return m.reportAnomalies()
}

func (m *Monitor) reportAnomalies() error {
	results, err := m.Detect(m.cfg.WindowMinutes)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		logger.Debug("No anomalies this cycle")
		return nil
	}

	alerts := m.filterNotified(results)
	if len(alerts) == 0 {
		logger.Debug("All %d anomalies within alert cooldown", len(results))
		return nil
	}
	for _, res := range alerts {
		metrics.AnomaliesDetected.WithLabelValues(res.Direction).Inc()
		logger.Info("Anomaly: %s %s with %d mentions (z=%.2f)",
			res.Ticker, res.Direction, res.MentionCount, res.ZScore)
	}

	if m.telegram != nil {
		if err := m.telegram.SendAnomalyAlert(alerts, m.latestPrices(alerts)); err != nil {
			logger.Error("Failed to send anomaly alert: %v", err)
		} else {
			metrics.TelegramMessages.WithLabelValues("anomaly").Inc()
		}
	}
	m.recordNotified(alerts)
	return nil
}

// RefreshPrices fetches a fresh quote for every watchlisted ticker.
func (m *Monitor) RefreshPrices(ctx context.Context) error {
	if m.stocks == nil {
		return nil
	}
	watchlist, err := m.store.Watchlist()
	if err != nil {
		return fmt.Errorf("failed to load watchlist: %w", err)
	}

	refreshed := 0
	for _, ticker := range watchlist {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		quote, err := m.stocks.FetchPrevClose(ctx, ticker)
		if err != nil {
			metrics.PollErrors.WithLabelValues("stocks").Inc()
			logger.Warn("Failed to fetch quote for %s: %v", ticker, err)
			continue
		}
		if err := m.store.InsertPrice(quote); err != nil {
			logger.Warn("Failed to store quote for %s: %v", ticker, err)
			continue
		}
		refreshed++
		metrics.PricesFetched.Inc()
	}
	logger.Debug("Refreshed %d/%d watchlist quotes", refreshed, len(watchlist))
	return nil
}

// Detect scores current mention counts against each ticker's recorded
// history and returns anomalous tickers, most extreme first.
func (m *Monitor) Detect(windowMinutes int) ([]anomaly.Result, error) {
	since := time.Now().UTC().Add(-time.Duration(windowMinutes) * time.Minute)
	counts, err := m.store.MentionCountsSince(since)
	if err != nil {
		return nil, fmt.Errorf("failed to load current counts: %w", err)
	}

	m.detMu.Lock()
	found := m.detector.DetectAnomalies(counts, windowMinutes)
	m.detMu.Unlock()

	results := make([]anomaly.Result, 0, len(found))
	for _, res := range found {
		results = append(results, res)
	}
	sort.Slice(results, func(i, j int) bool {
		zi, zj := math.Abs(results[i].ZScore), math.Abs(results[j].ZScore)
		if zi != zj {
			return zi > zj
		}
		return results[i].Ticker < results[j].Ticker
	})
	return results, nil
}

// Score returns a ticker's mention count in the current window, its
// z-score against history, and whether that crosses the anomaly threshold.
func (m *Monitor) Score(ticker string, windowMinutes int) (int, float64, bool, error) {
	since := time.Now().UTC().Add(-time.Duration(windowMinutes) * time.Minute)
	counts, err := m.store.MentionCountsSince(since)
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to load current counts: %w", err)
	}
	count := counts[ticker]

	m.detMu.Lock()
	defer m.detMu.Unlock()
	z := m.detector.ZScore(ticker, count, windowMinutes)
	return count, z, m.detector.IsAnomaly(ticker, count, windowMinutes), nil
}

// RecordMention feeds one mention into the detector history.
func (m *Monitor) RecordMention(ticker string, at time.Time) {
	m.detMu.Lock()
	m.detector.AddMention(ticker, at)
	m.detMu.Unlock()
}

// filterNotified drops anomalies already alerted in the same direction
// within the cooldown. A direction flip alerts immediately.
func (m *Monitor) filterNotified(results []anomaly.Result) []anomaly.Result {
	now := time.Now()
	var filtered []anomaly.Result
	for _, res := range results {
		rec, exists := m.notified[res.Ticker]
		if exists && now.Sub(rec.SentAt) < m.cfg.AlertCooldown && rec.Direction == res.Direction {
			continue
		}
		filtered = append(filtered, res)
	}
	return filtered
}

func (m *Monitor) recordNotified(results []anomaly.Result) {
	now := time.Now()
	for _, res := range results {
		m.notified[res.Ticker] = notifiedRecord{Direction: res.Direction, SentAt: now}
	}
}

func (m *Monitor) latestPrices(results []anomaly.Result) map[string]*models.PriceQuote {
	prices := make(map[string]*models.PriceQuote)
	for _, res := range results {
		quote, err := m.store.LatestPrice(res.Ticker)
		if err != nil {
			continue
		}
		prices[res.Ticker] = quote
	}
	return prices
}

func (m *Monitor) handleCycleResult(err error) {
	if err != nil {
		m.consecutiveFailures++
		logger.Error("Polling cycle failed: %v", err)
		if m.consecutiveFailures == 1 && m.telegram != nil {
			if sendErr := m.telegram.SendError(err); sendErr != nil {
				logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
			} else {
				metrics.TelegramMessages.WithLabelValues("error").Inc()
			}
		}
		return
	}

	if m.consecutiveFailures > 0 && m.telegram != nil {
		if sendErr := m.telegram.SendRecovery(m.consecutiveFailures); sendErr != nil {
			logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
		} else {
			metrics.TelegramMessages.WithLabelValues("recovery").Inc()
		}
	}
	m.consecutiveFailures = 0
}

func (m *Monitor) pruneOldMentions() {
	pruned, err := m.store.PruneMentionsBefore(time.Now().Add(-mentionRetention))
	if err != nil {
		logger.Warn("Failed to prune old mentions: %v", err)
		return
	}
	if pruned > 0 {
		logger.Info("Pruned %d mentions older than %v", pruned, mentionRetention)
	}
}

// truncateExcerpt collapses whitespace and caps the excerpt length.
func truncateExcerpt(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
