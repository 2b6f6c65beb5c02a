package api

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"stockpulse/internal/anomaly"
	"stockpulse/internal/config"
	"stockpulse/internal/models"
	"stockpulse/internal/monitor"
	"stockpulse/internal/reddit"
	"stockpulse/internal/storage"
)

// envelope mirrors the JSON wrapper every endpoint responds with.
type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
}

func newTestServer(t *testing.T) (*Server, *storage.Storage, *monitor.Monitor) {
	t.Helper()

	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	det := anomaly.New(anomaly.Config{ZThreshold: 2.5, WindowHours: 24})
	redditClient := reddit.NewClient("http://127.0.0.1:0", "stockpulse-test/1.0", time.Second)

	monCfg := monitor.DefaultConfig()
	monCfg.Subreddits = []string{"wallstreetbets"}
	monCfg.Watchlist = []string{"GME", "TSLA"}
	mon := monitor.New(store, det, redditClient, nil, nil, monCfg)

	cfg := &config.Config{
		Server:  config.ServerConfig{Addr: ":0", CORSOrigins: "*"},
		Monitor: config.MonitorConfig{WindowMinutes: 60},
	}

	srv := New(cfg)
	srv.RegisterRoutes(store, mon, nil)
	return srv, store, mon
}

// request runs one request through the app and decodes the envelope.
func request(t *testing.T, srv *Server, method, target string) (int, envelope) {
	t.Helper()

	resp, err := srv.App.Test(httptest.NewRequest(method, target, nil))
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("unmarshal envelope %q: %v", body, err)
	}
	return resp.StatusCode, env
}

func seedMention(t *testing.T, store *storage.Storage, ticker string, at time.Time, sentiment float64) {
	t.Helper()

	m := &models.Mention{
		ID:          uuid.NewString(),
		Source:      "reddit_post",
		SourceID:    "t3_" + uuid.NewString()[:8],
		Ticker:      ticker,
		Author:      "api_tester",
		Excerpt:     "mention of " + ticker,
		Sentiment:   sentiment,
		MentionedAt: at,
	}
	if _, err := store.InsertMention(m); err != nil {
		t.Fatalf("InsertMention: %v", err)
	}
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	code, env := request(t, srv, "GET", "/health")
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	if env.Status != "ok" {
		t.Errorf("expected status ok, got %q", env.Status)
	}

	var data struct {
		Database string `json:"database"`
		Redis    string `json:"redis"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data.Database != "ok" {
		t.Errorf("expected database ok, got %q", data.Database)
	}
	if data.Redis != "disabled" {
		t.Errorf("expected redis disabled, got %q", data.Redis)
	}
}

func TestStatus(t *testing.T) {
	srv, store, _ := newTestServer(t)

	now := time.Now().UTC()
	seedMention(t, store, "GME", now.Add(-time.Minute), 0.5)
	seedMention(t, store, "TSLA", now.Add(-2*time.Minute), 0)

	code, env := request(t, srv, "GET", "/api/status")
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}

	var data struct {
		UptimeSeconds  int      `json:"uptime_seconds"`
		MentionsStored int      `json:"mentions_stored"`
		Watchlist      []string `json:"watchlist"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data.MentionsStored != 2 {
		t.Errorf("expected 2 stored mentions, got %d", data.MentionsStored)
	}
	if len(data.Watchlist) != 2 {
		t.Errorf("expected seeded watchlist of 2, got %v", data.Watchlist)
	}
}

func TestTrending(t *testing.T) {
	srv, store, _ := newTestServer(t)

	code, env := request(t, srv, "GET", "/api/trending")
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	var data struct {
		Hours   int                     `json:"hours"`
		Tickers []models.TrendingTicker `json:"tickers"`
		Cached  bool                    `json:"cached"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data.Tickers == nil {
		t.Error("expected empty tickers array, got null")
	}
	if data.Hours != 24 {
		t.Errorf("expected default hours 24, got %d", data.Hours)
	}
	if data.Cached {
		t.Error("expected cached=false with cache disabled")
	}

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		seedMention(t, store, "GME", now.Add(-time.Duration(i+1)*time.Minute), 0.5)
	}
	seedMention(t, store, "TSLA", now.Add(-time.Minute), -0.5)

	code, env = request(t, srv, "GET", "/api/trending?hours=1&limit=5")
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if len(data.Tickers) != 2 {
		t.Fatalf("expected 2 trending tickers, got %d", len(data.Tickers))
	}
	if data.Tickers[0].Ticker != "GME" || data.Tickers[0].Mentions != 3 {
		t.Errorf("expected GME with 3 mentions first, got %+v", data.Tickers[0])
	}
}

func TestTrending_BadParams(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for _, target := range []string{
		"/api/trending?hours=abc",
		"/api/trending?hours=0",
		"/api/trending?limit=999",
	} {
		code, env := request(t, srv, "GET", target)
		if code != 400 {
			t.Errorf("%s: expected 400, got %d", target, code)
		}
		if env.Status != "error" || env.Error == "" {
			t.Errorf("%s: expected error envelope, got %+v", target, env)
		}
	}
}

func TestAnomalies(t *testing.T) {
	srv, store, mon := newTestServer(t)

	// Baseline history: one quiet bucket and one moderate bucket.
	now := time.Now().UTC()
	mon.RecordMention("GME", now.Add(-3*time.Hour))
	for i := 0; i < 3; i++ {
		mon.RecordMention("GME", now.Add(-2*time.Hour))
	}

	// Five mentions in the current window: mean 2, stddev 1, z = 3.0.
	for i := 0; i < 5; i++ {
		seedMention(t, store, "GME", now, 0.2)
	}

	code, env := request(t, srv, "GET", "/api/anomalies?window_minutes=60")
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}

	var data struct {
		WindowMinutes int              `json:"window_minutes"`
		Anomalies     []anomaly.Result `json:"anomalies"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data.WindowMinutes != 60 {
		t.Errorf("expected window_minutes 60, got %d", data.WindowMinutes)
	}
	if len(data.Anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d: %+v", len(data.Anomalies), data.Anomalies)
	}
	got := data.Anomalies[0]
	if got.Ticker != "GME" || got.Direction != anomaly.DirectionSurge {
		t.Errorf("expected GME surge, got %+v", got)
	}
	if got.MentionCount != 5 {
		t.Errorf("expected mention count 5, got %d", got.MentionCount)
	}
	if diff := got.ZScore - 3.0; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected z-score 3.0, got %v", got.ZScore)
	}
}

func TestTickerStats(t *testing.T) {
	srv, store, _ := newTestServer(t)

	now := time.Now().UTC()
	seedMention(t, store, "GME", now.Add(-10*time.Minute), 0.5)
	seedMention(t, store, "GME", now.Add(-10*time.Minute), -0.5)

	code, env := request(t, srv, "GET", "/api/ticker/gme/stats")
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}

	var data struct {
		Stats struct {
			Ticker   string `json:"ticker"`
			Mentions int    `json:"mentions"`
			Positive int    `json:"positive"`
			Negative int    `json:"negative"`
		} `json:"stats"`
		SentimentLabel string `json:"sentiment_label"`
		CurrentWindow  struct {
			WindowMinutes int     `json:"window_minutes"`
			Mentions      int     `json:"mentions"`
			ZScore        float64 `json:"z_score"`
			IsAnomaly     bool    `json:"is_anomaly"`
		} `json:"current_window"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data.Stats.Ticker != "GME" {
		t.Errorf("expected lowercased symbol to resolve to GME, got %q", data.Stats.Ticker)
	}
	if data.Stats.Mentions != 2 || data.Stats.Positive != 1 || data.Stats.Negative != 1 {
		t.Errorf("unexpected stats: %+v", data.Stats)
	}
	if data.SentimentLabel != "neutral" {
		t.Errorf("expected neutral label for a balanced sentiment mix, got %q", data.SentimentLabel)
	}
	if data.CurrentWindow.Mentions != 2 {
		t.Errorf("expected 2 mentions in current window, got %d", data.CurrentWindow.Mentions)
	}
	if data.CurrentWindow.ZScore != 0 || data.CurrentWindow.IsAnomaly {
		t.Errorf("expected neutral detector reading with no history, got %+v", data.CurrentWindow)
	}
	if data.CurrentWindow.WindowMinutes != 60 {
		t.Errorf("expected configured window 60, got %d", data.CurrentWindow.WindowMinutes)
	}
}

func TestTicker_InvalidSymbol(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for _, tc := range []struct {
		method string
		target string
	}{
		{"GET", "/api/ticker/123/stats"},
		{"GET", "/api/ticker/WAYTOOLONG/price"},
		{"POST", "/api/ticker/GM3/track"},
	} {
		code, env := request(t, srv, tc.method, tc.target)
		if code != 400 {
			t.Errorf("%s %s: expected 400, got %d", tc.method, tc.target, code)
		}
		if !strings.Contains(env.Error, "invalid ticker") {
			t.Errorf("%s %s: unexpected error %q", tc.method, tc.target, env.Error)
		}
	}
}

func TestTickerSentiment(t *testing.T) {
	srv, store, _ := newTestServer(t)

	at := time.Now().UTC().Add(-5 * time.Minute)
	seedMention(t, store, "TSLA", at, 1.0)
	seedMention(t, store, "TSLA", at, 0.0)

	code, env := request(t, srv, "GET", "/api/ticker/TSLA/sentiment?hours=2")
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}

	var data struct {
		Ticker        string                  `json:"ticker"`
		BucketMinutes int                     `json:"bucket_minutes"`
		Trend         []models.SentimentPoint `json:"trend"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if len(data.Trend) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(data.Trend))
	}
	if data.Trend[0].Mentions != 2 {
		t.Errorf("expected 2 mentions in bucket, got %d", data.Trend[0].Mentions)
	}
	if data.Trend[0].AvgSentiment != 0.5 {
		t.Errorf("expected average sentiment 0.5, got %v", data.Trend[0].AvgSentiment)
	}
}

func TestTickerMentions(t *testing.T) {
	srv, store, _ := newTestServer(t)

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		seedMention(t, store, "AMC", now.Add(-time.Duration(i)*time.Minute), 0)
	}

	code, env := request(t, srv, "GET", "/api/ticker/AMC/mentions?limit=2")
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}

	var data struct {
		Ticker   string           `json:"ticker"`
		Mentions []models.Mention `json:"mentions"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if len(data.Mentions) != 2 {
		t.Fatalf("expected 2 mentions, got %d", len(data.Mentions))
	}
	if !data.Mentions[0].MentionedAt.After(data.Mentions[1].MentionedAt) {
		t.Error("expected mentions ordered newest first")
	}
}

func TestTickerPrice(t *testing.T) {
	srv, store, _ := newTestServer(t)

	code, env := request(t, srv, "GET", "/api/ticker/GME/price")
	if code != 404 {
		t.Fatalf("expected 404 before any quote, got %d", code)
	}
	if env.Status != "error" {
		t.Errorf("expected error envelope, got %+v", env)
	}

	quote := &models.PriceQuote{
		Ticker:    "GME",
		Price:     22.4,
		ChangePct: 7.3,
		Volume:    1.5e6,
		FetchedAt: time.Now().UTC(),
	}
	if err := store.InsertPrice(quote); err != nil {
		t.Fatalf("InsertPrice: %v", err)
	}

	code, env = request(t, srv, "GET", "/api/ticker/GME/price")
	if code != 200 {
		t.Fatalf("expected 200 after insert, got %d", code)
	}
	var got models.PriceQuote
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if got.Ticker != "GME" || got.Price != 22.4 {
		t.Errorf("unexpected quote: %+v", got)
	}
}

func TestTickerPriceHistory(t *testing.T) {
	srv, store, _ := newTestServer(t)

	now := time.Now().UTC()
	for i, price := range []float64{20.0, 21.5} {
		quote := &models.PriceQuote{
			Ticker:    "NVDA",
			Price:     price,
			FetchedAt: now.Add(-time.Duration(2-i) * time.Hour),
		}
		if err := store.InsertPrice(quote); err != nil {
			t.Fatalf("InsertPrice: %v", err)
		}
	}

	code, env := request(t, srv, "GET", "/api/ticker/NVDA/price-history?hours=24")
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}

	var data struct {
		Ticker  string              `json:"ticker"`
		History []models.PriceQuote `json:"history"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if len(data.History) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(data.History))
	}
	if data.History[0].Price != 20.0 {
		t.Errorf("expected oldest quote first, got %+v", data.History[0])
	}
}

func TestTrack(t *testing.T) {
	srv, store, _ := newTestServer(t)

	code, env := request(t, srv, "POST", "/api/ticker/nvda/track")
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	if env.Status != "ok" {
		t.Errorf("expected ok envelope, got %+v", env)
	}

	watchlist, err := store.Watchlist()
	if err != nil {
		t.Fatalf("Watchlist: %v", err)
	}
	found := false
	for _, ticker := range watchlist {
		if ticker == "NVDA" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected NVDA in watchlist, got %v", watchlist)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	// Prime the request counter so the exposition includes our namespace.
	request(t, srv, "GET", "/health")

	resp, err := srv.App.Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "stockpulse_api_requests_total") {
		t.Error("expected stockpulse_api_requests_total in exposition")
	}
}

func TestUnknownRoute(t *testing.T) {
	srv, _, _ := newTestServer(t)

	code, env := request(t, srv, "GET", "/api/nope")
	if code != 404 {
		t.Fatalf("expected 404, got %d", code)
	}
	if env.Status != "error" {
		t.Errorf("expected error envelope, got %+v", env)
	}
}
