// Package storage provides SQLite-backed persistence for mentions, prices,
// and the watchlist.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stockpulse/internal/models"

	_ "modernc.org/sqlite"
)

// ErrNotFound marks single-row lookups that matched nothing.
var ErrNotFound = errors.New("not found")

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db *sql.DB
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/stockpulse/data.db.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "stockpulse", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	s := &Storage{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Storage) Ping() error {
	return s.db.Ping()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS mentions (
			id            TEXT PRIMARY KEY,
			source        TEXT NOT NULL,
			source_id     TEXT NOT NULL,
			ticker        TEXT NOT NULL,
			author        TEXT NOT NULL DEFAULT '',
			excerpt       TEXT NOT NULL DEFAULT '',
			url           TEXT NOT NULL DEFAULT '',
			sentiment     REAL NOT NULL DEFAULT 0,
			mentioned_at  INTEGER NOT NULL,
			UNIQUE(source_id, ticker)
		)`,
		`CREATE TABLE IF NOT EXISTS prices (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			ticker      TEXT NOT NULL,
			price       REAL NOT NULL,
			change_pct  REAL NOT NULL DEFAULT 0,
			volume      REAL NOT NULL DEFAULT 0,
			fetched_at  INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS watchlist (
			ticker    TEXT PRIMARY KEY,
			added_at  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_mentions_ticker_time ON mentions(ticker, mentioned_at)`,
		`CREATE INDEX IF NOT EXISTS idx_mentions_time ON mentions(mentioned_at)`,
		`CREATE INDEX IF NOT EXISTS idx_prices_ticker_time ON prices(ticker, fetched_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertMention stores one mention row. Reports false without error when
// the (source_id, ticker) pair was already recorded, which is how polling
// the same listing twice stays idempotent.
func (s *Storage) InsertMention(m *models.Mention) (bool, error) {
	if err := m.Validate(); err != nil {
		return false, fmt.Errorf("invalid mention: %w", err)
	}
	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO mentions
			(id, source, source_id, ticker, author, excerpt, url, sentiment, mentioned_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		m.ID, m.Source, m.SourceID, m.Ticker, m.Author, m.Excerpt, m.URL,
		m.Sentiment, m.MentionedAt.UnixNano(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert mention: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// MentionCountsSince returns per-ticker mention totals newer than since.
func (s *Storage) MentionCountsSince(since time.Time) (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT ticker, COUNT(*)
		FROM mentions
		WHERE mentioned_at >= ?
		GROUP BY ticker`, since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to query mention counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var ticker string
		var count int
		if err := rows.Scan(&ticker, &count); err != nil {
			return nil, fmt.Errorf("failed to scan mention count: %w", err)
		}
		counts[ticker] = count
	}
	return counts, rows.Err()
}

// Trending returns the most-mentioned tickers since the given instant,
// busiest first.
func (s *Storage) Trending(since time.Time, limit int) ([]models.TrendingTicker, error) {
	rows, err := s.db.Query(`
		SELECT ticker, COUNT(*), AVG(sentiment), MAX(mentioned_at)
		FROM mentions
		WHERE mentioned_at >= ?
		GROUP BY ticker
		ORDER BY COUNT(*) DESC, ticker ASC
		LIMIT ?`, since.UnixNano(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trending: %w", err)
	}
	defer rows.Close()

	var trending []models.TrendingTicker
	for rows.Next() {
		var t models.TrendingTicker
		var lastNano int64
		if err := rows.Scan(&t.Ticker, &t.Mentions, &t.AvgSentiment, &lastNano); err != nil {
			return nil, fmt.Errorf("failed to scan trending row: %w", err)
		}
		t.LastMention = time.Unix(0, lastNano)
		trending = append(trending, t)
	}
	if trending == nil {
		trending = []models.TrendingTicker{}
	}
	return trending, rows.Err()
}

// TickerStats aggregates mention activity for one ticker since the given
// instant. A ticker with no mentions yields zeroed stats, not an error.
func (s *Storage) TickerStats(ticker string, since time.Time) (*models.TickerStats, error) {
	row := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(AVG(sentiment), 0),
		       COALESCE(SUM(CASE WHEN sentiment >= 0.1 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN sentiment <= -0.1 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN sentiment > -0.1 AND sentiment < 0.1 THEN 1 ELSE 0 END), 0),
		       COALESCE(MAX(mentioned_at), 0)
		FROM mentions
		WHERE ticker = ? AND mentioned_at >= ?`, ticker, since.UnixNano())

	stats := models.TickerStats{Ticker: ticker}
	var lastNano int64
	err := row.Scan(&stats.Mentions, &stats.AvgSentiment,
		&stats.Positive, &stats.Negative, &stats.Neutral, &lastNano)
	if err != nil {
		return nil, fmt.Errorf("failed to scan ticker stats: %w", err)
	}
	if lastNano != 0 {
		stats.LastMention = time.Unix(0, lastNano)
	}
	return &stats, nil
}

// SentimentTrend buckets a ticker's mentions into bucketMinutes intervals
// aligned to the epoch and averages sentiment per bucket, oldest first.
func (s *Storage) SentimentTrend(ticker string, since time.Time, bucketMinutes int) ([]models.SentimentPoint, error) {
	if bucketMinutes < 1 {
		bucketMinutes = 1
	}
	bucketNs := int64(bucketMinutes) * int64(time.Minute)

	rows, err := s.db.Query(`
		SELECT (mentioned_at / ?) AS bucket, COUNT(*), AVG(sentiment)
		FROM mentions
		WHERE ticker = ? AND mentioned_at >= ?
		GROUP BY bucket
		ORDER BY bucket ASC`, bucketNs, ticker, since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to query sentiment trend: %w", err)
	}
	defer rows.Close()

	var points []models.SentimentPoint
	for rows.Next() {
		var p models.SentimentPoint
		var bucket int64
		if err := rows.Scan(&bucket, &p.Mentions, &p.AvgSentiment); err != nil {
			return nil, fmt.Errorf("failed to scan sentiment point: %w", err)
		}
		p.Bucket = time.Unix(0, bucket*bucketNs)
		points = append(points, p)
	}
	if points == nil {
		points = []models.SentimentPoint{}
	}
	return points, rows.Err()
}

// RecentMentions returns the newest mention rows for a ticker.
func (s *Storage) RecentMentions(ticker string, limit int) ([]models.Mention, error) {
	rows, err := s.db.Query(`
		SELECT `+mentionCols+`
		FROM mentions
		WHERE ticker = ?
		ORDER BY mentioned_at DESC
		LIMIT ?`, ticker, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query mentions: %w", err)
	}
	defer rows.Close()

	var mentions []models.Mention
	for rows.Next() {
		m, err := scanMention(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mention: %w", err)
		}
		mentions = append(mentions, *m)
	}
	if mentions == nil {
		mentions = []models.Mention{}
	}
	return mentions, rows.Err()
}

// MentionsSince returns every mention newer than since, oldest first.
func (s *Storage) MentionsSince(since time.Time) ([]models.Mention, error) {
	rows, err := s.db.Query(`
		SELECT `+mentionCols+`
		FROM mentions
		WHERE mentioned_at >= ?
		ORDER BY mentioned_at ASC`, since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to query mentions: %w", err)
	}
	defer rows.Close()

	var mentions []models.Mention
	for rows.Next() {
		m, err := scanMention(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mention: %w", err)
		}
		mentions = append(mentions, *m)
	}
	return mentions, rows.Err()
}

// MentionTotal returns the number of stored mention rows.
func (s *Storage) MentionTotal() (int, error) {
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM mentions`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count mentions: %w", err)
	}
	return total, nil
}

// PruneMentionsBefore removes mention rows older than cutoff and reports
// how many were dropped.
func (s *Storage) PruneMentionsBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM mentions WHERE mentioned_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune mentions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n, nil
}

// InsertPrice stores one quote snapshot.
func (s *Storage) InsertPrice(q *models.PriceQuote) error {
	if err := q.Validate(); err != nil {
		return fmt.Errorf("invalid quote: %w", err)
	}
	_, err := s.db.Exec(`
		INSERT INTO prices (ticker, price, change_pct, volume, fetched_at)
		VALUES (?,?,?,?,?)`,
		q.Ticker, q.Price, q.ChangePct, q.Volume, q.FetchedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert price: %w", err)
	}
	return nil
}

// LatestPrice returns the newest stored quote for a ticker.
func (s *Storage) LatestPrice(ticker string) (*models.PriceQuote, error) {
	row := s.db.QueryRow(`
		SELECT ticker, price, change_pct, volume, fetched_at
		FROM prices
		WHERE ticker = ?
		ORDER BY fetched_at DESC
		LIMIT 1`, ticker)

	q, err := scanQuote(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("price for %s: %w", ticker, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest price: %w", err)
	}
	return q, nil
}

// PriceHistory returns a ticker's stored quotes since the given instant,
// oldest first.
func (s *Storage) PriceHistory(ticker string, since time.Time) ([]models.PriceQuote, error) {
	rows, err := s.db.Query(`
		SELECT ticker, price, change_pct, volume, fetched_at
		FROM prices
		WHERE ticker = ? AND fetched_at >= ?
		ORDER BY fetched_at ASC`, ticker, since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	var quotes []models.PriceQuote
	for rows.Next() {
		q, err := scanQuote(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quote: %w", err)
		}
		quotes = append(quotes, *q)
	}
	if quotes == nil {
		quotes = []models.PriceQuote{}
	}
	return quotes, rows.Err()
}

// AddToWatchlist registers a ticker for price polling. Adding a ticker
// twice is a no-op.
func (s *Storage) AddToWatchlist(ticker string) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO watchlist (ticker, added_at)
		VALUES (?, ?)`, ticker, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to add to watchlist: %w", err)
	}
	return nil
}

// Watchlist returns all tracked tickers in alphabetical order.
func (s *Storage) Watchlist() ([]string, error) {
	rows, err := s.db.Query(`SELECT ticker FROM watchlist ORDER BY ticker ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist: %w", err)
	}
	defer rows.Close()

	var watchlist []string
	for rows.Next() {
		var ticker string
		if err := rows.Scan(&ticker); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist row: %w", err)
		}
		watchlist = append(watchlist, ticker)
	}
	if watchlist == nil {
		watchlist = []string{}
	}
	return watchlist, rows.Err()
}

const mentionCols = `id, source, source_id, ticker, author, excerpt, url, sentiment, mentioned_at`

func scanMention(scan func(...any) error) (*models.Mention, error) {
	var m models.Mention
	var mentionedAtNano int64
	err := scan(
		&m.ID, &m.Source, &m.SourceID, &m.Ticker, &m.Author, &m.Excerpt, &m.URL,
		&m.Sentiment, &mentionedAtNano,
	)
	if err != nil {
		return nil, err
	}
	m.MentionedAt = time.Unix(0, mentionedAtNano)
	return &m, nil
}

func scanQuote(scan func(...any) error) (*models.PriceQuote, error) {
	var q models.PriceQuote
	var fetchedAtNano int64
	err := scan(&q.Ticker, &q.Price, &q.ChangePct, &q.Volume, &fetchedAtNano)
	if err != nil {
		return nil, err
	}
	q.FetchedAt = time.Unix(0, fetchedAtNano)
	return &q, nil
}
