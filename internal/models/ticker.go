package models

import (
	"errors"
	"time"
)

// PriceQuote is a point-in-time market snapshot for one ticker.
type PriceQuote struct {
	Ticker    string    `json:"ticker"`
	Price     float64   `json:"price"`
	ChangePct float64   `json:"change_pct"`
	Volume    float64   `json:"volume"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Validate checks quote field constraints.
func (q *PriceQuote) Validate() error {
	if q.Ticker == "" {
		return errors.New("quote ticker must not be empty")
	}
	if q.Price < 0 {
		return errors.New("quote price must not be negative")
	}
	if q.Volume < 0 {
		return errors.New("quote volume must not be negative")
	}
	if q.FetchedAt.IsZero() {
		return errors.New("quote timestamp must be set")
	}
	return nil
}

// TrendingTicker is one row of the mention leaderboard over a time window.
type TrendingTicker struct {
	Ticker       string    `json:"ticker"`
	Mentions     int       `json:"mentions"`
	AvgSentiment float64   `json:"avg_sentiment"`
	LastMention  time.Time `json:"last_mention"`
}

// TickerStats aggregates mention activity for a single ticker.
type TickerStats struct {
	Ticker       string    `json:"ticker"`
	Mentions     int       `json:"mentions"`
	AvgSentiment float64   `json:"avg_sentiment"`
	Positive     int       `json:"positive"`
	Negative     int       `json:"negative"`
	Neutral      int       `json:"neutral"`
	LastMention  time.Time `json:"last_mention"`
}

// SentimentPoint is one bucket of a ticker's sentiment-over-time series.
type SentimentPoint struct {
	Bucket       time.Time `json:"bucket"`
	Mentions     int       `json:"mentions"`
	AvgSentiment float64   `json:"avg_sentiment"`
}
