// Package models defines the core domain entities: mentions, quotes, and
// aggregate ticker views.
package models

import (
	"errors"
	"time"
)

// Mention represents a single observed ticker reference in an ingested
// text unit. A post naming three tickers produces three mentions sharing
// the same SourceID.
type Mention struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	SourceID    string    `json:"source_id"`
	Ticker      string    `json:"ticker"`
	Author      string    `json:"author,omitempty"`
	Excerpt     string    `json:"excerpt,omitempty"`
	URL         string    `json:"url,omitempty"`
	Sentiment   float64   `json:"sentiment"`
	MentionedAt time.Time `json:"mentioned_at"`
}

// Validate checks mention field constraints.
func (m *Mention) Validate() error {
	if m.Source == "" {
		return errors.New("mention source must not be empty")
	}
	if m.SourceID == "" {
		return errors.New("mention source ID must not be empty")
	}
	if m.Ticker == "" {
		return errors.New("mention ticker must not be empty")
	}
	if len(m.Ticker) > 5 {
		return errors.New("mention ticker must be at most 5 characters")
	}
	if m.Sentiment < -1.0 || m.Sentiment > 1.0 {
		return errors.New("sentiment must be between -1.0 and 1.0")
	}
	if m.MentionedAt.IsZero() {
		return errors.New("mention timestamp must be set")
	}
	return nil
}
