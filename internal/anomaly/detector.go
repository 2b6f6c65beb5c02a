// Package anomaly flags abnormal mention-volume spikes per ticker using a
// sliding-window Z-score.
package anomaly

import (
	"math"
	"time"
)

// Directions reported for anomalous tickers.
const (
	DirectionSurge = "surge"
	DirectionDrop  = "drop"
)

// Config holds the detector parameters, fixed at construction.
type Config struct {
	ZThreshold  float64
	WindowHours int
}

// DefaultConfig returns the standard detector configuration.
func DefaultConfig() Config {
	return Config{
		ZThreshold:  2.5,
		WindowHours: 24,
	}
}

// Result describes one anomalous ticker.
type Result struct {
	Ticker       string  `json:"ticker"`
	MentionCount int     `json:"mention_count"`
	ZScore       float64 `json:"z_score"`
	IsAnomaly    bool    `json:"is_anomaly"`
	Direction    string  `json:"direction"`
}

// entry is a single recorded mention instant.
type entry struct {
	ts    time.Time
	count int
}

// Detector keeps a bounded mention history per ticker and scores how far a
// ticker's current mention count sits from its recent per-bucket
// distribution.
//
// The Detector holds no locks and is not safe for concurrent use; callers
// sharing one instance across goroutines must serialize access externally.
//
// AddMention prunes history relative to the inserted event's timestamp,
// while MentionCounts filters relative to wall-clock now. Backdated inserts
// prune relative to themselves; queries always see the true trailing window.
type Detector struct {
	cfg       Config
	histories map[string][]entry
}

// New creates a detector with the given configuration.
func New(cfg Config) *Detector {
	return &Detector{
		cfg:       cfg,
		histories: make(map[string][]entry),
	}
}

// Window returns the trailing retention window.
func (d *Detector) Window() time.Duration {
	return time.Duration(d.cfg.WindowHours) * time.Hour
}

// AddMention records one mention of ticker at ts. A zero ts means now.
// After appending, entries older than ts minus the retention window are
// dropped; the inserted timestamp is the pruning reference, not the clock.
// Ticker is an opaque key, no validation happens here.
func (d *Detector) AddMention(ticker string, ts time.Time) {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	history := append(d.histories[ticker], entry{ts: ts, count: 1})

	cutoff := ts.Add(-d.Window())
	kept := history[:0]
	for _, e := range history {
		if !e.ts.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	d.histories[ticker] = kept
}

// MentionCounts buckets the ticker's mentions from the trailing retention
// window (relative to wall-clock now) into calendar-aligned windows of
// windowMinutes and returns the per-bucket counts in arbitrary order.
// Bucket keys zero the seconds and floor the minute to a multiple of
// windowMinutes, so buckets line up with the clock (top of the hour for
// windowMinutes=60) rather than with the oldest event. Returns nil when
// no mentions survive the filter. windowMinutes below 1 is treated as 1.
func (d *Detector) MentionCounts(ticker string, windowMinutes int) []int {
	history, ok := d.histories[ticker]
	if !ok {
		return nil
	}
	if windowMinutes < 1 {
		windowMinutes = 1
	}

	cutoff := time.Now().UTC().Add(-d.Window())

	buckets := make(map[time.Time]int)
	for _, e := range history {
		if e.ts.Before(cutoff) {
			continue
		}
		buckets[bucketKey(e.ts, windowMinutes)] += e.count
	}
	if len(buckets) == 0 {
		return nil
	}

	counts := make([]int, 0, len(buckets))
	for _, c := range buckets {
		counts = append(counts, c)
	}
	return counts
}

// ZScore reports how many standard deviations currentCount sits from the
// ticker's per-bucket mean. Returns 0 with fewer than two buckets, or when
// every bucket holds the same count; both are treated as unremarkable
// rather than as errors.
func (d *Detector) ZScore(ticker string, currentCount, windowMinutes int) float64 {
	counts := d.MentionCounts(ticker, windowMinutes)
	if len(counts) < 2 {
		return 0.0
	}

	mean, std := populationStats(counts)
	if std == 0 {
		return 0.0
	}
	return (float64(currentCount) - mean) / std
}

// IsAnomaly reports whether currentCount deviates from the ticker's recent
// distribution by at least the configured threshold. The comparison is
// inclusive: a Z-score exactly at the threshold counts.
func (d *Detector) IsAnomaly(ticker string, currentCount, windowMinutes int) bool {
	return math.Abs(d.ZScore(ticker, currentCount, windowMinutes)) >= d.cfg.ZThreshold
}

// DetectAnomalies scores every ticker in counts against its recorded
// history and returns entries only for tickers crossing the threshold.
// Tickers with quiet or insufficient history are absent from the result.
func (d *Detector) DetectAnomalies(counts map[string]int, windowMinutes int) map[string]Result {
	anomalies := make(map[string]Result)

	for ticker, count := range counts {
		z := d.ZScore(ticker, count, windowMinutes)
		if math.Abs(z) < d.cfg.ZThreshold {
			continue
		}

		direction := DirectionDrop
		if z > 0 {
			direction = DirectionSurge
		}
		anomalies[ticker] = Result{
			Ticker:       ticker,
			MentionCount: count,
			ZScore:       z,
			IsAnomaly:    true,
			Direction:    direction,
		}
	}

	return anomalies
}

// bucketKey aligns ts to the start of its windowMinutes bucket in UTC.
func bucketKey(ts time.Time, windowMinutes int) time.Time {
	ts = ts.UTC()
	minute := (ts.Minute() / windowMinutes) * windowMinutes
	return time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), minute, 0, 0, time.UTC)
}

// populationStats returns the mean and population standard deviation
// (divide by N, not N-1) of counts.
func populationStats(counts []int) (mean, std float64) {
	n := float64(len(counts))

	var sum float64
	for _, c := range counts {
		sum += float64(c)
	}
	mean = sum / n

	var variance float64
	for _, c := range counts {
		diff := float64(c) - mean
		variance += diff * diff
	}
	variance /= n

	return mean, math.Sqrt(variance)
}
