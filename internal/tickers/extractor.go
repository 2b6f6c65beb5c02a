// Package tickers extracts US stock symbols from social-media text.
package tickers

import (
	"regexp"
	"strings"
)

// tickerPattern matches cashtags ($GME, case-insensitive) and bare
// all-caps tokens of 1-5 letters.
var tickerPattern = regexp.MustCompile(`\$[A-Za-z]{1,5}\b|\b[A-Z]{1,5}\b`)

// blocklist holds all-caps words that read like symbols but almost never
// are one in social text: pronouns, prepositions, and finance shorthand.
var blocklist = map[string]struct{}{}

func init() {
	words := []string{
		"A", "I", "AM", "AN", "AS", "AT", "BE", "BY", "DO", "GO", "HE",
		"IF", "IN", "IS", "IT", "ME", "MY", "NO", "OF", "ON", "OR", "SO",
		"TO", "UP", "US", "WE", "THE", "AND", "FOR", "ARE", "BUT", "NOT",
		"ALL", "CAN", "NEW", "NOW", "ONE", "OUT", "GET", "HAS", "HOW",
		"MAY", "SEE", "TWO", "WHO", "LET", "PUT", "SAY", "TOO", "USE",
		"YTD", "CEO", "CFO", "IPO", "ETF", "SEC", "IRS", "FDA", "USD",
		"GDP", "EPS", "PE", "ROI", "AI", "ML", "API", "URL", "PDF",
		"USA", "UK", "EU", "PM", "EST", "PST", "GMT", "UTC",
		"DD", "FD", "OTM", "ITM", "ATH", "FOMO", "YOLO", "HODL", "WSB",
	}
	for _, w := range words {
		blocklist[w] = struct{}{}
	}
}

// Extractor finds ticker symbols in free text. Cashtags are always taken
// at face value; bare all-caps tokens count only when they appear in the
// known-symbols set and not in the blocklist.
type Extractor struct {
	known map[string]struct{}
}

// NewExtractor creates an extractor that trusts the given bare symbols.
func NewExtractor(known []string) *Extractor {
	k := make(map[string]struct{}, len(known))
	for _, s := range known {
		k[strings.ToUpper(s)] = struct{}{}
	}
	return &Extractor{known: k}
}

// Extract returns the deduplicated symbols found in text, in order of
// first appearance. Empty text yields nil.
func (e *Extractor) Extract(text string) []string {
	if text == "" {
		return nil
	}

	var found []string
	seen := make(map[string]struct{})

	for _, match := range tickerPattern.FindAllString(text, -1) {
		cashtag := strings.HasPrefix(match, "$")
		symbol := strings.ToUpper(strings.TrimPrefix(match, "$"))

		if !cashtag {
			if _, ok := e.known[symbol]; !ok {
				continue
			}
			if _, ok := blocklist[symbol]; ok {
				continue
			}
		}

		if _, ok := seen[symbol]; ok {
			continue
		}
		seen[symbol] = struct{}{}
		found = append(found, symbol)
	}

	return found
}

// IsValid reports whether symbol has the shape of a US ticker: one to
// five letters. Used to validate user-supplied symbols at the API edge.
func IsValid(symbol string) bool {
	if len(symbol) < 1 || len(symbol) > 5 {
		return false
	}
	for _, r := range symbol {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return true
}
