// Package sentiment scores financial social-media text on a [-1, 1] scale.
package sentiment

import "strings"

// Sentiment labels.
const (
	LabelPositive = "positive"
	LabelNegative = "negative"
	LabelNeutral  = "neutral"
)

// lexicon maps market-slang terms to polarity weights. Strong conviction
// terms carry double weight.
var lexicon = map[string]float64{
	// bullish
	"moon":        2,
	"mooning":     2,
	"rocket":      2,
	"squeeze":     2,
	"tendies":     2,
	"breakout":    2,
	"bullish":     1,
	"buy":         1,
	"calls":       1,
	"long":        1,
	"gains":       1,
	"rally":       1,
	"undervalued": 1,
	"winner":      1,
	"up":          1,
	"green":       1,
	"strong":      1,
	"beat":        1,
	"growth":      1,

	// bearish
	"crash":      -2,
	"dump":       -2,
	"bankrupt":   -2,
	"bagholder":  -2,
	"rug":        -2,
	"tank":       -2,
	"bearish":    -1,
	"sell":       -1,
	"puts":       -1,
	"short":      -1,
	"losses":     -1,
	"drill":      -1,
	"overvalued": -1,
	"loser":      -1,
	"down":       -1,
	"red":        -1,
	"weak":       -1,
	"miss":       -1,
	"drop":       -1,
}

// negations flip the polarity of the following lexicon term.
var negations = map[string]struct{}{
	"not":   {},
	"no":    {},
	"never": {},
	"isnt":  {},
	"dont":  {},
	"wont":  {},
}

// Analyzer is a lexicon-based scorer for short social posts. It is
// stateless and safe for concurrent use.
type Analyzer struct{}

// New creates an analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// Score rates text between -1 (bearish) and 1 (bullish). Text without
// any lexicon term scores 0.
func (a *Analyzer) Score(text string) float64 {
	if text == "" {
		return 0
	}

	var sum, total float64
	negate := false

	for _, raw := range strings.Fields(strings.ToLower(text)) {
		word := strings.Trim(raw, ".,!?;:()[]\"'$#")

		if _, ok := negations[word]; ok {
			negate = true
			continue
		}

		weight, ok := lexicon[word]
		if !ok {
			negate = false
			continue
		}
		if negate {
			weight = -weight
			negate = false
		}

		sum += weight
		if weight < 0 {
			total -= weight
		} else {
			total += weight
		}
	}

	if total == 0 {
		return 0
	}
	return sum / total
}

// Label classifies a score: at or above 0.1 is positive, at or below
// -0.1 is negative, the band between is neutral.
func Label(score float64) string {
	switch {
	case score >= 0.1:
		return LabelPositive
	case score <= -0.1:
		return LabelNegative
	default:
		return LabelNeutral
	}
}
