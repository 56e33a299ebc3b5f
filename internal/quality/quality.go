// Package quality derives the deliverable quality signal from the amount of
// human correction applied to drafts before approval.
package quality

import (
	"github.com/Kvkthecreator/yarnnnn-sub006/internal/model"
)

// Rating buckets for a single edit-distance score.
const (
	RatingExcellent = "Excellent"
	RatingGood      = "Good"
	RatingNeedsWork = "Needs work"
)

// Policy holds the tunable scoring constants. The defaults match the
// historical thresholds; only the monotonicity of Classify is contractual.
type Policy struct {
	ExcellentBelow float64 // scores below this classify as Excellent
	GoodBelow      float64 // scores below this classify as Good
	TrendEpsilon   float64 // minimum mean delta considered a real trend move
	TrendWindow    int     // number of recent approved scores compared
	EMAAlpha       float64 // smoothing factor for the rolling quality score
	MaxPreferences int     // cap on learned preference statements
}

// DefaultPolicy returns the standard scoring constants.
func DefaultPolicy() Policy {
	return Policy{
		ExcellentBelow: 0.1,
		GoodBelow:      0.3,
		TrendEpsilon:   0.05,
		TrendWindow:    5,
		EMAAlpha:       0.3,
		MaxPreferences: 5,
	}
}

// EditDistance returns the normalized Levenshtein distance between draft and
// final content: 0 for identical strings, approaching 1 as the edit volume
// nears the full length of the longer text.
func EditDistance(draft, final string) float64 {
	if draft == final {
		return 0
	}

	a := []rune(draft)
	b := []rune(final)
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0
	}
	return float64(levenshtein(a, b)) / float64(longest)
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// Classify maps an edit-distance score to a quality bucket. Lower scores
// always map to an equal or better bucket.
func (p Policy) Classify(score float64) string {
	switch {
	case score < p.ExcellentBelow:
		return RatingExcellent
	case score < p.GoodBelow:
		return RatingGood
	default:
		return RatingNeedsWork
	}
}

// Trend compares the most recent edit-distance score against the mean of the
// prior window. A drop beyond TrendEpsilon reads as improving (less
// correction needed), a rise beyond it as declining. Scores are ordered
// oldest first.
func (p Policy) Trend(scores []float64) string {
	if len(scores) < 2 {
		return model.TrendStable
	}
	window := scores
	if p.TrendWindow > 0 && len(window) > p.TrendWindow {
		window = window[len(window)-p.TrendWindow:]
	}

	latest := window[len(window)-1]
	prior := window[:len(window)-1]
	var sum float64
	for _, s := range prior {
		sum += s
	}
	mean := sum / float64(len(prior))

	switch {
	case latest < mean-p.TrendEpsilon:
		return model.TrendImproving
	case latest > mean+p.TrendEpsilon:
		return model.TrendDeclining
	default:
		return model.TrendStable
	}
}

// RollQuality folds one new approved edit-distance score into the rolling
// quality score. Quality is the inverse of edit distance: 1 means drafts
// ship untouched.
func (p Policy) RollQuality(previous *float64, editDistance float64) float64 {
	sample := 1 - editDistance
	if sample < 0 {
		sample = 0
	}
	if previous == nil {
		return sample
	}
	return p.EMAAlpha*sample + (1-p.EMAAlpha)*(*previous)
}
