package lexicon

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/forPelevin/reelcut/internal/types"
)

var (
	rePositive = regexp.MustCompile(`(?i)\b(amazing|awesome|best|brilliant|excellent|excited|exciting|fantastic|great|happy|incredible|love|loved|perfect|wonderful|wow|win|won|beautiful|impressive|insane|epic)\b`)
	reNegative = regexp.MustCompile(`(?i)\b(awful|bad|boring|hate|hated|horrible|mistake|problem|sad|terrible|worst|wrong|fail|failed|angry|ugly|annoying)\b`)
	reNegation = regexp.MustCompile(`(?i)\b(not|no|don't|doesn't|isn't|wasn't|never)\s+\w+`)
)

// Classifier is an offline polarity classifier for when no model endpoint
// is available. It is deterministic and cheap, not accurate.
type Classifier struct{}

func New() *Classifier { return &Classifier{} }

func (c *Classifier) Classify(_ context.Context, text string) (types.Sentiment, error) {
	pos, neg := Score(text)
	if pos == 0 && neg == 0 {
		return types.Sentiment{Label: "NEUTRAL", Score: 0.5}, nil
	}
	// Logistic squash of the margin keeps confidence in (0.5, 1).
	margin := math.Abs(pos - neg)
	conf := 1 / (1 + math.Exp(-1.5*margin))
	if pos > neg {
		return types.Sentiment{Label: "POSITIVE", Score: conf}, nil
	}
	return types.Sentiment{Label: "NEGATIVE", Score: conf}, nil
}

// Score returns (positive, negative) evidence in range [0..10].
func Score(text string) (float64, float64) {
	t := strings.TrimSpace(text)
	if t == "" {
		return 0, 0
	}
	lower := strings.ToLower(t)

	pos := float64(len(rePositive.FindAllStringIndex(lower, -1))) * 1.0
	neg := float64(len(reNegative.FindAllStringIndex(lower, -1))) * 1.0

	// A negation flips the polarity of the word it precedes:
	// "not great" is negative, "no problem" is positive.
	for _, m := range reNegation.FindAllString(lower, -1) {
		switch {
		case rePositive.MatchString(m):
			pos--
			neg++
		case reNegative.MatchString(m):
			neg--
			pos++
		}
	}

	pos += float64(strings.Count(t, "!")) * 0.5
	return clamp(pos, 0, 10), clamp(neg, 0, 10)
}

func clamp(x, a, b float64) float64 {
	if x < a {
		return a
	}
	if x > b {
		return b
	}
	return x
}
