package chunking

import (
	"math"
	"strings"
)

// Measure is the raw word and byte count of a span. Measures of spans joined by
// whitespace add up exactly, which lets the engine estimate a growing buffer
// without rescanning it.
type Measure struct {
	Words int
	Chars int
}

func measure(text string) Measure {
	return Measure{Words: len(strings.Fields(text)), Chars: len(text)}
}

// join returns the measure of a + sep + b.
func (m Measure) join(sep string, other Measure) Measure {
	return Measure{Words: m.Words + other.Words, Chars: m.Chars + len(sep) + other.Chars}
}

// TokenEstimator approximates token counts without a tokenizer:
// ceil(max(words*WordRatio, bytes/CharsPerToken)). Both constants bias toward
// overestimation so chunks stay below the embedding provider's hard limit.
type TokenEstimator struct {
	WordRatio     float64
	CharsPerToken float64
}

func (e TokenEstimator) Estimate(text string) int {
	return e.tokens(measure(text))
}

func (e TokenEstimator) tokens(m Measure) int {
	return int(math.Ceil(math.Max(float64(m.Words)*e.WordRatio, float64(m.Chars)/e.CharsPerToken)))
}
