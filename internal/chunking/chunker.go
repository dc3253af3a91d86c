// Package chunking splits long document text into overlapping, token-bounded chunks.
package chunking

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"
)

// Chunk is one emitted segment. Overlap is the number of leading words carried
// over from the end of the previous chunk.
type Chunk struct {
	Index      int
	Content    string
	TokenCount int
	Overlap    int
}

// Engine packs sentences greedily into chunks no larger than MaxChunkSize
// estimated tokens. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	estimator    TokenEstimator
	maxTokens    int
	maxChunkSize int
	overlapWords int
}

func New(cfg config.ChunkingConfig) (*Engine, error) {
	if cfg.WordTokenRatio <= 0 || cfg.CharsPerToken <= 0 {
		return nil, fmt.Errorf("%w: token estimator ratios must be positive", models.ErrConfiguration)
	}
	e := &Engine{
		estimator:    TokenEstimator{WordRatio: cfg.WordTokenRatio, CharsPerToken: cfg.CharsPerToken},
		maxTokens:    cfg.MaxTokens,
		maxChunkSize: cfg.MaxChunkSize(),
	}
	if e.maxChunkSize <= 0 {
		return nil, fmt.Errorf("%w: max chunk size %d must be positive", models.ErrConfiguration, e.maxChunkSize)
	}
	if e.estimator.tokens(Measure{Words: 1, Chars: 1}) > e.maxChunkSize {
		return nil, fmt.Errorf("%w: max chunk size %d cannot hold a single word", models.ErrConfiguration, e.maxChunkSize)
	}
	if cfg.OverlapWordDivisor > 0 && cfg.OverlapTokens > 0 {
		e.overlapWords = cfg.OverlapTokens / cfg.OverlapWordDivisor
	}
	return e, nil
}

func (e *Engine) EstimateTokens(text string) int {
	return e.estimator.Estimate(text)
}

// NeedsChunking reports whether text is over the whole-document token budget.
func (e *Engine) NeedsChunking(text string) bool {
	return e.EstimateTokens(text) > e.maxTokens
}

func (e *Engine) MaxChunkSize() int {
	return e.maxChunkSize
}

// Split partitions text into chunks indexed 0..N-1. Empty or whitespace-only
// input yields no chunks.
func (e *Engine) Split(text string) []Chunk {
	b := &builder{engine: e}
	for _, s := range Sentences(text) {
		m := measure(s.Text)
		if e.estimator.tokens(m) > e.maxChunkSize {
			b.flush()
			b.packWords(s.Text)
			continue
		}
		b.add(s, m)
	}
	b.flush()
	return b.chunks
}

type builder struct {
	engine  *Engine
	content string
	size    Measure
	overlap int
	chunks  []Chunk
}

func (b *builder) fits(m Measure) bool {
	return b.engine.estimator.tokens(m) <= b.engine.maxChunkSize
}

func (b *builder) add(s Sentence, m Measure) {
	if b.content == "" {
		b.reset(s.Text, m, 0)
		return
	}

	sep := " "
	if s.ParagraphStart {
		sep = "\n\n"
	}
	if joined := b.size.join(sep, m); b.fits(joined) {
		b.content += sep + s.Text
		b.size = joined
		return
	}

	closed := b.content
	b.flush()

	// The overlap tail is dropped whenever it would push the new chunk over budget.
	if tail := lastWords(closed, b.engine.overlapWords); tail != "" {
		tm := measure(tail)
		if seeded := tm.join(sep, m); b.fits(seeded) {
			b.content = tail + sep + s.Text
			b.size = seeded
			b.overlap = tm.Words
			return
		}
	}
	b.reset(s.Text, m, 0)
}

// packWords splits a sentence that alone exceeds the budget. Sub-chunks carry
// no overlap, and the chunk after the sentence starts fresh.
func (b *builder) packWords(sentence string) {
	var cur string
	var size Measure
	for _, w := range Words(sentence) {
		wm := measure(w)
		if !b.fits(wm) {
			if cur != "" {
				b.emit(cur, 0)
				cur = ""
			}
			for _, piece := range b.splitWord(w) {
				b.emit(piece, 0)
			}
			continue
		}
		if cur == "" {
			cur, size = w, wm
			continue
		}
		if joined := size.join(" ", wm); b.fits(joined) {
			cur += " " + w
			size = joined
			continue
		}
		b.emit(cur, 0)
		cur, size = w, wm
	}
	if cur != "" {
		b.emit(cur, 0)
	}
}

// splitWord cuts a single oversized word on rune boundaries.
func (b *builder) splitWord(word string) []string {
	var pieces []string
	start := 0
	for i, r := range word {
		if i > start && !b.fits(Measure{Words: 1, Chars: i - start + utf8.RuneLen(r)}) {
			pieces = append(pieces, word[start:i])
			start = i
		}
	}
	return append(pieces, word[start:])
}

func (b *builder) flush() {
	if strings.TrimSpace(b.content) != "" {
		b.emit(b.content, b.overlap)
	}
	b.reset("", Measure{}, 0)
}

func (b *builder) emit(content string, overlap int) {
	content = strings.TrimSpace(content)
	b.chunks = append(b.chunks, Chunk{
		Index:      len(b.chunks),
		Content:    content,
		TokenCount: b.engine.EstimateTokens(content),
		Overlap:    overlap,
	})
}

func (b *builder) reset(content string, m Measure, overlap int) {
	b.content, b.size, b.overlap = content, m, overlap
}

func lastWords(text string, n int) string {
	if n <= 0 {
		return ""
	}
	words := Words(text)
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}
