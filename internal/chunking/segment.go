package chunking

import (
	"regexp"
	"strings"
	"unicode"
)

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// Sentence is a segmentation unit. ParagraphStart marks the first sentence of a
// paragraph so the engine can rejoin it with a blank line instead of a space.
type Sentence struct {
	Text           string
	ParagraphStart bool
}

// Paragraphs splits on blank lines and drops whitespace-only pieces.
func Paragraphs(text string) []string {
	var out []string
	for _, p := range paragraphBreak.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Sentences splits text into sentence units. A sentence ends at '.', '!' or '?',
// optionally followed by closing quotes or brackets, and then whitespace. Text
// without terminal punctuation comes back as a single sentence per paragraph.
func Sentences(text string) []Sentence {
	var out []Sentence
	for _, p := range Paragraphs(text) {
		for i, s := range splitSentences(p) {
			out = append(out, Sentence{Text: s, ParagraphStart: i == 0})
		}
	}
	return out
}

// Words splits on any run of whitespace.
func Words(text string) []string {
	return strings.Fields(text)
}

func splitSentences(paragraph string) []string {
	var out []string
	runes := []rune(paragraph)
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		end := i + 1
		for end < len(runes) && isCloser(runes[end]) {
			end++
		}
		if end < len(runes) && !unicode.IsSpace(runes[end]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			out = append(out, s)
		}
		start = end
		i = end - 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’', '»':
		return true
	}
	return false
}
