package speech

import (
	"regexp"
	"strings"
)

// DefaultChunk is the longest piece of text sent in one audio request
const DefaultChunk = 180

const sentenceEnd = ".!?。！？"

var whitespace = regexp.MustCompile(`[\s\p{Zs}\x{FEFF}\x{2028}\x{2029}]+`)

// ChunkText splits text into speakable pieces. Whitespace runs collapse to a
// single space, sentences break after terminal punctuation (which stays with
// its sentence), and any sentence longer than maxLen runes is cut every
// maxLen runes. Text that yields no pieces is returned whole.
func ChunkText(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = DefaultChunk
	}

	var parts []string
	for _, sentence := range splitSentences(whitespace.ReplaceAllString(text, " ")) {
		runes := []rune(sentence)
		if len(runes) <= maxLen {
			if s := strings.TrimSpace(sentence); s != "" {
				parts = append(parts, s)
			}
			continue
		}
		for start := 0; start < len(runes); start += maxLen {
			end := min(start+maxLen, len(runes))
			parts = append(parts, string(runes[start:end]))
		}
	}

	if len(parts) == 0 {
		return []string{text}
	}
	return parts
}

// splitSentences breaks s at every space that follows terminal punctuation.
// s must already have its whitespace collapsed.
func splitSentences(s string) []string {
	var (
		out   []string
		start int
		prev  rune
	)
	for i, r := range s {
		if r == ' ' && prev != 0 && strings.ContainsRune(sentenceEnd, prev) {
			out = append(out, s[start:i])
			start = i + 1
		}
		prev = r
	}
	return append(out, s[start:])
}
