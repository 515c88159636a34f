// Package chunker splits extracted document text into retrieval-sized
// passages on paragraph boundaries.
package chunker

import (
	"regexp"
	"strings"
)

// DefaultMinLength is the trimmed length a fragment must reach to be kept.
// Shorter fragments are page numbers, headers and other extraction noise.
const DefaultMinLength = 20

// paragraphBreak matches a run of two or more line breaks, with any
// surrounding whitespace, i.e. at least one blank line.
var paragraphBreak = regexp.MustCompile(`(\s*\r?\n\s*){2,}`)

// Chunker splits text into paragraphs and discards noise fragments.
// The zero value uses DefaultMinLength.
type Chunker struct {
	// MinLength is the trimmed character count a fragment must reach.
	// Zero or negative selects DefaultMinLength.
	MinLength int
}

// Chunk splits text with a zero-value Chunker.
func Chunk(text string) []string {
	return Chunker{}.Chunk(text)
}

// Chunk splits text on paragraph boundaries, trims every fragment and drops
// those shorter than the minimum length. Empty input yields nil.
func (c Chunker) Chunk(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	minLen := c.MinLength
	if minLen <= 0 {
		minLen = DefaultMinLength
	}

	var chunks []string
	for _, part := range paragraphBreak.Split(text, -1) {
		part = strings.TrimSpace(part)
		if len([]rune(part)) >= minLen {
			chunks = append(chunks, part)
		}
	}
	return chunks
}
