// Package budget estimates token counts and keeps a chat request within the
// model's input budget. Backends use different tokenizers, so estimation is a
// character heuristic: ASCII text costs one token per four bytes and every
// non-ASCII rune (Hangul, symbols) costs a full token.
package budget

import (
	"strings"
	"unicode/utf8"

	"github.com/mifdirfan/climatetrack/internal/chat"
)

const (
	asciiPerToken = 4

	// DefaultMaxContextTokens fits 8k-context models with room for the reply.
	DefaultMaxContextTokens = 6000

	// messageOverhead is the per-message framing most chat APIs add.
	messageOverhead = 4
)

// Estimate returns a rough token count for s.
func Estimate(s string) int {
	ascii, wide := 0, 0
	for _, r := range s {
		if r < utf8.RuneSelf {
			ascii++
		} else {
			wide++
		}
	}
	n := wide + ascii/asciiPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages sums role, content and framing over msgs.
func EstimateMessages(msgs []chat.Message) int {
	total := 0
	for _, m := range msgs {
		total += messageOverhead + Estimate(string(m.Role)) + Estimate(m.Content)
	}
	return total
}

// TrimHistory drops history entries oldest-first until fixed plus history
// fits within maxTokens. fixed is never trimmed. The surviving entries keep
// their original order; the input slice is not modified.
func TrimHistory(fixed, history []chat.Message, maxTokens int) []chat.Message {
	budget := maxTokens - EstimateMessages(fixed)
	total := EstimateMessages(history)
	start := 0
	for start < len(history) && total > budget {
		total -= messageOverhead + Estimate(string(history[start].Role)) + Estimate(history[start].Content)
		start++
	}
	return history[start:]
}

// Truncate cuts s so that Estimate(result) <= maxTokens, appending marker
// when anything was removed. The cut falls on the last line break that
// keeps the result in budget, or mid-line when no such break exists.
func Truncate(s string, maxTokens int, marker string) string {
	if maxTokens <= 0 {
		return ""
	}
	if Estimate(s) <= maxTokens {
		return s
	}
	limit := maxTokens - Estimate(marker)
	if limit <= 0 {
		return ""
	}

	ascii, wide, cut := 0, 0, 0
	for i, r := range s {
		if r < utf8.RuneSelf {
			ascii++
		} else {
			wide++
		}
		if wide+ascii/asciiPerToken > limit {
			break
		}
		cut = i + utf8.RuneLen(r)
	}
	kept := s[:cut]
	if nl := strings.LastIndexByte(kept, '\n'); nl > 0 {
		kept = kept[:nl]
	}
	return kept + marker
}
