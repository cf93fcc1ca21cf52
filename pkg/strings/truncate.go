// Package strings holds text helpers shared by the output code.
package strings

import (
	"strings"
)

// DefaultCellMaxLen is the widest a free-text table cell gets.
const DefaultCellMaxLen = 80

// MinTruncateLen leaves room for one character plus "...".
const MinTruncateLen = 4

// SingleLine collapses all whitespace runs (newlines included) into single
// spaces and shortens the result to maxLen runes, ending in "..." when cut.
// maxLen is clamped to MinTruncateLen.
func SingleLine(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}
	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
