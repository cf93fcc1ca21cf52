package strings

import (
	"testing"
)

func TestSingleLine(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"short unchanged", "hello", 10, "hello"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"truncated", "hello world this is a long string", 15, "hello world ..."},
		{"newlines collapsed", "exit status 3:\n\nnope", 40, "exit status 3: nope"},
		{"tabs and spaces", "a\t\t b", 10, "a b"},
		{"empty", "", 10, ""},
		{"clamped", "abcdefgh", 1, "a..."},
		{"runes", "日本語のテキストです", 6, "日本語..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SingleLine(tt.input, tt.maxLen); got != tt.expected {
				t.Errorf("SingleLine(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.expected)
			}
		})
	}
}
