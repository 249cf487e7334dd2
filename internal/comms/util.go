package comms

import (
	"strings"
	"unicode/utf8"
)

// TruncateText truncates text to at most maxLen runes, adding "..." if
// truncated. Rune-based so CJK text is never cut mid-character.
func TruncateText(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	runes := []rune(text)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// SingleLine collapses newlines so text can be logged on one line.
func SingleLine(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
