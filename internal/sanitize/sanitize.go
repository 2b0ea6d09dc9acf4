// Package sanitize cleans free-form text before it is persisted in the run
// catalog, the event log or the MCP audit log. Error messages may carry
// panic values, file paths and multi-line wrapped causes; stored copies are
// reduced to a single bounded line.
package sanitize

import (
	"regexp"
	"strings"
)

// MaxErrorLength is the maximum stored length of an error message.
const MaxErrorLength = 500

var reWhitespace = regexp.MustCompile(`\s+`)

// ErrorText turns an error message into one printable line: control
// characters are dropped, whitespace runs (including newlines) collapse to a
// single space and the result is truncated to MaxErrorLength.
func ErrorText(input string) string {
	if input == "" {
		return ""
	}

	s := stripControlChars(input)
	s = reWhitespace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	if len(s) > MaxErrorLength {
		s = truncateUTF8(s, MaxErrorLength) + "..."
	}
	return s
}

// Error is ErrorText applied to err, or "" for a nil error.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return ErrorText(err.Error())
}

// stripControlChars removes ASCII control characters (0x00-0x1F, 0x7F) from
// the string, except for newline and tab which are left for whitespace
// collapsing.
func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r < 0x20 && r != '\n' && r != '\t') || r == 0x7F {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
