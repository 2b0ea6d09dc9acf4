package sanitize

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestErrorText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "empty",
			input: "",
			want:  "",
		},
		{
			name:  "passthrough clean text",
			input: "simulating: simulation exceeded day limit",
			want:  "simulating: simulation exceeded day limit",
		},
		{
			name:  "strip null bytes",
			input: "writing\x00 pair",
			want:  "writing pair",
		},
		{
			name:  "strip control characters and delete",
			input: "in\x01stan\x07ce\x7f failed",
			want:  "instance failed",
		},
		{
			name:  "newlines collapse to one line",
			input: "instance panicked: boom\ngoroutine 7 [running]:\n\tmain.go:12",
			want:  "instance panicked: boom goroutine 7 [running]: main.go:12",
		},
		{
			name:  "trim surrounding whitespace",
			input: "  \n disk full \t ",
			want:  "disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorText(tt.input); got != tt.want {
				t.Errorf("ErrorText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestErrorText_Truncates(t *testing.T) {
	long := strings.Repeat("x", MaxErrorLength+100)
	got := ErrorText(long)
	if len(got) != MaxErrorLength+3 || !strings.HasSuffix(got, "...") {
		t.Errorf("len = %d, want %d with ellipsis", len(got), MaxErrorLength+3)
	}
}

func TestErrorText_TruncatesOnRuneBoundary(t *testing.T) {
	// 'é' is two bytes; an odd byte limit would split one.
	long := "a" + strings.Repeat("é", MaxErrorLength)
	got := ErrorText(long)
	if !utf8.ValidString(got) {
		t.Errorf("truncated text is not valid UTF-8: %q", got[len(got)-8:])
	}
	if len(got) > MaxErrorLength+3 {
		t.Errorf("len = %d, want at most %d", len(got), MaxErrorLength+3)
	}
}

func TestError(t *testing.T) {
	if got := Error(nil); got != "" {
		t.Errorf("Error(nil) = %q, want empty", got)
	}
	err := fmt.Errorf("writing pair: %w", errors.New("rename failed\nretry later"))
	if got := Error(err); got != "writing pair: rename failed retry later" {
		t.Errorf("Error() = %q", got)
	}
}
