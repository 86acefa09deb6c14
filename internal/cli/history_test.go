package cli

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/vidnote/vidnote/internal/types"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly-ten", 11, "exactly-ten"},
		{"a longer failure reason string", 10, "a longer …"},
		{"ffmpeg сбой при чтении файла", 10, "ffmpeg сб…"},
	}
	for _, tt := range tests {
		got := truncate(tt.in, tt.n)
		if got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) produced invalid UTF-8: %q", tt.in, tt.n, got)
		}
	}
}

func TestStatusLabel(t *testing.T) {
	ok := types.Task{Status: types.TaskSucceeded}
	if got := statusLabel(ok); got != "succeeded" {
		t.Fatalf("statusLabel = %q, want %q", got, "succeeded")
	}

	failed := types.Task{Status: types.TaskFailed, Reason: strings.Repeat("о", 60)}
	got := statusLabel(failed)
	if !strings.HasPrefix(got, "failed (") || !strings.HasSuffix(got, "…)") {
		t.Fatalf("statusLabel = %q, want truncated failure reason", got)
	}
	if !utf8.ValidString(got) {
		t.Fatalf("statusLabel produced invalid UTF-8: %q", got)
	}
}
