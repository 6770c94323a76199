package shared

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestSlug(t *testing.T) {
	tc := []struct {
		name  string
		input string
		want  string
	}{
		{name: "single word", input: "Scalpel", want: "scalpel"},
		{name: "spaces become underscores", input: "Turkish Coffee", want: "turkish_coffee"},
		{name: "whitespace runs collapse", input: "  Roman   Roads  ", want: "roman_roads"},
		{name: "path separators are dropped", input: "AC/DC: Live", want: "acdc_live"},
		{name: "empty input", input: "   ", want: "untitled"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slug(tt.input); got != tt.want {
				t.Errorf("Slug(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRunDir(t *testing.T) {
	got := RunDir("output", 7, "Espresso Machines")
	want := filepath.Join("output", "prompt_7", "espresso_machines")
	if got != want {
		t.Errorf("RunDir() = %q, want %q", got, want)
	}
}

func TestLoggers(t *testing.T) {
	t.Run("WithLogger adds fields", func(t *testing.T) {
		var buf bytes.Buffer
		logger := WithLogger(NewLogger(&buf), "user", 3)
		logger.Info("generated")

		if !strings.Contains(buf.String(), "user=3") {
			t.Errorf("expected user field in output, got %q", buf.String())
		}
	})

	t.Run("ParseLogLevel", func(t *testing.T) {
		ll, err := ParseLogLevel("debug")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ll != log.DebugLevel {
			t.Errorf("expected debug level, got %v", ll)
		}

		if _, err := ParseLogLevel("chatty"); err == nil {
			t.Error("expected error for unknown level")
		}
	})

	t.Run("NewFileLogger creates parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "menu.log")
		if _, err := NewFileLogger(path); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestGenerateState(t *testing.T) {
	a, err := GenerateState()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := GenerateState()
	if a == b {
		t.Error("expected distinct state tokens")
	}
	if strings.ContainsAny(a, "+/=") {
		t.Errorf("state should be URL safe, got %q", a)
	}
}
