package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"unknown", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewLoggerFormatsOutput(t *testing.T) {
	tests := []struct {
		name       string
		format     string
		assertions func(t *testing.T, output string)
	}{
		{
			name:   "console format is human readable",
			format: "console",
			assertions: func(t *testing.T, output string) {
				if strings.HasPrefix(strings.TrimSpace(output), "{") {
					t.Fatalf("expected console output, got %q", output)
				}
				if !strings.Contains(output, "hello") {
					t.Fatalf("expected message in output, got %q", output)
				}
			},
		},
		{
			name:   "json format starts with brace",
			format: "json",
			assertions: func(t *testing.T, output string) {
				if !strings.HasPrefix(strings.TrimSpace(output), "{") {
					t.Fatalf("expected json output to start with '{', got %q", output)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log, closer := newWithOutput(Config{Format: tt.format, Level: "info"}, &buf)
			defer closer.Close()

			log.Info().Msg("hello")

			if buf.Len() == 0 {
				t.Fatalf("expected log output, got empty string")
			}

			tt.assertions(t, buf.String())
		})
	}
}

func TestFileCapturesDebugWhileConsoleFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "bybit_mover.log")

	var buf bytes.Buffer
	log, closer := newWithOutput(Config{
		Format:     "json",
		Level:      "info",
		File:       path,
		MaxSizeMB:  1,
		MaxBackups: 5,
	}, &buf)

	log.Debug().Msg("balance refreshed")
	log.Info().Msg("cycle completed")

	if err := closer.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if strings.Contains(buf.String(), "balance refreshed") {
		t.Fatalf("console should not contain debug events: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "cycle completed") {
		t.Fatalf("console should contain info events: %q", buf.String())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "balance refreshed") || !strings.Contains(string(data), "cycle completed") {
		t.Fatalf("file should contain every event, got %q", data)
	}
}
