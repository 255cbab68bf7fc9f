package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, false},
		{" WARN ", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"loud", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if level != tt.expected {
				t.Errorf("Expected level %s, got %s", tt.expected, level)
			}
		})
	}
}

func TestNewRejectsInvalidFormat(t *testing.T) {
	if _, _, err := New(Options{Format: "xml"}); err == nil {
		t.Error("Expected error for unknown format, got nil")
	}
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wavepipe.log")

	logger, closer, err := New(Options{Level: "info", Format: FormatJSON, File: path})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	logger.Info().Str(FieldJobID, "dl-123").Msg("download finished")
	logger.Debug().Msg("filtered out")

	if err := closer.Close(); err != nil {
		t.Fatalf("Expected no error closing file, got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file, got %v", err)
	}
	content := string(data)
	if !strings.Contains(content, `"job_id":"dl-123"`) {
		t.Errorf("Expected job_id field in %q", content)
	}
	if strings.Contains(content, "filtered out") {
		t.Errorf("Expected debug message to be filtered, got %q", content)
	}
}
