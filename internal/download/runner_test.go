package download

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/rs/zerolog"

	"github.com/amiaddur/wavepipe/internal/model"
)

const runnerTestURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

// fakeYtdlpScript echoes its arguments one per line, writes the --output
// file and honors a few FAKE_YTDLP_* variables.
const fakeYtdlpScript = `#!/bin/sh
for arg in "$@"; do
  printf '%s\n' "$arg"
done
printf 'marker=%s\n' "$FAKE_YTDLP_MARKER"
printf 'home=%s\n' "$HOME"
out=""
prev=""
for arg in "$@"; do
  if [ "$prev" = "--output" ]; then out="$arg"; fi
  prev="$arg"
done
if [ -n "$out" ]; then
  if [ -n "$FAKE_YTDLP_SLEEP" ]; then
    echo partial > "$out.part"
    exec sleep "$FAKE_YTDLP_SLEEP"
  fi
  echo media > "$out"
fi
if [ -n "$FAKE_YTDLP_EXIT" ]; then
  echo "ERROR: fake failure" >&2
  exit "$FAKE_YTDLP_EXIT"
fi
`

func writeFakeYtdlp(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake yt-dlp is a shell script")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}

	path := filepath.Join(t.TempDir(), "yt-dlp")
	if err := os.WriteFile(path, []byte(fakeYtdlpScript), 0o755); err != nil {
		t.Fatalf("Failed to write fake yt-dlp: %v", err)
	}
	return path
}

// hasArgs reports whether seq appears as consecutive lines of stdout
func hasArgs(stdout string, seq ...string) bool {
	lines := strings.Split(stdout, "\n")
	for i := 0; i+len(seq) <= len(lines); i++ {
		match := true
		for j, want := range seq {
			if lines[i+j] != want {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func TestToolRunnerArguments(t *testing.T) {
	exe := writeFakeYtdlp(t)
	runner := NewToolRunner(exe, nil, "TestAgent/1.0", zerolog.Nop())
	output := filepath.Join(t.TempDir(), "wavepipe_test.mp3")

	tests := []struct {
		name     string
		inv      Invocation
		expected [][]string
		absent   []string
	}{
		{
			name: "title",
			inv:  Invocation{Kind: KindTitle, URL: runnerTestURL},
			expected: [][]string{
				{"--print", "title"},
				{"--no-warnings"},
				{"--no-playlist"},
				{runnerTestURL},
			},
		},
		{
			name: "info",
			inv:  Invocation{Kind: KindInfo, URL: runnerTestURL},
			expected: [][]string{
				{"--dump-single-json"},
				{"--flat-playlist"},
				{"--no-check-certificates"},
				{"--prefer-free-formats"},
				{"--no-cache-dir"},
				{"--add-headers", "User-Agent:TestAgent/1.0"},
				{runnerTestURL},
			},
		},
		{
			name: "download mp3",
			inv:  Invocation{Kind: KindDownload, URL: runnerTestURL, Format: model.FormatMP3, Output: output},
			expected: [][]string{
				{"--output", output},
				{"--extract-audio"},
				{"--audio-format", AudioFormatMP3},
				{"--audio-quality", AudioQualityBest},
				{"--embed-thumbnail"},
				{"--embed-metadata"},
				{"--no-playlist"},
			},
			absent: []string{"--merge-output-format"},
		},
		{
			name: "download mp4",
			inv:  Invocation{Kind: KindDownload, URL: runnerTestURL, Format: model.FormatMP4, Output: output},
			expected: [][]string{
				{"--format", VideoFormatSelector},
				{"--merge-output-format", MergeFormatMP4},
			},
			absent: []string{"--extract-audio"},
		},
		{
			name:     "version",
			inv:      Invocation{Kind: KindVersion},
			expected: [][]string{{"--version"}},
			absent:   []string{runnerTestURL},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := runner.Run(context.Background(), tt.inv)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if res.ExitCode != 0 {
				t.Fatalf("Expected exit code 0, got %d: %s", res.ExitCode, res.Stderr)
			}
			for _, seq := range tt.expected {
				if !hasArgs(res.Stdout, seq...) {
					t.Errorf("Expected args %v in:\n%s", seq, res.Stdout)
				}
			}
			for _, arg := range tt.absent {
				if hasArgs(res.Stdout, arg) {
					t.Errorf("Expected no %s in:\n%s", arg, res.Stdout)
				}
			}
		})
	}
}

func TestToolRunnerForwardsEnvironment(t *testing.T) {
	exe := writeFakeYtdlp(t)
	t.Setenv("FAKE_YTDLP_MARKER", "forwarded")
	t.Setenv("HOME", "/home/wavepipe")

	runner := NewToolRunner(exe, nil, "", zerolog.Nop())
	res, err := runner.Run(context.Background(), Invocation{Kind: KindVersion})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !hasArgs(res.Stdout, "marker=forwarded") {
		t.Errorf("Expected FAKE_YTDLP_MARKER to reach yt-dlp, got:\n%s", res.Stdout)
	}
	if !hasArgs(res.Stdout, "home=/home/wavepipe") {
		t.Errorf("Expected HOME to reach yt-dlp, got:\n%s", res.Stdout)
	}
}

func TestToolRunnerNonZeroExit(t *testing.T) {
	exe := writeFakeYtdlp(t)
	t.Setenv("FAKE_YTDLP_EXIT", "2")

	runner := NewToolRunner(exe, nil, "", zerolog.Nop())
	res, err := runner.Run(context.Background(), Invocation{Kind: KindInfo, URL: runnerTestURL})
	if err != nil {
		t.Fatalf("Expected exit code in result, not an error, got %v", err)
	}
	if res.ExitCode != 2 {
		t.Errorf("Expected exit code 2, got %d", res.ExitCode)
	}
	if !strings.Contains(res.Stderr, "fake failure") {
		t.Errorf("Expected stderr to be captured, got %q", res.Stderr)
	}

	service := NewService(runner, Options{TempDir: t.TempDir(), RetryBackoff: time.Millisecond}, zerolog.Nop())
	_, err = service.Prepare(context.Background(), runnerTestURL, model.FormatMP3)

	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("Expected *ToolError, got %v", err)
	}
	if toolErr.ExitCode != 2 || !strings.Contains(toolErr.Stderr, "fake failure") {
		t.Errorf("Unexpected tool error %+v", toolErr)
	}
	if entries, _ := os.ReadDir(service.TempDir()); len(entries) != 0 {
		t.Errorf("Expected temp dir to be empty, got %d entries", len(entries))
	}
}

func TestToolRunnerTimeoutRemovesPartials(t *testing.T) {
	exe := writeFakeYtdlp(t)
	t.Setenv("FAKE_YTDLP_SLEEP", "10")

	tempDir := t.TempDir()
	runner := NewToolRunner(exe, nil, "", zerolog.Nop())
	service := NewService(runner, Options{
		TempDir:         tempDir,
		DownloadTimeout: 300 * time.Millisecond,
		RetryBackoff:    time.Millisecond,
	}, zerolog.Nop())

	started := time.Now()
	_, err := service.Prepare(context.Background(), runnerTestURL, model.FormatMP3)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(started); elapsed > 5*time.Second {
		t.Errorf("Expected the run to stop at the timeout, took %v", elapsed)
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatalf("Failed to read temp dir: %v", err)
	}
	for _, e := range entries {
		t.Errorf("Expected partial file to be removed, found %s", e.Name())
	}
}

func TestToolRunnerMissingExecutable(t *testing.T) {
	runner := NewToolRunner(filepath.Join(t.TempDir(), "yt-dlp"), nil, "", zerolog.Nop())

	res, err := runner.Run(context.Background(), Invocation{Kind: KindVersion})
	if !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("Expected ErrToolNotFound, got %v", err)
	}
	if res != nil {
		t.Errorf("Expected nil result, got %+v", res)
	}
	if Classify(err) != FailureToolNotFound {
		t.Errorf("Expected tool_not_found, got %s", Classify(err))
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{KindTitle, "title"},
		{KindInfo, "info"},
		{KindDownload, "download"},
		{KindVersion, "version"},
		{Kind(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.expected {
			t.Errorf("Expected %s, got %s", tt.expected, got)
		}
	}
}

func TestConvertResult(t *testing.T) {
	if res := convertResult(nil); res.ExitCode != -1 {
		t.Errorf("Expected exit code -1 for missing result, got %d", res.ExitCode)
	}

	res := convertResult(&ytdlp.Result{
		Args:     []string{"--version"},
		Stdout:   "2024.08.06\n",
		Stderr:   "",
		ExitCode: 0,
	})
	if res.Stdout != "2024.08.06\n" || res.ExitCode != 0 || len(res.Args) != 1 {
		t.Errorf("Unexpected conversion: %+v", res)
	}
}

func TestConvertProgress(t *testing.T) {
	title := "Song"
	update := ytdlp.ProgressUpdate{
		TotalBytes:      200,
		DownloadedBytes: 50,
		Info:            &ytdlp.ExtractedInfo{Title: &title},
	}

	p := convertProgress(&update)
	if p.Percent != 25 {
		t.Errorf("Expected 25 percent, got %d", p.Percent)
	}
	if p.TotalBytes != 200 || p.DownloadedBytes != 50 {
		t.Errorf("Unexpected byte counts: %+v", p)
	}
	if p.Title != "Song" {
		t.Errorf("Expected title Song, got %q", p.Title)
	}
	if p.Speed != "" {
		t.Errorf("Expected no speed without start time, got %q", p.Speed)
	}
}

func TestFormatSpeed(t *testing.T) {
	if got := FormatSpeed(1.5 * 1024 * 1024); got != "1.5MB/s" {
		t.Errorf("Expected 1.5MB/s, got %s", got)
	}
}
