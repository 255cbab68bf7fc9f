package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/amiaddur/wavepipe/internal/model"
)

// newStubProber returns a prober whose ffprobe and ffmpeg are empty
// executables in a temp dir and whose command output is canned.
func newStubProber(t *testing.T, output string, runErr error) (*Prober, string) {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{FFprobeCommand, FFmpegCommand} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"), 0o755); err != nil {
			t.Fatalf("Failed to write stub %s: %v", name, err)
		}
	}

	media := filepath.Join(dir, "wavepipe_test.mp3")
	if err := os.WriteFile(media, []byte("data"), 0o644); err != nil {
		t.Fatalf("Failed to write media: %v", err)
	}

	p := NewProber(filepath.Join(dir, FFprobeCommand), []string{dir})
	p.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte(output), runErr
	}
	return p, media
}

func TestBuildFFprobeArgs(t *testing.T) {
	args := BuildFFprobeArgs("/tmp/file.mp3")
	expectedArgs := []string{
		"-v", "error",
		"-show_entries", "stream=codec_type",
		"-of", "csv=p=0",
		"/tmp/file.mp3",
	}

	if len(args) != len(expectedArgs) {
		t.Fatalf("Expected %d args, got %d", len(expectedArgs), len(args))
	}
	for i, expected := range expectedArgs {
		if args[i] != expected {
			t.Errorf("Arg %d: expected %s, got %s", i, expected, args[i])
		}
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		format  model.Format
		wantErr bool
	}{
		{"mp3 with audio", "audio\n", model.FormatMP3, false},
		{"mp3 with cover art", "audio\nvideo\n", model.FormatMP3, false},
		{"mp3 without audio", "video\n", model.FormatMP3, true},
		{"mp4 with video and audio", "video\naudio\n", model.FormatMP4, false},
		{"mp4 audio only", "audio\n", model.FormatMP4, true},
		{"trailing commas", "video,\naudio,\n", model.FormatMP4, false},
		{"no streams", "", model.FormatMP3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, media := newStubProber(t, tt.output, nil)
			err := p.Verify(context.Background(), media, tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if err != nil && !errors.Is(err, ErrInvalidMedia) {
				t.Errorf("Expected ErrInvalidMedia, got %v", err)
			}
		})
	}
}

func TestVerifyNonExistentFile(t *testing.T) {
	p, _ := newStubProber(t, "audio\n", nil)
	if err := p.Verify(context.Background(), "/path/to/nonexistent.mp3", model.FormatMP3); err == nil {
		t.Error("Expected error for non-existent file, got nil")
	}
}

func TestVerifyProbeFailure(t *testing.T) {
	p, media := newStubProber(t, "", errors.New("exit status 1"))
	err := p.Verify(context.Background(), media, model.FormatMP3)
	if err == nil || errors.Is(err, ErrInvalidMedia) {
		t.Errorf("Expected ffprobe run error, got %v", err)
	}
}

func TestFFmpegVersion(t *testing.T) {
	p, _ := newStubProber(t, "ffmpeg version 6.1.1 Copyright (c) 2000-2023\nbuilt with gcc\n", nil)

	version, err := p.FFmpegVersion(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if version != "ffmpeg version 6.1.1 Copyright (c) 2000-2023" {
		t.Errorf("Unexpected version %q", version)
	}
}
