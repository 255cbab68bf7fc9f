// Package media inspects files produced by yt-dlp with ffprobe and reports
// the installed ffmpeg version.
package media

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/amiaddur/wavepipe/internal/model"
	"github.com/amiaddur/wavepipe/internal/platform"
)

// FFmpeg constants
const (
	FFmpegCommand       = "ffmpeg"
	FFprobeCommand      = "ffprobe"
	FFprobeLogLevel     = "error"
	FFprobeShowEntries  = "stream=codec_type"
	FFprobeOutputFormat = "csv=p=0"
	VersionFlag         = "-version"

	CodecTypeAudio = "audio"
	CodecTypeVideo = "video"

	DefaultProbeTimeout = 30 * time.Second
)

// ErrInvalidMedia is returned when a file lacks the stream its format needs
var ErrInvalidMedia = errors.New("invalid media file")

type commandFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Prober runs ffprobe and ffmpeg
type Prober struct {
	ffprobePath string
	searchDirs  []string
	timeout     time.Duration
	run         commandFunc
}

// NewProber creates a prober. ffprobePath may be empty to look it up.
func NewProber(ffprobePath string, searchDirs []string) *Prober {
	return &Prober{
		ffprobePath: ffprobePath,
		searchDirs:  searchDirs,
		timeout:     DefaultProbeTimeout,
		run:         runCommand,
	}
}

// SetTimeout sets the timeout for probe operations
func (p *Prober) SetTimeout(timeout time.Duration) {
	p.timeout = timeout
}

// BuildFFprobeArgs builds the ffprobe arguments listing stream types
func BuildFFprobeArgs(path string) []string {
	return []string{
		"-v", FFprobeLogLevel,
		"-show_entries", FFprobeShowEntries,
		"-of", FFprobeOutputFormat,
		path,
	}
}

// Streams returns the codec types of every stream in path
func (p *Prober) Streams(ctx context.Context, path string) ([]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("input file does not exist: %s", path)
	}

	exe, err := platform.ResolveExecutable(FFprobeCommand, p.ffprobePath, p.searchDirs)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	output, err := p.run(ctx, exe, BuildFFprobeArgs(path)...)
	if err != nil {
		return nil, fmt.Errorf("failed to run ffprobe: %w", err)
	}

	return parseStreams(output), nil
}

// Verify checks that path has an audio stream for mp3 and a video stream
// for mp4
func (p *Prober) Verify(ctx context.Context, path string, format model.Format) error {
	streams, err := p.Streams(ctx, path)
	if err != nil {
		return err
	}

	want := CodecTypeVideo
	if format.IsAudio() {
		want = CodecTypeAudio
	}
	for _, codecType := range streams {
		if codecType == want {
			return nil
		}
	}
	return fmt.Errorf("%w: %s has no %s stream (found %v)", ErrInvalidMedia, path, want, streams)
}

// FFmpegVersion returns the first line of `ffmpeg -version`
func (p *Prober) FFmpegVersion(ctx context.Context) (string, error) {
	exe, err := platform.ResolveExecutable(FFmpegCommand, "", p.searchDirs)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	output, err := p.run(ctx, exe, VersionFlag)
	if err != nil {
		return "", fmt.Errorf("failed to run ffmpeg: %w", err)
	}

	firstLine, _, _ := strings.Cut(strings.TrimSpace(string(output)), "\n")
	return strings.TrimSpace(firstLine), nil
}

func parseStreams(output []byte) []string {
	var streams []string
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := strings.Trim(strings.TrimSpace(scanner.Text()), ",")
		if line != "" {
			streams = append(streams, line)
		}
	}
	return streams
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil && stderr.Len() > 0 {
		return output, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return output, err
}
