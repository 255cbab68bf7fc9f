package download

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alessio/shellescape"
	"github.com/lrstanley/go-ytdlp"
	"github.com/rs/zerolog"

	"github.com/amiaddur/wavepipe/internal/logging"
	"github.com/amiaddur/wavepipe/internal/model"
	"github.com/amiaddur/wavepipe/internal/platform"
)

// yt-dlp constants
const (
	YtdlpCommand = "yt-dlp"

	TitleTemplate = "title"

	AudioFormatMP3   = "mp3"
	AudioQualityBest = "0"

	VideoFormatSelector = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"
	MergeFormatMP4      = "mp4"

	UserAgentHeader = "User-Agent:"

	ProgressInterval = 500 * time.Millisecond
)

// Kind selects which yt-dlp invocation to run
type Kind int

const (
	KindTitle Kind = iota
	KindInfo
	KindDownload
	KindVersion
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindTitle:
		return "title"
	case KindInfo:
		return "info"
	case KindDownload:
		return "download"
	case KindVersion:
		return "version"
	default:
		return "unknown"
	}
}

// Progress is a download progress sample
type Progress struct {
	Percent         int
	DownloadedBytes int64
	TotalBytes      int64
	Speed           string
	ETA             time.Duration
	Title           string
}

// Invocation describes a single yt-dlp run
type Invocation struct {
	Kind       Kind
	URL        string
	Format     model.Format
	Output     string
	OnProgress func(Progress)
}

// Result is what yt-dlp produced
type Result struct {
	Args     []string
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner runs yt-dlp. An error is returned only when the tool could not be
// run to completion (not found, context done); a non-zero exit is reported
// through Result.ExitCode.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (*Result, error)
}

// ToolRunner runs the real yt-dlp binary
type ToolRunner struct {
	path       string
	searchDirs []string
	userAgent  string
	logger     zerolog.Logger
}

// NewToolRunner creates a runner. path may be empty to look yt-dlp up in
// PATH and searchDirs on every run.
func NewToolRunner(path string, searchDirs []string, userAgent string, logger zerolog.Logger) *ToolRunner {
	return &ToolRunner{
		path:       path,
		searchDirs: searchDirs,
		userAgent:  userAgent,
		logger:     logger,
	}
}

// Executable resolves the yt-dlp binary
func (r *ToolRunner) Executable() (string, error) {
	exe, err := platform.ResolveExecutable(YtdlpCommand, r.path, r.searchDirs)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrToolNotFound, err)
	}
	return exe, nil
}

// Run executes inv
func (r *ToolRunner) Run(ctx context.Context, inv Invocation) (*Result, error) {
	exe, err := r.Executable()
	if err != nil {
		return nil, err
	}

	cmd := r.command(exe, inv)

	started := time.Now()
	var res *ytdlp.Result
	var runErr error
	if inv.Kind == KindVersion {
		res, runErr = cmd.Version(ctx)
	} else {
		var args []string
		if inv.URL != "" {
			args = append(args, inv.URL)
		}
		res, runErr = cmd.Run(ctx, args...)
	}
	result := convertResult(res)

	r.logger.Debug().
		Str(logging.FieldCommand, shellescape.QuoteCommand(append([]string{exe}, result.Args...))).
		Int(logging.FieldExitCode, result.ExitCode).
		Dur(logging.FieldDuration, time.Since(started)).
		Msgf("yt-dlp %s finished", inv.Kind)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, ctxErr
	}
	if runErr == nil {
		return result, nil
	}
	if res != nil && res.ExitCode != 0 {
		return result, nil
	}
	return result, runErr
}

func (r *ToolRunner) command(exe string, inv Invocation) *ytdlp.Command {
	dl := ytdlp.New().SetExecutable(exe)
	forwardEnv(dl)

	switch inv.Kind {
	case KindTitle:
		dl = dl.Print(TitleTemplate).NoWarnings().NoPlaylist()
	case KindInfo:
		dl = dl.DumpSingleJSON().
			FlatPlaylist().
			NoWarnings().
			NoCheckCertificates().
			PreferFreeFormats().
			NoCacheDir()
		if r.userAgent != "" {
			dl = dl.AddHeaders(UserAgentHeader + r.userAgent)
		}
	case KindDownload:
		dl = dl.NoWarnings().
			NoPlaylist().
			Output(inv.Output).
			EmbedThumbnail().
			EmbedMetadata()
		if inv.Format.IsAudio() {
			dl = dl.ExtractAudio().AudioFormat(AudioFormatMP3).AudioQuality(AudioQualityBest)
		} else {
			dl = dl.Format(VideoFormatSelector).MergeOutputFormat(MergeFormatMP4)
		}
		if inv.OnProgress != nil {
			dl.ProgressFunc(ProgressInterval, func(update ytdlp.ProgressUpdate) {
				inv.OnProgress(convertProgress(&update))
			})
		}
	}

	return dl
}

// forwardEnv copies the process environment into cmd. go-ytdlp otherwise
// starts yt-dlp with PATH as its only variable.
func forwardEnv(cmd *ytdlp.Command) {
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		cmd.SetEnvVar(key, value)
	}
}

func convertResult(res *ytdlp.Result) *Result {
	if res == nil {
		return &Result{ExitCode: -1}
	}
	return &Result{
		Args:     res.Args,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		ExitCode: res.ExitCode,
	}
}

// convertProgress derives percent, speed and ETA from a yt-dlp progress update
func convertProgress(update *ytdlp.ProgressUpdate) Progress {
	p := Progress{
		DownloadedBytes: int64(update.DownloadedBytes),
		TotalBytes:      int64(update.TotalBytes),
	}

	if update.TotalBytes > 0 {
		percent := float64(update.DownloadedBytes) / float64(update.TotalBytes) * 100
		p.Percent = int(percent)
	}

	if !update.Started.IsZero() {
		elapsed := time.Since(update.Started)
		if elapsed.Seconds() > 0 {
			bytesPerSecond := float64(update.DownloadedBytes) / elapsed.Seconds()
			p.Speed = FormatSpeed(bytesPerSecond)
		}
	}

	if eta := update.ETA(); eta > 0 {
		p.ETA = eta
	}

	if update.Info != nil && update.Info.Title != nil {
		p.Title = *update.Info.Title
	}

	return p
}

// FormatSpeed renders bytes per second as MB/s
func FormatSpeed(bytesPerSecond float64) string {
	return fmt.Sprintf("%.1fMB/s", bytesPerSecond/1024/1024)
}
