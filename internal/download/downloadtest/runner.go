// Package downloadtest provides a Runner that fakes yt-dlp for tests of
// packages built on top of download.
package downloadtest

import (
	"context"
	"os"
	"sync"

	"github.com/amiaddur/wavepipe/internal/download"
)

// HandlerFunc answers a single invocation
type HandlerFunc func(ctx context.Context, inv download.Invocation) (*download.Result, error)

// Runner is a fake yt-dlp. Kinds without a handler get the defaults: a
// fixed title, a small media file written to the output path, empty info
// and a version string.
type Runner struct {
	Title   string
	Content []byte
	Info    string
	Version string

	mu       sync.Mutex
	handlers map[download.Kind]HandlerFunc
	calls    []download.Invocation
}

// NewRunner creates a fake runner with defaults
func NewRunner() *Runner {
	return &Runner{
		Title:    "Fake Song",
		Content:  []byte("ID3 fake media payload"),
		Version:  "2024.08.06",
		handlers: make(map[download.Kind]HandlerFunc),
	}
}

// Handle overrides the behavior for kind
func (r *Runner) Handle(kind download.Kind, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = fn
}

// Calls returns every invocation seen so far
func (r *Runner) Calls() []download.Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]download.Invocation(nil), r.calls...)
}

// Count returns how many invocations of kind were seen
func (r *Runner) Count(kind download.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, call := range r.calls {
		if call.Kind == kind {
			n++
		}
	}
	return n
}

// Run implements download.Runner
func (r *Runner) Run(ctx context.Context, inv download.Invocation) (*download.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, inv)
	handler := r.handlers[inv.Kind]
	r.mu.Unlock()

	if handler != nil {
		return handler(ctx, inv)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch inv.Kind {
	case download.KindTitle:
		return &download.Result{Stdout: r.Title + "\n"}, nil
	case download.KindInfo:
		return &download.Result{Stdout: r.Info}, nil
	case download.KindDownload:
		return WriteOutput(inv, r.Content)
	case download.KindVersion:
		return &download.Result{Stdout: r.Version + "\n"}, nil
	}
	return &download.Result{}, nil
}

// WriteOutput writes content to inv.Output the way a successful download
// does, reporting progress halfway and at the end.
func WriteOutput(inv download.Invocation, content []byte) (*download.Result, error) {
	total := int64(len(content))
	if inv.OnProgress != nil {
		inv.OnProgress(download.Progress{Percent: 50, DownloadedBytes: total / 2, TotalBytes: total, Speed: "1.0MB/s"})
	}
	if err := os.WriteFile(inv.Output, content, 0o644); err != nil {
		return nil, err
	}
	if inv.OnProgress != nil {
		inv.OnProgress(download.Progress{Percent: 100, DownloadedBytes: total, TotalBytes: total, Speed: "1.0MB/s"})
	}
	return &download.Result{}, nil
}

// Failure returns a handler that exits with code and stderr
func Failure(code int, stderr string) HandlerFunc {
	return func(ctx context.Context, inv download.Invocation) (*download.Result, error) {
		return &download.Result{ExitCode: code, Stderr: stderr}, nil
	}
}

// Missing returns a handler that reports yt-dlp as not installed
func Missing() HandlerFunc {
	return func(ctx context.Context, inv download.Invocation) (*download.Result, error) {
		return nil, download.ErrToolNotFound
	}
}

var _ download.Runner = (*Runner)(nil)
