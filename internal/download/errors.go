package download

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"unicode/utf8"

	"github.com/amiaddur/wavepipe/internal/platform"
)

// Pipeline errors
var (
	ErrInvalidURL    = errors.New("invalid url")
	ErrToolNotFound  = errors.New("yt-dlp not found")
	ErrTimeout       = errors.New("yt-dlp timed out")
	ErrToolFailed    = errors.New("yt-dlp failed")
	ErrOutputMissing = errors.New("output file missing")
)

// MaxStderrLength bounds the diagnostic output kept in errors
const MaxStderrLength = 4096

// ToolError reports a non-zero exit of yt-dlp together with its stderr
type ToolError struct {
	Op       string
	ExitCode int
	Stderr   string
}

func (e *ToolError) Error() string {
	stderr := strings.TrimSpace(e.Stderr)
	if stderr == "" {
		return fmt.Sprintf("%s: yt-dlp exited with code %d", e.Op, e.ExitCode)
	}
	return fmt.Sprintf("%s: yt-dlp exited with code %d: %s", e.Op, e.ExitCode, stderr)
}

// Unwrap makes errors.Is(err, ErrToolFailed) match
func (e *ToolError) Unwrap() error {
	return ErrToolFailed
}

func newToolError(op string, res *Result) *ToolError {
	return &ToolError{
		Op:       op,
		ExitCode: res.ExitCode,
		Stderr:   truncate(res.Stderr, MaxStderrLength),
	}
}

// Failure classifies pipeline errors
type Failure int

const (
	FailureNone Failure = iota
	FailureInvalidURL
	FailureToolNotFound
	FailureTimeout
	FailureToolExit
	FailureOutputMissing
	FailureCanceled
	FailureInternal
)

// String returns the string representation of Failure
func (f Failure) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureInvalidURL:
		return "invalid_url"
	case FailureToolNotFound:
		return "tool_not_found"
	case FailureTimeout:
		return "timeout"
	case FailureToolExit:
		return "tool_exit"
	case FailureOutputMissing:
		return "output_missing"
	case FailureCanceled:
		return "canceled"
	default:
		return "internal"
	}
}

// Classify maps an error returned by this package to its Failure
func Classify(err error) Failure {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrInvalidURL),
		errors.Is(err, platform.ErrEmptyURL),
		errors.Is(err, platform.ErrUnsupportedURL):
		return FailureInvalidURL
	case errors.Is(err, ErrToolNotFound),
		errors.Is(err, platform.ErrExecutableNotFound),
		errors.Is(err, exec.ErrNotFound):
		return FailureToolNotFound
	case errors.Is(err, ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	case errors.Is(err, ErrToolFailed):
		return FailureToolExit
	case errors.Is(err, ErrOutputMissing):
		return FailureOutputMissing
	case errors.Is(err, context.Canceled):
		return FailureCanceled
	default:
		return FailureInternal
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	start := len(s) - limit
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}
