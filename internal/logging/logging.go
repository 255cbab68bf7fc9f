// Package logging builds the process logger. Console output is colorized
// when stdout is a terminal, JSON otherwise, and an optional rotating file
// receives JSON lines as well.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Output formats
const (
	FormatAuto    = "auto"
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Rotation limits for the log file
const (
	FileMaxSizeMB  = 20
	FileMaxBackups = 3
	FileMaxAgeDays = 14
)

// Common field names
const (
	FieldJobID     = "job_id"
	FieldRequestID = "request_id"
	FieldURL       = "url"
	FieldFormat    = "format"
	FieldCommand   = "command"
	FieldPath      = "path"
	FieldExitCode  = "exit_code"
	FieldDuration  = "duration"
	FieldStatus    = "status"
	FieldAttempt   = "attempt"
)

// Options configures New
type Options struct {
	Level  string
	Format string
	File   string
}

// New returns a logger writing to stdout and, when opts.File is set, to a
// rotating file. The returned io.Closer releases the file.
func New(opts Options) (zerolog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}

	stdout, err := consoleWriter(os.Stdout, opts.Format)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}

	var closer io.Closer = nopCloser{}
	writer := stdout
	if opts.File != "" {
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    FileMaxSizeMB,
			MaxBackups: FileMaxBackups,
			MaxAge:     FileMaxAgeDays,
			Compress:   true,
		}
		closer = file
		writer = zerolog.MultiLevelWriter(stdout, file)
	}

	logger := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	return logger, closer, nil
}

// ParseLevel accepts zerolog level names; empty selects info
func ParseLevel(value string) (zerolog.Level, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(value)
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("invalid log level %q: %w", value, err)
	}
	return level, nil
}

func consoleWriter(f *os.File, format string) (io.Writer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatAuto:
		if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
			return newConsole(colorable.NewColorable(f), false), nil
		}
		return f, nil
	case FormatConsole:
		return newConsole(colorable.NewNonColorable(f), true), nil
	case FormatJSON:
		return f, nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

func newConsole(out io.Writer, noColor bool) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    noColor,
		TimeFormat: time.TimeOnly,
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
