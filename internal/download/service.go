package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/amiaddur/wavepipe/internal/logging"
	"github.com/amiaddur/wavepipe/internal/model"
	"github.com/amiaddur/wavepipe/internal/platform"
)

// Service defaults
const (
	DefaultTitleTimeout    = 10 * time.Second
	DefaultDownloadTimeout = 5 * time.Minute
	DefaultMaxParallel     = 2
	DefaultRetryBackoff    = 2 * time.Second
	DefaultJobRetention    = 15 * time.Minute
	DefaultSweepInterval   = 10 * time.Minute

	JobIDPrefix = "dl-"
)

// Verifier checks a finished download before it is streamed
type Verifier interface {
	Verify(ctx context.Context, path string, format model.Format) error
}

// Options configures a Service
type Options struct {
	TempDir         string
	TitleTimeout    time.Duration
	DownloadTimeout time.Duration
	MaxParallel     int
	Retries         int
	RetryBackoff    time.Duration
	AllowedHosts    []string
	JobRetention    time.Duration
}

func (o Options) withDefaults() Options {
	if o.TempDir == "" {
		o.TempDir = os.TempDir()
	}
	if o.TitleTimeout <= 0 {
		o.TitleTimeout = DefaultTitleTimeout
	}
	if o.DownloadTimeout <= 0 {
		o.DownloadTimeout = DefaultDownloadTimeout
	}
	if o.MaxParallel <= 0 {
		o.MaxParallel = DefaultMaxParallel
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = DefaultRetryBackoff
	}
	if o.JobRetention <= 0 {
		o.JobRetention = DefaultJobRetention
	}
	return o
}

// Service handles download operations
type Service struct {
	runner   Runner
	verifier Verifier
	opts     Options
	logger   zerolog.Logger

	slots chan struct{}

	jobs      map[string]*model.DownloadJob
	jobsMutex sync.RWMutex
	onUpdate  func(model.DownloadJob)
}

// NewService creates a new download service
func NewService(runner Runner, opts Options, logger zerolog.Logger) *Service {
	opts = opts.withDefaults()
	return &Service{
		runner: runner,
		opts:   opts,
		logger: logger,
		slots:  make(chan struct{}, opts.MaxParallel),
		jobs:   make(map[string]*model.DownloadJob),
	}
}

// SetVerifier enables output verification
func (s *Service) SetVerifier(v Verifier) {
	s.verifier = v
}

// SetUpdateCallback sets the callback function for job updates
func (s *Service) SetUpdateCallback(callback func(model.DownloadJob)) {
	s.jobsMutex.Lock()
	s.onUpdate = callback
	s.jobsMutex.Unlock()
}

// TempDir returns the directory downloads are written to
func (s *Service) TempDir() string {
	return s.opts.TempDir
}

// ResolveTitle asks yt-dlp for the title of url. Any failure is logged and
// the default title returned.
func (s *Service) ResolveTitle(ctx context.Context, url string) string {
	return s.resolveTitle(ctx, s.logger, url)
}

func (s *Service) resolveTitle(ctx context.Context, logger zerolog.Logger, url string) string {
	ctx, cancel := context.WithTimeout(ctx, s.opts.TitleTimeout)
	defer cancel()

	res, err := s.runner.Run(ctx, Invocation{Kind: KindTitle, URL: url})
	if err != nil {
		logger.Warn().Err(err).Msg("title lookup failed, using default title")
		return platform.DefaultTitle
	}

	stdout := strings.TrimSpace(res.Stdout)
	if stdout == "" && res.ExitCode != 0 {
		logger.Warn().Int(logging.FieldExitCode, res.ExitCode).Str("stderr", strings.TrimSpace(res.Stderr)).
			Msg("title lookup failed, using default title")
		return platform.DefaultTitle
	}

	firstLine, _, _ := strings.Cut(stdout, "\n")
	return platform.SanitizeFilename(firstLine)
}

// Prepare downloads url in the requested format into a temporary file and
// returns it ready to stream. The caller must call Cleanup or Fail on the
// artifact.
func (s *Service) Prepare(ctx context.Context, rawURL string, format model.Format) (*Artifact, error) {
	parsed, err := platform.ValidateURL(rawURL, s.opts.AllowedHosts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	url, err := platform.SingleVideoURL(parsed.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	id, token := generateJobID()
	job := model.NewDownloadJob(id, url, format)
	job.TempPath = platform.TempFilePath(s.opts.TempDir, token, format.Extension())
	s.register(job)

	logger := s.logger.With().Str(logging.FieldJobID, id).Logger()
	logger.Info().Str(logging.FieldURL, url).Str(logging.FieldFormat, format.String()).Msg("download requested")

	artifact, err := s.prepare(ctx, logger, job, token)
	if err != nil {
		s.discard(logger, job, token)
		s.finish(job, err)
		logger.Error().Err(err).Str("failure", Classify(err).String()).Msg("download failed")
		return nil, err
	}
	return artifact, nil
}

func (s *Service) prepare(ctx context.Context, logger zerolog.Logger, job *model.DownloadJob, token string) (*Artifact, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	s.setStatus(job, model.JobStatusResolvingTitle)
	title := s.resolveTitle(ctx, logger, job.URL)
	s.update(job, func(j *model.DownloadJob) { j.Title = title })
	logger.Debug().Str("title", title).Msg("title resolved")

	s.setStatus(job, model.JobStatusDownloading)
	if err := s.downloadWithRetry(ctx, logger, job, token); err != nil {
		return nil, err
	}

	size, err := platform.FileSize(job.TempPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrOutputMissing, job.TempPath)
	}

	if s.verifier != nil {
		if err := s.verifier.Verify(ctx, job.TempPath, job.Format); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrOutputMissing, err)
		}
	}

	s.update(job, func(j *model.DownloadJob) {
		j.Status = model.JobStatusStreaming
		j.FileSize = size
		j.Percent = 100
		j.ETASec = -1
	})
	logger.Info().Str(logging.FieldPath, job.TempPath).Int64("size", size).Msg("download ready")

	snapshot, _ := s.GetJob(job.ID)
	return &Artifact{
		Job:         snapshot,
		Path:        job.TempPath,
		Filename:    title + "." + job.Format.Extension(),
		ContentType: job.Format.ContentType(),
		Size:        size,
		service:     s,
		logger:      logger,
		token:       token,
	}, nil
}

// downloadWithRetry attempts download with retry logic
func (s *Service) downloadWithRetry(ctx context.Context, logger zerolog.Logger, job *model.DownloadJob, token string) error {
	var lastErr error

	for attempt := 0; attempt <= s.opts.Retries; attempt++ {
		if attempt > 0 {
			s.removePartials(logger, token)

			select {
			case <-time.After(s.opts.RetryBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}

			logger.Info().Int(logging.FieldAttempt, attempt+1).Msg("retrying download")
		}

		lastErr = s.downloadOnce(ctx, job)
		if lastErr == nil {
			return nil
		}
		logger.Warn().Err(lastErr).Int(logging.FieldAttempt, attempt+1).Msg("download attempt failed")

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !retryable(lastErr) {
			return lastErr
		}
	}

	return lastErr
}

func (s *Service) downloadOnce(ctx context.Context, job *model.DownloadJob) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.DownloadTimeout)
	defer cancel()

	res, err := s.runner.Run(ctx, Invocation{
		Kind:   KindDownload,
		URL:    job.URL,
		Format: job.Format,
		Output: job.TempPath,
		OnProgress: func(p Progress) {
			s.updateJobProgress(job, p)
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			stderr := ""
			if res != nil {
				stderr = strings.TrimSpace(truncate(res.Stderr, MaxStderrLength))
			}
			return fmt.Errorf("%w after %s: %s", ErrTimeout, s.opts.DownloadTimeout, stderr)
		}
		return err
	}
	if res.ExitCode != 0 {
		return newToolError("download", res)
	}
	return nil
}

func retryable(err error) bool {
	switch Classify(err) {
	case FailureToolExit, FailureTimeout:
		return true
	default:
		return false
	}
}

func (s *Service) acquire(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) release() {
	<-s.slots
}

// GetJob returns a copy of a job by ID
func (s *Service) GetJob(id string) (model.DownloadJob, bool) {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()
	job, exists := s.jobs[id]
	if !exists {
		return model.DownloadJob{}, false
	}
	return *job, true
}

func (s *Service) lookup(id string) (*model.DownloadJob, bool) {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()
	job, exists := s.jobs[id]
	return job, exists
}

// ListJobs returns copies of all known jobs, newest first
func (s *Service) ListJobs() []model.DownloadJob {
	s.jobsMutex.RLock()
	jobs := make([]model.DownloadJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, *job)
	}
	s.jobsMutex.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartedAt.After(jobs[j].StartedAt)
	})
	return jobs
}

// ActiveCount returns the number of jobs that have not finished
func (s *Service) ActiveCount() int {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	count := 0
	for _, job := range s.jobs {
		if job.Status.IsActive() {
			count++
		}
	}
	return count
}

func (s *Service) register(job *model.DownloadJob) {
	s.jobsMutex.Lock()
	s.pruneLocked(time.Now())
	s.jobs[job.ID] = job
	s.jobsMutex.Unlock()

	s.notifyUpdate(job)
}

// pruneLocked drops finished jobs older than the retention window
func (s *Service) pruneLocked(now time.Time) {
	for id, job := range s.jobs {
		if job.Status.IsFinished() && now.Sub(job.FinishedAt) > s.opts.JobRetention {
			delete(s.jobs, id)
		}
	}
}

func (s *Service) setStatus(job *model.DownloadJob, status model.JobStatus) {
	s.update(job, func(j *model.DownloadJob) { j.Status = status })
}

func (s *Service) update(job *model.DownloadJob, fn func(*model.DownloadJob)) {
	s.jobsMutex.Lock()
	fn(job)
	s.jobsMutex.Unlock()

	s.notifyUpdate(job)
}

// finish records the final status of a job
func (s *Service) finish(job *model.DownloadJob, err error) {
	s.update(job, func(j *model.DownloadJob) {
		if j.Status.IsFinished() {
			return
		}
		if err != nil {
			j.Status = model.JobStatusError
			j.LastError = err.Error()
		} else {
			j.Status = model.JobStatusCompleted
		}
		j.ETASec = -1
		j.FinishedAt = time.Now()
	})
}

// updateJobProgress updates job progress from yt-dlp output
func (s *Service) updateJobProgress(job *model.DownloadJob, p Progress) {
	s.update(job, func(j *model.DownloadJob) {
		if p.TotalBytes > 0 {
			j.Percent = p.Percent
		}
		if p.Speed != "" {
			j.Speed = p.Speed
		}
		if p.ETA > 0 {
			j.ETASec = int(p.ETA.Seconds())
		}
		if p.Title != "" && j.Title == platform.DefaultTitle {
			j.Title = platform.SanitizeFilename(p.Title)
		}
	})
}

// notifyUpdate calls the update callback if set
func (s *Service) notifyUpdate(job *model.DownloadJob) {
	s.jobsMutex.RLock()
	callback := s.onUpdate
	snapshot := *job
	s.jobsMutex.RUnlock()

	if callback != nil {
		callback(snapshot)
	}
}

// discard removes the output and any partial files of a failed job
func (s *Service) discard(logger zerolog.Logger, job *model.DownloadJob, token string) {
	if err := platform.RemoveIfExists(job.TempPath); err != nil {
		logger.Warn().Err(err).Str(logging.FieldPath, job.TempPath).Msg("failed to remove temp file")
	}
	s.removePartials(logger, token)
}

func (s *Service) removePartials(logger zerolog.Logger, token string) {
	removed, err := platform.RemoveWithPrefix(s.opts.TempDir, platform.TempFilePrefix+token)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to remove partial files")
	}
	for _, path := range removed {
		logger.Debug().Str(logging.FieldPath, path).Msg("removed partial file")
	}
}

// Sweep deletes temp files not modified for maxAge, left behind by crashed
// or killed runs, and returns how many were removed.
func (s *Service) Sweep(maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}

	removed, err := platform.SweepStale(s.opts.TempDir, platform.TempFilePrefix, maxAge)
	if err != nil {
		s.logger.Warn().Err(err).Msg("temp sweep failed")
	}
	for _, path := range removed {
		s.logger.Info().Str(logging.FieldPath, path).Msg("removed orphaned temp file")
	}
	return len(removed)
}

// StartSweeper runs Sweep at interval until ctx is done
func (s *Service) StartSweeper(ctx context.Context, interval, maxAge time.Duration) {
	if maxAge <= 0 {
		return
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	s.Sweep(maxAge)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep(maxAge)
			}
		}
	}()
}

// generateJobID returns a job ID and the token used in temp file names. It
// uses UUID v7 so IDs sort chronologically.
func generateJobID() (string, string) {
	id, err := uuid.NewV7()
	if err != nil {
		token := fmt.Sprintf("%d", time.Now().UnixNano())
		return JobIDPrefix + token, token
	}
	return JobIDPrefix + id.String(), id.String()
}
