package download

import (
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/amiaddur/wavepipe/internal/logging"
	"github.com/amiaddur/wavepipe/internal/model"
)

// Artifact is a finished download waiting to be streamed. It owns the temp
// file until Cleanup or Fail is called.
type Artifact struct {
	Job         model.DownloadJob
	Path        string
	Filename    string
	ContentType string
	Size        int64

	service *Service
	logger  zerolog.Logger
	token   string
	once    sync.Once
}

// Open opens the temp file for reading
func (a *Artifact) Open() (*os.File, error) {
	return os.Open(a.Path)
}

// Cleanup deletes the temp file and marks the job completed. It is safe to
// call more than once; removal errors are only logged.
func (a *Artifact) Cleanup() {
	a.close(nil)
}

// Fail deletes the temp file and marks the job failed with err
func (a *Artifact) Fail(err error) {
	a.close(err)
}

func (a *Artifact) close(err error) {
	a.once.Do(func() {
		if a.service == nil {
			return
		}
		job, ok := a.service.lookup(a.Job.ID)
		if !ok {
			job = &a.Job
		}
		a.service.discard(a.logger, job, a.token)
		a.service.finish(job, err)

		snapshot, ok := a.service.GetJob(a.Job.ID)
		if !ok {
			snapshot = a.Job
		}
		if err != nil {
			a.logger.Warn().Err(err).Dur(logging.FieldDuration, snapshot.Elapsed()).Msg("stream aborted, temp file removed")
			return
		}
		a.logger.Info().Str(logging.FieldPath, a.Path).Dur(logging.FieldDuration, snapshot.Elapsed()).Msg("stream finished, temp file removed")
	})
}
