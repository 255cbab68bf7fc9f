package download

import (
	"context"

	"github.com/amiaddur/wavepipe/internal/model"
)

// Downloader defines the interface for the download service.
type Downloader interface {
	ResolveTitle(ctx context.Context, url string) string
	Prepare(ctx context.Context, url string, format model.Format) (*Artifact, error)
	GetJob(id string) (model.DownloadJob, bool)
	ListJobs() []model.DownloadJob
	ActiveCount() int
}

var _ Downloader = (*Service)(nil)
var _ Runner = (*ToolRunner)(nil)
