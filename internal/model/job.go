package model

import (
	"fmt"
	"strings"
	"time"
)

// DownloadJob represents a single request to /api/download
type DownloadJob struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Format     Format    `json:"format"`
	Status     JobStatus `json:"status"`
	Title      string    `json:"title,omitempty"`
	Percent    int       `json:"percent"`         // 0 to 100
	Speed      string    `json:"speed,omitempty"` // human readable speed (e.g., "1.2MB/s")
	ETASec     int       `json:"eta_sec"`         // ETA in seconds, -1 if unknown
	FileSize   int64     `json:"file_size,omitempty"`
	LastError  string    `json:"error,omitempty"`
	TempPath   string    `json:"-"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// NewDownloadJob creates a pending job
func NewDownloadJob(id, url string, format Format) *DownloadJob {
	return &DownloadJob{
		ID:        id,
		URL:       url,
		Format:    format,
		Status:    JobStatusPending,
		ETASec:    -1,
		StartedAt: time.Now(),
	}
}

// GetETAString returns ETA formatted as hh:mm:ss, or "—" if unknown
func (dj *DownloadJob) GetETAString() string {
	if dj.ETASec <= 0 {
		return "—"
	}

	hours := dj.ETASec / 3600
	minutes := (dj.ETASec % 3600) / 60
	seconds := dj.ETASec % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// GetDisplayTitle returns the resolved title with extension, or the URL
func (dj *DownloadJob) GetDisplayTitle() string {
	if dj.Title != "" && !strings.HasPrefix(dj.Title, "http") {
		return dj.Title + "." + dj.Format.Extension()
	}
	return dj.URL
}

// Elapsed returns how long the job ran, or has been running so far
func (dj *DownloadJob) Elapsed() time.Duration {
	if dj.FinishedAt.IsZero() {
		return time.Since(dj.StartedAt)
	}
	return dj.FinishedAt.Sub(dj.StartedAt)
}
