package model

// JobStatus represents the status of a download job
type JobStatus string

const (
	// JobStatusPending means the job is waiting for a free download slot
	JobStatusPending JobStatus = "Pending"

	// JobStatusResolvingTitle means the title lookup is running
	JobStatusResolvingTitle JobStatus = "ResolvingTitle"

	// JobStatusDownloading means yt-dlp is downloading or transcoding
	JobStatusDownloading JobStatus = "Downloading"

	// JobStatusStreaming means the file is being sent to the client
	JobStatusStreaming JobStatus = "Streaming"

	// JobStatusCompleted means the file was delivered and removed
	JobStatusCompleted JobStatus = "Completed"

	// JobStatusError means the job failed with an error
	JobStatusError JobStatus = "Error"
)

// String returns the string representation of JobStatus
func (js JobStatus) String() string {
	return string(js)
}

// IsActive returns true if the job currently holds a download slot or is streaming
func (js JobStatus) IsActive() bool {
	return js == JobStatusResolvingTitle || js == JobStatusDownloading || js == JobStatusStreaming
}

// IsFinished returns true if the job is in a finished state (completed or error)
func (js JobStatus) IsFinished() bool {
	return js == JobStatusCompleted || js == JobStatusError
}
