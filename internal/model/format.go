package model

import "strings"

// Format is the output container requested by the client
type Format string

const (
	// FormatMP3 extracts the audio track and transcodes it to MP3
	FormatMP3 Format = "mp3"

	// FormatMP4 downloads video and audio and muxes them into MP4
	FormatMP4 Format = "mp4"
)

// Content types sent with the streamed file
const (
	ContentTypeMP3 = "audio/mpeg"
	ContentTypeMP4 = "video/mp4"
)

// ParseFormat maps a query value to a Format. An empty value selects MP3 and
// any value other than "mp3" selects MP4.
func ParseFormat(value string) Format {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(FormatMP3):
		return FormatMP3
	default:
		return FormatMP4
	}
}

// String returns the string representation of Format
func (f Format) String() string {
	return string(f)
}

// IsAudio reports whether the format is audio only
func (f Format) IsAudio() bool {
	return f == FormatMP3
}

// Extension returns the file extension without the leading dot
func (f Format) Extension() string {
	if f.IsAudio() {
		return string(FormatMP3)
	}
	return string(FormatMP4)
}

// ContentType returns the MIME type for the format
func (f Format) ContentType() string {
	if f.IsAudio() {
		return ContentTypeMP3
	}
	return ContentTypeMP4
}
