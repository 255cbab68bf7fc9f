package model

import "encoding/json"

// MediaType discriminates the two shapes returned by the info route
type MediaType string

const (
	MediaTypeVideo    MediaType = "video"
	MediaTypePlaylist MediaType = "playlist"
)

// Track represents a single entry of a flat playlist
type Track struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Duration string `json:"duration"`
}

// MediaInfo is the metadata of a single video or of a playlist. It encodes
// to the shape of its Type: playlist fields are always present for
// playlists and never for videos.
type MediaInfo struct {
	Type      MediaType `json:"type"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Thumbnail string    `json:"thumbnail"`

	// Video only
	Duration   string `json:"duration,omitempty"`
	UploadDate string `json:"uploadDate,omitempty"`

	// Playlist only
	TotalVideos int     `json:"totalVideos,omitempty"`
	Tracks      []Track `json:"tracks,omitempty"`
}

// IsPlaylist reports whether the info describes a playlist
func (m *MediaInfo) IsPlaylist() bool {
	return m.Type == MediaTypePlaylist
}

// NewPlaylistInfo creates a playlist info with a non-nil track list
func NewPlaylistInfo(title, author, thumbnail string) *MediaInfo {
	return &MediaInfo{
		Type:      MediaTypePlaylist,
		Title:     title,
		Author:    author,
		Thumbnail: thumbnail,
		Tracks:    make([]Track, 0),
	}
}

// AddTrack appends a track and keeps TotalVideos at least the number of tracks
func (m *MediaInfo) AddTrack(track Track) {
	m.Tracks = append(m.Tracks, track)
	if m.TotalVideos < len(m.Tracks) {
		m.TotalVideos = len(m.Tracks)
	}
}

type videoJSON struct {
	Type       MediaType `json:"type"`
	Title      string    `json:"title"`
	Author     string    `json:"author"`
	Thumbnail  string    `json:"thumbnail"`
	Duration   string    `json:"duration"`
	UploadDate string    `json:"uploadDate,omitempty"`
}

type playlistJSON struct {
	Type        MediaType `json:"type"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Thumbnail   string    `json:"thumbnail"`
	TotalVideos int       `json:"totalVideos"`
	Tracks      []Track   `json:"tracks"`
}

// MarshalJSON implements json.Marshaler
func (m MediaInfo) MarshalJSON() ([]byte, error) {
	if m.IsPlaylist() {
		tracks := m.Tracks
		if tracks == nil {
			tracks = []Track{}
		}
		return json.Marshal(playlistJSON{
			Type:        m.Type,
			Title:       m.Title,
			Author:      m.Author,
			Thumbnail:   m.Thumbnail,
			TotalVideos: m.TotalVideos,
			Tracks:      tracks,
		})
	}
	return json.Marshal(videoJSON{
		Type:       m.Type,
		Title:      m.Title,
		Author:     m.Author,
		Thumbnail:  m.Thumbnail,
		Duration:   m.Duration,
		UploadDate: m.UploadDate,
	})
}
