package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	ytnative "github.com/ytget/ytdlp/v2"

	"github.com/amiaddur/wavepipe/internal/model"
)

// Timeout constants
const (
	DefaultPlaylistParseTimeout = 30 * time.Second
)

// ErrNotPlaylist is returned when a URL carries no playlist ID
var ErrNotPlaylist = errors.New("url does not reference a playlist")

// NativePlaylistLister lists playlist entries without the yt-dlp binary. It
// only knows the video IDs and titles, so durations are left at 00:00.
type NativePlaylistLister struct {
	timeout time.Duration
}

// NewNativePlaylistLister creates a lister with the default timeout
func NewNativePlaylistLister() *NativePlaylistLister {
	return &NativePlaylistLister{
		timeout: DefaultPlaylistParseTimeout,
	}
}

// SetTimeout sets the timeout for listing operations
func (n *NativePlaylistLister) SetTimeout(timeout time.Duration) {
	n.timeout = timeout
}

// ListPlaylist fetches every entry of the playlist referenced by url
func (n *NativePlaylistLister) ListPlaylist(ctx context.Context, url string) (*model.MediaInfo, error) {
	playlistID := ExtractPlaylistID(url)
	if playlistID == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotPlaylist, url)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	d := ytnative.New()
	items, err := d.GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist items: %w", err)
	}

	info := model.NewPlaylistInfo(DefaultPlaylistTitle, DefaultPlaylistAuthor, DefaultThumbnail)
	for _, it := range items {
		info.AddTrack(model.Track{
			ID:       it.VideoID,
			Title:    it.Title,
			Duration: DefaultDuration,
		})
	}
	if len(items) > 0 {
		info.Thumbnail = fmt.Sprintf(ThumbnailURLTemplate, items[0].VideoID)
	}

	return info, nil
}
