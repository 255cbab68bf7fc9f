package platform

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Jeffail/gabs/v2"
	"github.com/araddon/dateparse"

	"github.com/amiaddur/wavepipe/internal/model"
)

// Default values used when yt-dlp omits a field
const (
	DefaultPlaylistTitle  = "Playlist"
	DefaultPlaylistAuthor = "YouTube"
	DefaultVideoAuthor    = "Unknown"
	DefaultThumbnail      = "https://i.ytimg.com/img/no_thumbnail.jpg"
	DefaultDuration       = "00:00"
)

// yt-dlp JSON keys
const (
	keyType       = "_type"
	keyEntries    = "entries"
	keyEntryCount = "entry_count"
	keyTitle      = "title"
	keyUploader   = "uploader"
	keyChannel    = "channel"
	keyThumbnail  = "thumbnail"
	keyThumbnails = "thumbnails"
	keyURL        = "url"
	keyID         = "id"
	keyDuration   = "duration"
	keyUploadDate = "upload_date"

	typePlaylist = "playlist"
)

// Time formatting constants
const (
	SecondsPerHour   = 3600
	SecondsPerMinute = 60
	UploadDateLayout = "2006-01-02"
)

// Parse errors
var (
	ErrEmptyOutput   = errors.New("empty output")
	ErrInvalidOutput = errors.New("invalid yt-dlp output")
)

// ParseMediaInfo converts the output of
// `yt-dlp --dump-single-json --flat-playlist` into MediaInfo.
func ParseMediaInfo(output []byte) (*model.MediaInfo, error) {
	if len(strings.TrimSpace(string(output))) == 0 {
		return nil, ErrEmptyOutput
	}

	details, err := gabs.ParseJSON(output)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if _, ok := details.Data().(map[string]interface{}); !ok {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrInvalidOutput)
	}

	entries := details.Path(keyEntries).Children()
	if stringAt(details, keyType) == typePlaylist || len(entries) > 0 {
		return parsePlaylist(details, entries), nil
	}
	return parseVideo(details), nil
}

func parsePlaylist(details *gabs.Container, entries []*gabs.Container) *model.MediaInfo {
	thumbnail := lastThumbnail(details)
	if thumbnail == "" && len(entries) > 0 {
		thumbnail = stringAt(entries[0].Path(keyThumbnails).Index(0), keyURL)
	}

	info := model.NewPlaylistInfo(
		firstNonEmpty(stringAt(details, keyTitle), DefaultPlaylistTitle),
		firstNonEmpty(stringAt(details, keyUploader), stringAt(details, keyChannel), DefaultPlaylistAuthor),
		firstNonEmpty(thumbnail, DefaultThumbnail),
	)

	for _, entry := range entries {
		info.AddTrack(model.Track{
			ID:       stringAt(entry, keyID),
			Title:    stringAt(entry, keyTitle),
			Duration: FormatDuration(numberAt(entry, keyDuration)),
		})
	}

	if count := int(numberAt(details, keyEntryCount)); count > 0 {
		info.TotalVideos = count
	} else {
		info.TotalVideos = len(entries)
	}

	return info
}

func parseVideo(details *gabs.Container) *model.MediaInfo {
	return &model.MediaInfo{
		Type:       model.MediaTypeVideo,
		Title:      stringAt(details, keyTitle),
		Author:     firstNonEmpty(stringAt(details, keyUploader), stringAt(details, keyChannel), DefaultVideoAuthor),
		Thumbnail:  firstNonEmpty(stringAt(details, keyThumbnail), stringAt(details.Path(keyThumbnails).Index(0), keyURL)),
		Duration:   FormatDuration(numberAt(details, keyDuration)),
		UploadDate: ParseUploadDate(stringAt(details, keyUploadDate)),
	}
}

// lastThumbnail returns the URL of the last thumbnail, which yt-dlp orders
// from lowest to highest preference.
func lastThumbnail(details *gabs.Container) string {
	thumbnails := details.Path(keyThumbnails).Children()
	if len(thumbnails) == 0 {
		return ""
	}
	return stringAt(thumbnails[len(thumbnails)-1], keyURL)
}

// ParseUploadDate converts yt-dlp's YYYYMMDD upload date to YYYY-MM-DD.
// Unparseable values yield an empty string.
func ParseUploadDate(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	t, err := dateparse.ParseIn(value, time.UTC)
	if err != nil {
		return ""
	}
	return t.Format(UploadDateLayout)
}

// FormatDuration formats seconds as h:mm:ss when at least an hour long and
// as m:ss otherwise. Zero, negative and fractional parts are dropped.
func FormatDuration(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 1 {
		return DefaultDuration
	}

	total := int64(seconds)
	hours := total / SecondsPerHour
	minutes := (total % SecondsPerHour) / SecondsPerMinute
	secs := total % SecondsPerMinute

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}

func stringAt(c *gabs.Container, key string) string {
	switch v := c.Path(key).Data().(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%v", v)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func numberAt(c *gabs.Container, key string) float64 {
	switch v := c.Path(key).Data().(type) {
	case float64:
		return v
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return f
	case int:
		return float64(v)
	default:
		return 0
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
