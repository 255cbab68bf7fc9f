package platform

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// URL parameters and separators
const (
	PlaylistParam  = "list="
	ParamSeparator = "&"
)

// URL templates
const (
	YouTubeVideoURLTemplate = "https://www.youtube.com/watch?v=%s"
	ThumbnailURLTemplate    = "https://i.ytimg.com/vi/%s/hqdefault.jpg"
	YouTubeShortHost        = "youtu.be"
	YouTubeHost             = "www.youtube.com"
	YouTubeWatchPath        = "/watch"
)

// Query parameters removed from single video downloads
var (
	PlaylistQueryParams = []string{"list", "index", "start_radio", "si"}
)

// YouTubeDomains are the registrable domains whose URLs carry playlist
// parameters
var YouTubeDomains = []string{"youtube.com", "youtu.be", "youtube-nocookie.com"}

// URL validation errors
var (
	ErrEmptyURL       = errors.New("url is empty")
	ErrUnsupportedURL = errors.New("unsupported url")
)

// ValidateURL checks that raw is an absolute http(s) URL whose host is an IP
// or has a registrable domain. When allowedHosts is non-empty the registrable
// domain must be listed.
func ValidateURL(raw string, allowedHosts []string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyURL
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedURL, err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedURL, parsed.Scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrUnsupportedURL)
	}

	if net.ParseIP(host) != nil {
		if len(allowedHosts) > 0 {
			return nil, fmt.Errorf("%w: host %s is not allowed", ErrUnsupportedURL, host)
		}
		return parsed, nil
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return nil, fmt.Errorf("%w: host %s: %v", ErrUnsupportedURL, host, err)
	}

	if len(allowedHosts) > 0 && !hostAllowed(host, domain, allowedHosts) {
		return nil, fmt.Errorf("%w: host %s is not allowed", ErrUnsupportedURL, host)
	}

	return parsed, nil
}

func hostAllowed(host, domain string, allowedHosts []string) bool {
	for _, allowed := range allowedHosts {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if allowed == host || allowed == domain {
			return true
		}
	}
	return false
}

// SingleVideoURL expands youtu.be short links and strips playlist parameters
// so that a download only fetches the referenced video. URLs of other sites
// are returned unchanged.
func SingleVideoURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if !IsYouTubeHost(parsed.Hostname()) {
		return raw, nil
	}

	query := parsed.Query()
	if strings.EqualFold(parsed.Hostname(), YouTubeShortHost) {
		videoID := strings.Trim(parsed.Path, "/")
		parsed.Host = YouTubeHost
		parsed.Path = YouTubeWatchPath
		if videoID != "" {
			query.Set("v", videoID)
		}
	}

	for _, param := range PlaylistQueryParams {
		query.Del(param)
	}
	parsed.RawQuery = query.Encode()

	return parsed.String(), nil
}

// IsYouTubeHost reports whether host belongs to one of YouTubeDomains
func IsYouTubeHost(host string) bool {
	host = strings.ToLower(host)
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		domain = host
	}
	for _, d := range YouTubeDomains {
		if domain == d {
			return true
		}
	}
	return false
}

// IsPlaylistURL checks if the URL carries a playlist parameter
func IsPlaylistURL(rawURL string) bool {
	return ExtractPlaylistID(rawURL) != ""
}

// ExtractPlaylistID extracts the playlist ID from various URL formats
func ExtractPlaylistID(rawURL string) string {
	if !strings.Contains(rawURL, PlaylistParam) {
		return ""
	}
	parts := strings.SplitN(rawURL, PlaylistParam, 2)
	playlistPart := parts[1]
	if strings.Contains(playlistPart, ParamSeparator) {
		playlistPart = strings.Split(playlistPart, ParamSeparator)[0]
	}
	return playlistPart
}

// VideoURL returns the watch URL for a video ID
func VideoURL(videoID string) string {
	return fmt.Sprintf(YouTubeVideoURLTemplate, videoID)
}
