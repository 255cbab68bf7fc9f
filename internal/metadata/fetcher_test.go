package metadata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/amiaddur/wavepipe/internal/cache"
	"github.com/amiaddur/wavepipe/internal/download"
	"github.com/amiaddur/wavepipe/internal/download/downloadtest"
	"github.com/amiaddur/wavepipe/internal/model"
	"github.com/amiaddur/wavepipe/internal/platform"
)

const (
	videoURL    = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	playlistURL = "https://www.youtube.com/playlist?list=PL123"

	videoJSON = `{"title":"Never Gonna Give You Up","uploader":"Rick Astley","thumbnail":"https://i.ytimg.com/vi/dQw4w9WgXcQ/maxresdefault.jpg","duration":212,"upload_date":"20091025"}`
)

type stubLister struct {
	calls int
	info  *model.MediaInfo
}

func (s *stubLister) ListPlaylist(ctx context.Context, url string) (*model.MediaInfo, error) {
	s.calls++
	return s.info, nil
}

func TestFetchVideo(t *testing.T) {
	runner := downloadtest.NewRunner()
	runner.Info = videoJSON
	fetcher := NewFetcher(runner, nil, nil, Options{}, zerolog.Nop())

	info, err := fetcher.Fetch(context.Background(), videoURL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if info.Type != model.MediaTypeVideo {
		t.Errorf("Expected video, got %s", info.Type)
	}
	if info.Title != "Never Gonna Give You Up" || info.Author != "Rick Astley" {
		t.Errorf("Unexpected info %+v", info)
	}
	if info.Duration != "3:32" {
		t.Errorf("Expected duration 3:32, got %s", info.Duration)
	}
	if info.UploadDate != "2009-10-25" {
		t.Errorf("Expected upload date 2009-10-25, got %s", info.UploadDate)
	}

	calls := runner.Calls()
	if len(calls) != 1 || calls[0].Kind != download.KindInfo || calls[0].URL != videoURL {
		t.Errorf("Expected one info invocation, got %+v", calls)
	}
}

func TestFetchTrustsStdoutOnNonZeroExit(t *testing.T) {
	runner := downloadtest.NewRunner()
	runner.Handle(download.KindInfo, func(ctx context.Context, inv download.Invocation) (*download.Result, error) {
		return &download.Result{Stdout: videoJSON, ExitCode: 1, Stderr: "WARNING: something"}, nil
	})
	fetcher := NewFetcher(runner, nil, nil, Options{}, zerolog.Nop())

	info, err := fetcher.Fetch(context.Background(), videoURL)
	if err != nil {
		t.Fatalf("Expected stdout to be trusted, got %v", err)
	}
	if info.Title != "Never Gonna Give You Up" {
		t.Errorf("Unexpected title %s", info.Title)
	}
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		handler  downloadtest.HandlerFunc
		expected download.Failure
		check    func(error) bool
	}{
		{
			name:     "invalid url",
			url:      "javascript:alert(1)",
			expected: download.FailureInvalidURL,
		},
		{
			name:     "non-zero exit without output",
			url:      videoURL,
			handler:  downloadtest.Failure(1, "ERROR: Unsupported URL"),
			expected: download.FailureToolExit,
		},
		{
			name: "empty output",
			url:  videoURL,
			handler: func(ctx context.Context, inv download.Invocation) (*download.Result, error) {
				return &download.Result{}, nil
			},
			expected: download.FailureInternal,
			check:    func(err error) bool { return errors.Is(err, platform.ErrEmptyOutput) },
		},
		{
			name: "malformed json",
			url:  videoURL,
			handler: func(ctx context.Context, inv download.Invocation) (*download.Result, error) {
				return &download.Result{Stdout: "{not json"}, nil
			},
			expected: download.FailureInternal,
			check:    func(err error) bool { return errors.Is(err, platform.ErrInvalidOutput) },
		},
		{
			name:     "tool missing",
			url:      videoURL,
			handler:  downloadtest.Missing(),
			expected: download.FailureToolNotFound,
		},
		{
			name: "timeout",
			url:  videoURL,
			handler: func(ctx context.Context, inv download.Invocation) (*download.Result, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			},
			expected: download.FailureTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := downloadtest.NewRunner()
			if tt.handler != nil {
				runner.Handle(download.KindInfo, tt.handler)
			}
			fetcher := NewFetcher(runner, nil, nil, Options{Timeout: 20 * time.Millisecond}, zerolog.Nop())

			_, err := fetcher.Fetch(context.Background(), tt.url)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if got := download.Classify(err); got != tt.expected {
				t.Errorf("Expected %s, got %s (%v)", tt.expected, got, err)
			}
			if tt.check != nil && !tt.check(err) {
				t.Errorf("Unexpected error %v", err)
			}
		})
	}
}

func TestFetchCaches(t *testing.T) {
	runner := downloadtest.NewRunner()
	runner.Info = videoJSON
	store := cache.NewMemoryStore()
	fetcher := NewFetcher(runner, store, nil, Options{CacheTTL: time.Minute}, zerolog.Nop())

	for i := 0; i < 3; i++ {
		info, err := fetcher.Fetch(context.Background(), videoURL)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if info.Title != "Never Gonna Give You Up" {
			t.Errorf("Unexpected title %s", info.Title)
		}
	}

	if runner.Count(download.KindInfo) != 1 {
		t.Errorf("Expected a single yt-dlp call, got %d", runner.Count(download.KindInfo))
	}
}

func TestFetchCacheDisabled(t *testing.T) {
	runner := downloadtest.NewRunner()
	runner.Info = videoJSON
	store := cache.NewMemoryStore()
	fetcher := NewFetcher(runner, store, nil, Options{CacheTTL: 0}, zerolog.Nop())

	fetcher.Fetch(context.Background(), videoURL)
	fetcher.Fetch(context.Background(), videoURL)

	if runner.Count(download.KindInfo) != 2 {
		t.Errorf("Expected caching disabled, got %d calls", runner.Count(download.KindInfo))
	}
	if store.Len() != 0 {
		t.Errorf("Expected empty store, got %d", store.Len())
	}
}

func TestFetchNativePlaylistFallback(t *testing.T) {
	runner := downloadtest.NewRunner()
	runner.Handle(download.KindInfo, downloadtest.Missing())

	playlist := model.NewPlaylistInfo("Playlist", "YouTube", platform.DefaultThumbnail)
	playlist.AddTrack(model.Track{ID: "a", Title: "First", Duration: "00:00"})
	lister := &stubLister{info: playlist}
	fetcher := NewFetcher(runner, nil, lister, Options{}, zerolog.Nop())

	info, err := fetcher.Fetch(context.Background(), playlistURL)
	if err != nil {
		t.Fatalf("Expected fallback to succeed, got %v", err)
	}
	if lister.calls != 1 || info.TotalVideos != 1 {
		t.Errorf("Expected native listing, got %d calls and %+v", lister.calls, info)
	}

	if _, err := fetcher.Fetch(context.Background(), videoURL); download.Classify(err) != download.FailureToolNotFound {
		t.Errorf("Expected no fallback for single videos, got %v", err)
	}
	if lister.calls != 1 {
		t.Errorf("Expected lister not called for a video URL, got %d calls", lister.calls)
	}
}
