// Package metadata answers /api/info: it runs yt-dlp in flat playlist mode,
// converts the JSON it prints and caches the result.
package metadata

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/amiaddur/wavepipe/internal/cache"
	"github.com/amiaddur/wavepipe/internal/download"
	"github.com/amiaddur/wavepipe/internal/logging"
	"github.com/amiaddur/wavepipe/internal/model"
	"github.com/amiaddur/wavepipe/internal/platform"
)

// Fetcher defaults
const (
	DefaultInfoTimeout = 20 * time.Second
	cacheKeyPrefix     = "info:"
)

// PlaylistLister lists a playlist without the yt-dlp binary
type PlaylistLister interface {
	ListPlaylist(ctx context.Context, url string) (*model.MediaInfo, error)
}

// Options configures a Fetcher
type Options struct {
	Timeout      time.Duration
	CacheTTL     time.Duration
	AllowedHosts []string
}

// Fetcher resolves media metadata
type Fetcher struct {
	runner   download.Runner
	store    cache.Store
	fallback PlaylistLister
	opts     Options
	logger   zerolog.Logger
}

// NewFetcher creates a fetcher. store and fallback may be nil.
func NewFetcher(runner download.Runner, store cache.Store, fallback PlaylistLister, opts Options, logger zerolog.Logger) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultInfoTimeout
	}
	return &Fetcher{
		runner:   runner,
		store:    store,
		fallback: fallback,
		opts:     opts,
		logger:   logger,
	}
}

// Fetch returns the metadata of a video or playlist
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*model.MediaInfo, error) {
	parsed, err := platform.ValidateURL(rawURL, f.opts.AllowedHosts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", download.ErrInvalidURL, err)
	}
	url := parsed.String()
	logger := f.logger.With().Str(logging.FieldURL, url).Logger()

	key := cacheKey(url)
	if info, ok := f.cached(ctx, logger, key); ok {
		return info, nil
	}

	info, err := f.fetch(ctx, url)
	if err != nil && download.Classify(err) == download.FailureToolNotFound && f.fallback != nil && platform.IsPlaylistURL(url) {
		logger.Warn().Err(err).Msg("yt-dlp unavailable, listing playlist natively")
		info, err = f.fallback.ListPlaylist(ctx, url)
	}
	if err != nil {
		return nil, err
	}

	f.remember(ctx, logger, key, info)
	return info, nil
}

func (f *Fetcher) fetch(ctx context.Context, url string) (*model.MediaInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	res, err := f.runner.Run(ctx, download.Invocation{Kind: download.KindInfo, URL: url})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", download.ErrTimeout, f.opts.Timeout)
		}
		return nil, err
	}

	// Stdout is trusted even when yt-dlp exits non-zero.
	if strings.TrimSpace(res.Stdout) == "" {
		if res.ExitCode != 0 {
			return nil, &download.ToolError{Op: "info", ExitCode: res.ExitCode, Stderr: res.Stderr}
		}
		return nil, platform.ErrEmptyOutput
	}

	info, err := platform.ParseMediaInfo([]byte(res.Stdout))
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (f *Fetcher) cached(ctx context.Context, logger zerolog.Logger, key string) (*model.MediaInfo, bool) {
	if f.store == nil || f.opts.CacheTTL <= 0 {
		return nil, false
	}

	data, err := f.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			logger.Warn().Err(err).Msg("metadata cache read failed")
		}
		return nil, false
	}

	var info model.MediaInfo
	if err := json.Unmarshal(data, &info); err != nil {
		logger.Warn().Err(err).Msg("discarding corrupt cache entry")
		return nil, false
	}
	logger.Debug().Msg("metadata cache hit")
	return &info, true
}

func (f *Fetcher) remember(ctx context.Context, logger zerolog.Logger, key string, info *model.MediaInfo) {
	if f.store == nil || f.opts.CacheTTL <= 0 {
		return
	}

	data, err := json.Marshal(info)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to encode metadata for cache")
		return
	}
	if err := f.store.Set(ctx, key, data, f.opts.CacheTTL); err != nil {
		logger.Warn().Err(err).Msg("metadata cache write failed")
	}
}

func cacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}
