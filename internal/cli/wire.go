package cli

import (
	"context"

	"github.com/amiaddur/wavepipe/internal/cache"
	"github.com/amiaddur/wavepipe/internal/download"
	"github.com/amiaddur/wavepipe/internal/media"
	"github.com/amiaddur/wavepipe/internal/metadata"
	"github.com/amiaddur/wavepipe/internal/platform"
)

func (a *app) newRunner() download.Runner {
	if a.runner != nil {
		return a.runner
	}
	s := a.settings
	return download.NewToolRunner(s.GetYtdlpPath(), s.GetYtdlpSearchDirs(), s.GetUserAgent(), a.logger)
}

func (a *app) newProber() *media.Prober {
	s := a.settings
	return media.NewProber(s.GetFFprobePath(), s.GetYtdlpSearchDirs())
}

func (a *app) newService(runner download.Runner) *download.Service {
	s := a.settings
	service := download.NewService(runner, download.Options{
		TempDir:         s.GetTempDir(),
		TitleTimeout:    s.GetTitleTimeout(),
		DownloadTimeout: s.GetDownloadTimeout(),
		MaxParallel:     s.GetMaxParallelDownloads(),
		Retries:         s.GetRetries(),
		AllowedHosts:    s.GetAllowedHosts(),
	}, a.logger)

	if s.GetVerifyOutput() {
		service.SetVerifier(a.newProber())
	}
	return service
}

// newFetcher returns a metadata fetcher and the cache it owns. The caller
// closes the cache.
func (a *app) newFetcher(ctx context.Context, runner download.Runner) (*metadata.Fetcher, cache.Store) {
	s := a.settings
	store := cache.New(ctx, cache.RedisOptions{
		Addr:     s.GetRedisAddr(),
		Password: s.GetRedisPassword(),
		DB:       s.GetRedisDB(),
	}, a.logger)

	lister := platform.NewNativePlaylistLister()
	lister.SetTimeout(s.GetInfoTimeout())

	fetcher := metadata.NewFetcher(runner, store, lister, metadata.Options{
		Timeout:      s.GetInfoTimeout(),
		CacheTTL:     s.GetCacheTTL(),
		AllowedHosts: s.GetAllowedHosts(),
	}, a.logger)
	return fetcher, store
}

// extendPath makes tools installed next to yt-dlp visible to it
func (a *app) extendPath() {
	if err := platform.ExtendPath(a.settings.GetYtdlpSearchDirs()); err != nil {
		a.logger.Warn().Err(err).Msg("failed to extend PATH")
	}
}
