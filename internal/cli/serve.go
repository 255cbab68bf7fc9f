package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amiaddur/wavepipe/internal/config"
	"github.com/amiaddur/wavepipe/internal/download"
	"github.com/amiaddur/wavepipe/internal/server"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web UI and the download API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s := a.settings
			if err := a.applyLimits(cmd.Flags()); err != nil {
				return err
			}
			a.extendPath()

			runner := a.newRunner()
			service := a.newService(runner)
			service.StartSweeper(ctx, download.DefaultSweepInterval, s.GetSweepAge())

			fetcher, store := a.newFetcher(ctx, runner)
			defer store.Close()

			srv := server.New(service, fetcher, runner, a.newProber(), server.Options{
				Addr:            s.GetServerAddr(),
				ShutdownTimeout: s.GetShutdownTimeout(),
				RateLimit:       s.GetRateLimit(),
				RateBurst:       s.GetRateBurst(),
				TrustProxy:      s.GetTrustProxy(),
			}, a.logger)

			a.logger.Info().
				Str("version", Version).
				Int("max_parallel", s.GetMaxParallelDownloads()).
				Int("retries", s.GetRetries()).
				Str("temp_dir", service.TempDir()).
				Str("config", s.Viper().ConfigFileUsed()).
				Msg("starting wavepipe")
			return srv.ListenAndServe(ctx)
		},
	}

	flags := cmd.Flags()
	flags.StringP("addr", "a", config.DefaultServerAddr, "Listen address")
	bindFlag(a.v, config.KeyServerAddr, flags.Lookup("addr"))

	flags.IntP(flagMaxParallel, "p", config.DefaultMaxParallel, "Concurrent downloads (1-10)")
	flags.Int(flagRetries, config.DefaultRetries, "Retries after a failed or timed out download (0-3)")

	flags.Bool("verify", false, "Check downloaded files with ffprobe before streaming")
	bindFlag(a.v, config.KeyVerifyOutput, flags.Lookup("verify"))

	flags.Bool("trust-proxy", false, "Identify clients by X-Forwarded-For or X-Real-IP")
	bindFlag(a.v, config.KeyTrustProxy, flags.Lookup("trust-proxy"))

	return cmd
}
