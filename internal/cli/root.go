// Package cli defines the wavepipe command tree.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/amiaddur/wavepipe/internal/config"
	"github.com/amiaddur/wavepipe/internal/download"
	"github.com/amiaddur/wavepipe/internal/logging"
)

// Version is set at build time with -ldflags "-X ...cli.Version=..."
var Version = "dev"

// app carries state shared by every subcommand once the root pre-run has
// loaded settings
type app struct {
	v          *viper.Viper
	configFile string
	settings   *config.Settings
	logger     zerolog.Logger
	closer     io.Closer

	// runner replaces the yt-dlp runner when set
	runner download.Runner
}

// Execute runs the command tree against os.Args
func Execute() error {
	if err := NewRootCommand(viper.New()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

// NewRootCommand builds the command tree with flags bound into v
func NewRootCommand(v *viper.Viper) *cobra.Command {
	return newRootCommand(&app{v: v})
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "wavepipe",
		Short:         "WavePipe downloads audio and video through yt-dlp.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a.closer != nil {
				_ = a.closer.Close()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "Config file (yaml, toml or json)")

	flags.String("log-level", config.DefaultLogLevel, "Log level (trace, debug, info, warn, error)")
	bindFlag(a.v, config.KeyLogLevel, flags.Lookup("log-level"))

	flags.String("log-format", config.DefaultLogFormat, "Log format (auto, json, console)")
	bindFlag(a.v, config.KeyLogFormat, flags.Lookup("log-format"))

	flags.String("log-file", "", "Also write logs to this file, rotated")
	bindFlag(a.v, config.KeyLogFile, flags.Lookup("log-file"))

	root.AddCommand(
		newServeCommand(a),
		newInfoCommand(a),
		newDownloadCommand(a),
		newVersionCommand(a),
	)
	return root
}

// load reads settings and sets up logging
func (a *app) load() error {
	settings, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	a.settings = settings

	logger, closer, err := logging.New(logging.Options{
		Level:  settings.GetLogLevel(),
		Format: settings.GetLogFormat(),
		File:   settings.GetLogFile(),
	})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	a.logger = logger
	a.closer = closer
	return nil
}
