package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/amiaddur/wavepipe/internal/download"
)

const toolVersionTimeout = 5 * time.Second

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the wavepipe, yt-dlp and ffmpeg versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), toolVersionTimeout)
			defer cancel()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "wavepipe %s\n", Version)

			ytdlp := "not found"
			if res, err := a.newRunner().Run(ctx, download.Invocation{Kind: download.KindVersion}); err == nil && res.ExitCode == 0 {
				ytdlp = strings.TrimSpace(res.Stdout)
			}
			fmt.Fprintf(out, "yt-dlp   %s\n", ytdlp)

			ffmpeg, err := a.newProber().FFmpegVersion(ctx)
			if err != nil {
				ffmpeg = "not found"
			}
			fmt.Fprintf(out, "ffmpeg   %s\n", ffmpeg)
			return nil
		},
	}
}
