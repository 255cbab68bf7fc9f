package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/amiaddur/wavepipe/internal/config"
	"github.com/amiaddur/wavepipe/internal/model"
	"github.com/amiaddur/wavepipe/internal/platform"
)

func newDownloadCommand(a *app) *cobra.Command {
	var format string
	var output string

	cmd := &cobra.Command{
		Use:   "download <url> [--format mp3|mp4] [--output DIR]",
		Short: "Download a single video as MP3 or MP4",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.applyLimits(cmd.Flags()); err != nil {
				return err
			}
			a.extendPath()

			if err := platform.CreateDirectoryIfNotExists(output); err != nil {
				return err
			}

			service := a.newService(a.newRunner())
			stderr := cmd.ErrOrStderr()
			service.SetUpdateCallback(func(job model.DownloadJob) {
				if job.Status == model.JobStatusDownloading {
					fmt.Fprintf(stderr, "\r%s  %3d%%  %-10s ETA %s", job.GetDisplayTitle(), job.Percent, job.Speed, job.GetETAString())
				}
			})

			artifact, err := service.Prepare(cmd.Context(), args[0], model.ParseFormat(format))
			if err != nil {
				return err
			}
			fmt.Fprintln(stderr)

			dest := filepath.Join(output, artifact.Filename)
			if err := moveFile(artifact.Path, dest); err != nil {
				artifact.Fail(err)
				return fmt.Errorf("failed to save %s: %w", dest, err)
			}
			artifact.Cleanup()

			fmt.Fprintln(cmd.OutOrStdout(), dest)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(model.FormatMP3), "Output format (mp3 or mp4)")
	cmd.Flags().StringVarP(&output, "output", "o", ".", "Output directory")
	cmd.Flags().Int(flagRetries, config.DefaultRetries, "Retries after a failed or timed out download (0-3)")
	return cmd
}

// moveFile renames src to dst, copying when they are on different devices
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}
