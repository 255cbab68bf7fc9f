package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amiaddur/wavepipe/internal/platform"
)

func newInfoCommand(a *app) *cobra.Command {
	var urls bool

	cmd := &cobra.Command{
		Use:   "info <url> [--urls]",
		Short: "Print the metadata of a video or playlist as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.extendPath()

			fetcher, store := a.newFetcher(cmd.Context(), a.newRunner())
			defer store.Close()

			info, err := fetcher.Fetch(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if urls {
				if !info.IsPlaylist() {
					_, err := fmt.Fprintln(out, args[0])
					return err
				}
				for _, track := range info.Tracks {
					if _, err := fmt.Fprintln(out, platform.VideoURL(track.ID)); err != nil {
						return err
					}
				}
				return nil
			}

			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		},
	}

	cmd.Flags().BoolVar(&urls, "urls", false, "Print one watch URL per playlist entry instead of JSON")
	return cmd
}
