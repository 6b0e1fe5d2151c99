package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/config"
)

// NewSignCommand creates the sign command
func NewSignCommand(load loadFunc) *cobra.Command {
	var (
		width, height, quality, page int
		format, preset, baseURL      string
		seconds                      float64
	)

	cmd := &cobra.Command{
		Use:   "sign <asset-id>",
		Short: "Print a signed retrieval URL",
		Long: `Print a signed URL for a derivative of an asset. The URL carries the
configured API prefix; use --base-url to make it absolute.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Signing never touches storage or the catalog.
			cfg, err := load(config.WithStorageURL("memory://"), config.WithDatabase("memory", ""))
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			req := simplemedia.SignRequest{
				AssetID: args[0],
				Query:   simplemedia.Query{Width: width, Height: height, Quality: quality},
				Preset:  preset,
			}
			if format != "" {
				if req.Query.Format, err = simplemedia.ParseFormat(format); err != nil {
					return err
				}
			}
			if err := req.Query.Validate(cfg.MaxDimension); err != nil {
				return err
			}
			if cmd.Flags().Changed("time") || cmd.Flags().Changed("page") {
				if seconds < 0 || page < 1 {
					return fmt.Errorf("%w: time must be >= 0 and page >= 1", simplemedia.ErrInvalidRequest)
				}
				req.Media = &simplemedia.MediaParam{Time: seconds, Page: page}
			}

			svc, cleanup, err := cfg.BuildService(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to build service: %w", err)
			}
			defer cleanup()

			signed, err := svc.SignURL(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), baseURL+signed)
			return nil
		},
	}

	cmd.Flags().IntVar(&width, "width", 0, "target width in pixels")
	cmd.Flags().IntVar(&height, "height", 0, "target height in pixels")
	cmd.Flags().StringVar(&format, "format", "", "output format: jpeg, png or webp")
	cmd.Flags().IntVar(&quality, "quality", 0, "output quality 1-100")
	cmd.Flags().StringVar(&preset, "preset", "", "preset name")
	cmd.Flags().Float64Var(&seconds, "time", 0, "video frame offset in seconds")
	cmd.Flags().IntVar(&page, "page", 1, "document page")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "scheme and host prepended to the URL, e.g. https://media.example.com")

	return cmd
}
