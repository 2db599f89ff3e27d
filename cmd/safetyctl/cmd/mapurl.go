package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/notifyhub/safety-dispatch/internal/maplink"
)

func newMapURLCmd() *cobra.Command {
	var (
		lat, lng      float64
		width, height int
		apiKey        string
	)
	c := &cobra.Command{
		Use:   "map-url",
		Short: "Print the map links included in notifications for a position",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lng") {
				return fmt.Errorf("both --lat and --lng are required")
			}
			static, _ := maplink.NewBuilder(apiKey).StaticMapURL(&lat, &lng, width, height)
			return printJSON(cmd.OutOrStdout(), map[string]string{
				"static_map":  static,
				"google_maps": maplink.GoogleMapsURL(lat, lng),
				"here_wego":   maplink.HereWeGoURL(lat, lng),
				"coordinates": maplink.Coordinates(lat, lng),
			})
		},
	}
	c.Flags().Float64Var(&lat, "lat", 0, "latitude")
	c.Flags().Float64Var(&lng, "lng", 0, "longitude")
	c.Flags().IntVar(&width, "width", 0, "static map width in pixels (default 400)")
	c.Flags().IntVar(&height, "height", 0, "static map height in pixels (default 300)")
	c.Flags().StringVar(&apiKey, "here-key", "", "HERE API key")
	return c
}
