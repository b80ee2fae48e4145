package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropit-app/dropit/internal/app"
	"github.com/dropit-app/dropit/internal/geo"
)

// rootOptions holds the persistent flags shared by every command. The
// api-base, data-dir and log-level flags are read by config.Load through
// the command's flag set.
type rootOptions struct {
	configPath string
}

// NewRootCommand builds the dropit command tree. Without a subcommand it
// starts the TUI.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	var (
		at          string
		healthEvery time.Duration
		memoryStore bool
	)

	cmd := &cobra.Command{
		Use:   "dropit",
		Short: "Find clothing collection bins near you",
		Long: "DropIt browses clothing, shoe and bag collection bins on a terminal map.\n" +
			"Run without a subcommand to start the interactive client.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appOpts := app.Options{
				ConfigPath:    opts.configPath,
				Flags:         cmd.Flags(),
				HealthEvery:   healthEvery,
				MemoryStorage: memoryStore,
			}
			if at != "" {
				p, err := parseLatLng(at)
				if err != nil {
					return err
				}
				appOpts.Location = &p
			}
			return app.Run(cmd.Context(), appOpts)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (default ~/.config/dropit/config.toml)")
	pf.String("api-base", "", "backend API base URL (default http://localhost:8080/api)")
	pf.String("data-dir", "", "local data directory (default ~/.local/share/dropit)")
	pf.String("log-level", "", "log level: debug, info, warn, error")

	cmd.Flags().StringVar(&at, "at", "", "start-up location as lat,lng")
	cmd.Flags().DurationVar(&healthEvery, "health-interval", 0, "backend health check interval (default 1m)")
	cmd.Flags().BoolVar(&memoryStore, "ephemeral", false, "keep session, bookmarks and view state in memory only")

	cmd.AddCommand(
		newLoginCommand(opts),
		newSignupCommand(opts),
		newLogoutCommand(opts),
		newWhoamiCommand(opts),
		newMarkersCommand(opts),
		newProbeCommand(opts),
		newMockServerCommand(),
	)
	return cmd
}

// parseLatLng parses "lat,lng" into a valid point.
func parseLatLng(value string) (geo.Point, error) {
	latText, lngText, ok := strings.Cut(value, ",")
	if !ok {
		return geo.Point{}, fmt.Errorf("invalid location %q: want lat,lng", value)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latText), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("invalid latitude %q", latText)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngText), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("invalid longitude %q", lngText)
	}
	p := geo.Point{Lat: lat, Lng: lng}
	if !geo.Valid(p) {
		return geo.Point{}, fmt.Errorf("location %q is out of range", value)
	}
	return p, nil
}
