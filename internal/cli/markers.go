package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dropit-app/dropit/internal/api"
	"github.com/dropit-app/dropit/internal/geo"
)

// markerQuery fetches markers using the command's services.
type markerQuery func(ctx context.Context, s services) ([]api.Marker, error)

func newMarkersCommand(opts *rootOptions) *cobra.Command {
	out := &outputOptions{}

	cmd := &cobra.Command{
		Use:     "markers",
		Aliases: []string{"m"},
		Short:   "Query collection bins",
	}
	cmd.PersistentFlags().BoolVarP(&out.json, "json", "j", false, "output as JSON")
	cmd.PersistentFlags().StringVar(&out.from, "from", "", "show distances from lat,lng")

	cmd.AddCommand(
		newMarkersListCommand(opts, out),
		newMarkersShowCommand(opts, out),
		newMarkersQueryCommand(opts, out, "search <keyword>", "Search titles and descriptions", cobra.MinimumNArgs(1),
			func(args []string) markerQuery {
				keyword := strings.Join(args, " ")
				return func(ctx context.Context, s services) ([]api.Marker, error) {
					return s.client.SearchMarkers(ctx, keyword)
				}
			}),
		newMarkersQueryCommand(opts, out, "category <name>", "List bins in a category", cobra.ExactArgs(1),
			func(args []string) markerQuery {
				return func(ctx context.Context, s services) ([]api.Marker, error) {
					return s.client.MarkersByCategory(ctx, args[0])
				}
			}),
		newMarkersQueryCommand(opts, out, "mine", "List bins you registered", cobra.NoArgs,
			func([]string) markerQuery {
				return func(ctx context.Context, s services) ([]api.Marker, error) {
					return s.client.MyMarkers(ctx)
				}
			}),
		newMarkersAroundCommand(opts, out, "nearby", "List bins within a radius of a point"),
		newMarkersAroundCommand(opts, out, "area", "List bins inside the box around a point"),
		newMarkersAddCommand(opts, out),
		newMarkersDeleteCommand(opts),
	)
	return cmd
}

func newMarkersQueryCommand(opts *rootOptions, out *outputOptions, use, short string, args cobra.PositionalArgs, build func([]string) markerQuery) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := build(args)
			return withServices(cmd, opts, func(s services) error {
				markers, err := query(cmd.Context(), s)
				if err != nil {
					return err
				}
				return out.markers(cmd.OutOrStdout(), markers)
			})
		},
	}
}

func newMarkersListCommand(opts *rootOptions, out *outputOptions) *cobra.Command {
	var q api.PageQuery

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every bin, or one page of them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paged := cmd.Flags().Changed("page") || cmd.Flags().Changed("size")
			return withServices(cmd, opts, func(s services) error {
				if !paged {
					markers, err := s.client.ListMarkers(cmd.Context())
					if err != nil {
						return err
					}
					return out.markers(cmd.OutOrStdout(), markers)
				}
				page, err := s.client.MarkersPaged(cmd.Context(), q)
				if err != nil {
					return err
				}
				return out.page(cmd.OutOrStdout(), page)
			})
		},
	}

	cmd.Flags().IntVar(&q.Page, "page", 0, "page number, from 0")
	cmd.Flags().IntVar(&q.Size, "size", 10, "page size")
	cmd.Flags().StringVar(&q.SortBy, "sort", "createdAt", "sort field")
	cmd.Flags().StringVar(&q.SortDir, "dir", "desc", "sort direction: asc or desc")
	return cmd
}

func newMarkersShowCommand(opts *rootOptions, out *outputOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one bin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withServices(cmd, opts, func(s services) error {
				m, err := s.client.GetMarker(cmd.Context(), id)
				if err != nil {
					return err
				}
				return out.markers(cmd.OutOrStdout(), []api.Marker{*m})
			})
		},
	}
}

// newMarkersAroundCommand builds nearby and area, which differ only in the
// endpoint used.
func newMarkersAroundCommand(opts *rootOptions, out *outputOptions, use, short string) *cobra.Command {
	var (
		at     string
		radius float64
	)

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd, opts, func(s services) error {
				center := geo.Point{Lat: s.cfg.DefaultLat, Lng: s.cfg.DefaultLng}
				if at != "" {
					p, err := parseLatLng(at)
					if err != nil {
						return err
					}
					center = p
				}
				if !cmd.Flags().Changed("radius") {
					radius = s.cfg.NearbyRadiusKm
				}

				var (
					markers []api.Marker
					err     error
				)
				if use == "area" {
					markers, err = s.client.MarkersInArea(cmd.Context(), geo.Around(center, radius))
				} else {
					markers, err = s.client.MarkersNearby(cmd.Context(), center, radius)
				}
				if err != nil {
					return err
				}
				if out.from == "" {
					out.origin = &center
				}
				return out.markers(cmd.OutOrStdout(), markers)
			})
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "center as lat,lng (default: configured map center)")
	cmd.Flags().Float64VarP(&radius, "radius", "r", 0, "radius in km (default: nearby_radius_km)")
	return cmd
}

func newMarkersAddCommand(opts *rootOptions, out *outputOptions) *cobra.Command {
	var (
		at string
		in api.MarkerInput
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new bin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := parseLatLng(at)
			if err != nil {
				return err
			}
			in.Latitude, in.Longitude = p.Lat, p.Lng
			return withServices(cmd, opts, func(s services) error {
				m, err := s.client.CreateMarker(cmd.Context(), in)
				if err != nil {
					return err
				}
				return out.markers(cmd.OutOrStdout(), []api.Marker{*m})
			})
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "position as lat,lng")
	cmd.Flags().StringVarP(&in.Title, "title", "t", "", "short title")
	cmd.Flags().StringVarP(&in.Description, "description", "d", "", "where exactly the bin is")
	cmd.Flags().StringVarP(&in.Category, "category", "c", "", "clothes, shoes, bags or etc")
	_ = cmd.MarkFlagRequired("at")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func newMarkersDeleteCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a bin you registered",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withServices(cmd, opts, func(s services) error {
				if err := s.client.DeleteMarker(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted marker %d.\n", id)
				return nil
			})
		},
	}
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid marker id %q", value)
	}
	return id, nil
}
