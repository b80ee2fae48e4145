package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dropit-app/dropit/internal/api"
	"github.com/dropit-app/dropit/internal/geo"
)

// outputOptions control how marker listings are printed.
type outputOptions struct {
	json bool
	from string
	// origin is the distance reference when --from is unset.
	origin *geo.Point
}

func (o *outputOptions) markers(w io.Writer, markers []api.Marker) error {
	if o.json {
		return writeJSON(w, markers)
	}
	origin, err := o.reference()
	if err != nil {
		return err
	}
	if len(markers) == 0 {
		fmt.Fprintln(w, "No markers found.")
		return nil
	}
	for i, m := range markers {
		writeMarker(w, i+1, m, origin)
	}
	return nil
}

func (o *outputOptions) page(w io.Writer, page api.Page[api.Marker]) error {
	if o.json {
		return writeJSON(w, page)
	}
	if err := o.markers(w, page.Content); err != nil {
		return err
	}
	fmt.Fprintf(w, "page %d/%d, %d total\n", page.Page+1, max(page.TotalPages, 1), page.TotalElements)
	return nil
}

func (o *outputOptions) reference() (*geo.Point, error) {
	if o.from == "" {
		return o.origin, nil
	}
	p, err := parseLatLng(o.from)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func writeMarker(w io.Writer, n int, m api.Marker, origin *geo.Point) {
	title := m.Title
	if strings.TrimSpace(title) == "" {
		title = "(untitled)"
	}
	fmt.Fprintf(w, "%d. %s %s  #%d\n", n, categoryTag(m.Category), title, m.ID)

	var meta []string
	if p, ok := m.Point(); ok {
		meta = append(meta, fmt.Sprintf("%.5f,%.5f", p.Lat, p.Lng))
		if origin != nil {
			meta = append(meta, geo.FormatDistance(geo.Distance(*origin, p)))
		}
	} else {
		meta = append(meta, "no position")
	}
	if m.CreatedByName != "" {
		meta = append(meta, "by "+m.CreatedByName)
	}
	fmt.Fprintf(w, "   %s\n", strings.Join(meta, "  "))
	if m.Description != "" {
		fmt.Fprintf(w, "   %s\n", truncate(m.Description, 100))
	}
	fmt.Fprintln(w)
}

func categoryTag(category string) string {
	switch category {
	case "clothes":
		return "[C]"
	case "shoes":
		return "[S]"
	case "bags":
		return "[B]"
	default:
		return "[?]"
	}
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
