package state

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/dropit-app/dropit/internal/api"
)

// fetchMarkers runs one ListMarkers for all concurrent callers of group.
// The request is detached from the first caller's cancellation, so a caller
// only stops waiting when its own ctx ends. The client's request timeout
// still bounds it.
func fetchMarkers(ctx context.Context, group *singleflight.Group, source api.MarkerSource) ([]api.Marker, bool, error) {
	ch := group.DoChan("markers", func() (any, error) {
		return source.ListMarkers(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Shared, r.Err
		}
		markers, _ := r.Val.([]api.Marker)
		return markers, r.Shared, nil
	}
}
