package conduit

import (
	"slices"

	"github.com/go-gl/mathgl/mgl64"
)

// broadPhaseSlack grows the source AABB before the broad-phase test so boxes
// that touch exactly still reach the SAT test.
const broadPhaseSlack = 1e-3

// SpatialQuery finds the conduits and containers touching a box.
type SpatialQuery struct {
	view *view
	cfg  Config
}

func newSpatialQuery(v *view, cfg Config) *SpatialQuery {
	return &SpatialQuery{view: v, cfg: cfg}
}

// within reports whether b is inside radius of center.
func within(center, b mgl64.Vec3, radius float64) bool {
	return center.Sub(b).LenSqr() <= radius*radius
}

// FindConnectedConduits returns the conduits touching source, excluding the
// given id. Both boxes are expanded by the configured tolerance along their
// longest axis before the test.
func (q *SpatialQuery) FindConnectedConduits(source OBB, exclude EntityID) []EntityID {
	src := source.Expand(q.cfg.Tolerance)
	broad := src.AABB().Grow(broadPhaseSlack)

	var out []EntityID
	for _, id := range q.view.store.Nearby(source.Center, q.cfg.QueryCells) {
		if id == exclude || !q.view.isConduit(id) {
			continue
		}
		b, ok := q.view.bounds(id)
		if !ok || !within(source.Center, b.Center, q.cfg.SearchRadius) {
			continue
		}
		cand := b.Expand(q.cfg.Tolerance)
		if !broad.IntersectsWith(cand.AABB()) {
			continue
		}
		if Collides(src, cand) {
			out = append(out, id)
		}
	}
	return out
}

// FindConnectedContainer returns the container overlapping source whose centre
// is closest to source's. Containers are tested with their stored bounds and
// no tolerance. On equal distances the first container found wins.
func (q *SpatialQuery) FindConnectedContainer(source OBB, exclude ...EntityID) (EntityID, bool) {
	var (
		best     EntityID
		bestDist float64
		found    bool
	)
	for _, id := range q.view.store.Nearby(source.Center, q.cfg.QueryCells) {
		if slices.Contains(exclude, id) || !q.view.isContainer(id) {
			continue
		}
		b, ok := q.view.bounds(id)
		if !ok || !within(source.Center, b.Center, q.cfg.ContainerSearchRadius) {
			continue
		}
		if !Collides(source, b) {
			continue
		}
		d := source.Center.Sub(b.Center).Len()
		if !found || d < bestDist {
			best, bestDist, found = id, d, true
		}
	}
	return best, found
}

// FindContainerConduits returns the conduits overlapping a container's
// bounds, excluding the container itself.
func (q *SpatialQuery) FindContainerConduits(bounds OBB, container EntityID) []EntityID {
	var out []EntityID
	for _, id := range q.view.store.Nearby(bounds.Center, q.cfg.QueryCells) {
		if id == container || !q.view.isConduit(id) {
			continue
		}
		b, ok := q.view.bounds(id)
		if !ok || !within(bounds.Center, b.Center, q.cfg.ContainerSearchRadius) {
			continue
		}
		if Collides(bounds, b) {
			out = append(out, id)
		}
	}
	return out
}

// NearestConduit returns the conduit whose position is closest to pos within
// radius.
func (q *SpatialQuery) NearestConduit(pos mgl64.Vec3, radius float64) (EntityID, bool) {
	rings := max(q.cfg.QueryCells, int(radius/q.cfg.CellSize)+1)
	var (
		best     EntityID
		bestDist = radius * radius
		found    bool
	)
	for _, id := range q.view.store.Nearby(pos, rings) {
		if !q.view.isConduit(id) {
			continue
		}
		d := q.view.store.Position(id).Sub(pos).LenSqr()
		if d <= bestDist && (!found || d < bestDist) {
			best, bestDist, found = id, d, true
		}
	}
	return best, found
}
