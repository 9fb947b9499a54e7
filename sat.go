package conduit

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// degenerateAxisSqr is the squared length below which a cross-product axis is
// treated as degenerate. Such axes come from (near) parallel edges and cannot
// separate the boxes.
const degenerateAxisSqr = 1e-3

// Collides reports whether two oriented boxes overlap, using the separating
// axis theorem over the 15 candidate axes: the 3 face normals of each box and
// the 9 cross products of their edges. Touching boxes collide.
func Collides(a, b OBB) bool {
	axesA, axesB := a.Axes(), b.Axes()

	for _, axis := range axesA {
		if !overlapOnAxis(a, axesA, b, axesB, axis) {
			return false
		}
	}
	for _, axis := range axesB {
		if !overlapOnAxis(a, axesA, b, axesB, axis) {
			return false
		}
	}
	for i := range 3 {
		for j := range 3 {
			axis := axesA[i].Cross(axesB[j])
			if axis.LenSqr() < degenerateAxisSqr {
				continue
			}
			if !overlapOnAxis(a, axesA, b, axesB, axis.Normalize()) {
				return false
			}
		}
	}
	return true
}

// overlapOnAxis checks if the projections of a and b onto axis overlap.
func overlapOnAxis(a OBB, axesA [3]mgl64.Vec3, b OBB, axesB [3]mgl64.Vec3, axis mgl64.Vec3) bool {
	dist := math.Abs(a.Center.Dot(axis) - b.Center.Dot(axis))
	return dist <= projectedExtent(a.HalfExtents, axesA, axis)+projectedExtent(b.HalfExtents, axesB, axis)
}

// projectedExtent returns the half-length of a box's projection onto axis.
func projectedExtent(half mgl64.Vec3, axes [3]mgl64.Vec3, axis mgl64.Vec3) float64 {
	return half[0]*math.Abs(axis.Dot(axes[0])) +
		half[1]*math.Abs(axis.Dot(axes[1])) +
		half[2]*math.Abs(axis.Dot(axes[2]))
}
