package conduit

import (
	"math"
	"strconv"
	"strings"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/go-gl/mathgl/mgl64"
)

// OBB is an oriented bounding box: a box of the given half-extents centred on
// Center and rotated by Rotation.
//
// Bounds are computed once when a conduit or container is placed and stored
// as text on the entity. The zero value has no extent and never takes part in
// collision tests.
type OBB struct {
	Center      mgl64.Vec3
	Rotation    mgl64.Quat
	HalfExtents mgl64.Vec3
}

// NewOBB creates an OBB.
func NewOBB(center mgl64.Vec3, rotation mgl64.Quat, halfExtents mgl64.Vec3) OBB {
	return OBB{Center: center, Rotation: rotation, HalfExtents: halfExtents}
}

// OBBFromLocal creates an OBB from bounds expressed in the local space of an
// entity at the given position and rotation.
func OBBFromLocal(localCenter, halfExtents, position mgl64.Vec3, rotation mgl64.Quat) OBB {
	return OBB{
		Center:      position.Add(unitQuat(rotation).Rotate(localCenter)),
		Rotation:    rotation,
		HalfExtents: halfExtents,
	}
}

// unitQuat returns q normalised, or the identity if q has no length.
func unitQuat(q mgl64.Quat) mgl64.Quat {
	if q.Len() < 1e-9 {
		return mgl64.QuatIdent()
	}
	return q.Normalize()
}

// Axes returns the box's right, up and forward unit axes.
func (b OBB) Axes() [3]mgl64.Vec3 {
	q := unitQuat(b.Rotation)
	return [3]mgl64.Vec3{
		q.Rotate(mgl64.Vec3{1, 0, 0}),
		q.Rotate(mgl64.Vec3{0, 1, 0}),
		q.Rotate(mgl64.Vec3{0, 0, 1}),
	}
}

// RightAxis returns the box's local X axis in world space.
func (b OBB) RightAxis() mgl64.Vec3 { return b.Axes()[0] }

// UpAxis returns the box's local Y axis in world space.
func (b OBB) UpAxis() mgl64.Vec3 { return b.Axes()[1] }

// ForwardAxis returns the box's local Z axis in world space.
func (b OBB) ForwardAxis() mgl64.Vec3 { return b.Axes()[2] }

// Empty returns true if the box has no extent on any axis.
func (b OBB) Empty() bool {
	return b.HalfExtents[0] == 0 && b.HalfExtents[1] == 0 && b.HalfExtents[2] == 0
}

// Expand returns a copy of the box with tolerance added to its longest
// half-extent. On ties the earlier axis (X, then Y) wins.
func (b OBB) Expand(tolerance float64) OBB {
	h := b.HalfExtents
	switch {
	case h[0] >= h[1] && h[0] >= h[2]:
		h[0] += tolerance
	case h[1] >= h[0] && h[1] >= h[2]:
		h[1] += tolerance
	default:
		h[2] += tolerance
	}
	b.HalfExtents = h
	return b
}

// AABB returns the smallest axis-aligned box enclosing b.
func (b OBB) AABB() cube.BBox {
	axes := b.Axes()
	var ext mgl64.Vec3
	for i := range 3 {
		ext[i] = math.Abs(axes[0][i])*b.HalfExtents[0] +
			math.Abs(axes[1][i])*b.HalfExtents[1] +
			math.Abs(axes[2][i])*b.HalfExtents[2]
	}
	lo, hi := b.Center.Sub(ext), b.Center.Add(ext)
	return cube.Box(lo[0], lo[1], lo[2], hi[0], hi[1], hi[2])
}

// String returns the text record for the box, see Serialize.
func (b OBB) String() string {
	return b.Serialize()
}

// Serialize encodes the box as "cx,cy,cz|qx,qy,qz,qw|hx,hy,hz".
func (b OBB) Serialize() string {
	var sb strings.Builder
	writeFloats(&sb, b.Center[0], b.Center[1], b.Center[2])
	sb.WriteByte('|')
	writeFloats(&sb, b.Rotation.V[0], b.Rotation.V[1], b.Rotation.V[2], b.Rotation.W)
	sb.WriteByte('|')
	writeFloats(&sb, b.HalfExtents[0], b.HalfExtents[1], b.HalfExtents[2])
	return sb.String()
}

func writeFloats(sb *strings.Builder, fs ...float64) {
	for i, f := range fs {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	}
}

// ParseOBB decodes a record produced by Serialize.
// A record with the wrong shape, an unparsable or non-finite number, or a
// negative half-extent yields the zero OBB and false.
func ParseOBB(s string) (OBB, bool) {
	groups := strings.Split(s, "|")
	if len(groups) != 3 {
		return OBB{}, false
	}
	c, ok := parseFloats(groups[0], 3)
	if !ok {
		return OBB{}, false
	}
	q, ok := parseFloats(groups[1], 4)
	if !ok {
		return OBB{}, false
	}
	h, ok := parseFloats(groups[2], 3)
	if !ok {
		return OBB{}, false
	}
	if h[0] < 0 || h[1] < 0 || h[2] < 0 {
		return OBB{}, false
	}
	return OBB{
		Center:      mgl64.Vec3{c[0], c[1], c[2]},
		Rotation:    mgl64.Quat{W: q[3], V: mgl64.Vec3{q[0], q[1], q[2]}},
		HalfExtents: mgl64.Vec3{h[0], h[1], h[2]},
	}, true
}

func parseFloats(s string, n int) ([]float64, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, false
	}
	out := make([]float64, n)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}
