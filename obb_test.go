package conduit

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestOBBSerializeRoundTrip(t *testing.T) {
	b := NewOBB(
		mgl64.Vec3{1.5, -2.25, 1e-7},
		mgl64.QuatRotate(math.Pi/3, mgl64.Vec3{0, 1, 0}),
		mgl64.Vec3{0.1, 2, 0.333},
	)
	got, ok := ParseOBB(b.Serialize())
	if !ok {
		t.Fatalf("ParseOBB(%q) failed", b.Serialize())
	}
	if got != b {
		t.Fatalf("round trip mismatch: got %v want %v", got, b)
	}
}

func TestParseOBBMalformed(t *testing.T) {
	cases := []string{
		"",
		"1,2,3|0,0,0,1",
		"1,2,3|0,0,0,1|1,1,1|0",
		"1,2|0,0,0,1|1,1,1",
		"1,2,3|0,0,1|1,1,1",
		"a,2,3|0,0,0,1|1,1,1",
		"1,2,3|0,0,0,1|1,1,-1",
		"1,2,3|0,0,0,1|NaN,1,1",
		"1,2,3|0,0,0,1|1,+Inf,1",
	}
	for _, s := range cases {
		b, ok := ParseOBB(s)
		if ok {
			t.Fatalf("ParseOBB(%q) succeeded", s)
		}
		if !b.Empty() {
			t.Fatalf("ParseOBB(%q) = %v, want zero box", s, b)
		}
	}
}

func TestOBBExpandLongestAxis(t *testing.T) {
	cases := []struct {
		name string
		half mgl64.Vec3
		want mgl64.Vec3
	}{
		{"x", mgl64.Vec3{1, 0.5, 0.2}, mgl64.Vec3{1.5, 0.5, 0.2}},
		{"y", mgl64.Vec3{0.2, 1, 0.5}, mgl64.Vec3{0.2, 1.5, 0.5}},
		{"z", mgl64.Vec3{0.2, 0.5, 1}, mgl64.Vec3{0.2, 0.5, 1.5}},
		{"tie xy", mgl64.Vec3{1, 1, 0.5}, mgl64.Vec3{1.5, 1, 0.5}},
		{"tie yz", mgl64.Vec3{0.5, 1, 1}, mgl64.Vec3{0.5, 1.5, 1}},
		{"cube", mgl64.Vec3{1, 1, 1}, mgl64.Vec3{1.5, 1, 1}},
	}
	for _, c := range cases {
		got := NewOBB(mgl64.Vec3{}, mgl64.QuatIdent(), c.half).Expand(0.5).HalfExtents
		if got != c.want {
			t.Fatalf("%s: Expand = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestOBBAxesAndAABB(t *testing.T) {
	rot := mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0})
	b := NewOBB(mgl64.Vec3{1, 0, 0}, rot, mgl64.Vec3{2, 0.5, 0.25})

	if !near(b.RightAxis(), mgl64.Vec3{0, 0, -1}) {
		t.Fatalf("right axis = %v", b.RightAxis())
	}
	if !near(b.UpAxis(), mgl64.Vec3{0, 1, 0}) {
		t.Fatalf("up axis = %v", b.UpAxis())
	}

	box := b.AABB()
	wantMin, wantMax := mgl64.Vec3{0.75, -0.5, -2}, mgl64.Vec3{1.25, 0.5, 2}
	if !near(box.Min(), wantMin) || !near(box.Max(), wantMax) {
		t.Fatalf("AABB = %v..%v, want %v..%v", box.Min(), box.Max(), wantMin, wantMax)
	}
}

func TestOBBZeroRotationIsIdentity(t *testing.T) {
	b := OBB{HalfExtents: mgl64.Vec3{1, 1, 1}}
	axes := b.Axes()
	if axes[0] != (mgl64.Vec3{1, 0, 0}) || axes[1] != (mgl64.Vec3{0, 1, 0}) || axes[2] != (mgl64.Vec3{0, 0, 1}) {
		t.Fatalf("axes of zero quaternion = %v", axes)
	}
}

func TestOBBFromLocal(t *testing.T) {
	rot := mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1})
	b := OBBFromLocal(mgl64.Vec3{1, 0, 0}, mgl64.Vec3{1, 0.1, 0.1}, mgl64.Vec3{10, 0, 0}, rot)
	if !near(b.Center, mgl64.Vec3{10, 1, 0}) {
		t.Fatalf("center = %v", b.Center)
	}
}
