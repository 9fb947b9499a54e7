package conduit

import (
	"math/rand/v2"
	"testing"
)

// runs returns the number of maximal runs of occupied slots.
func runs(occupied []bool) int {
	n := 0
	for i, ok := range occupied {
		if ok && (i == 0 || !occupied[i-1]) {
			n++
		}
	}
	return n
}

func TestRegistryRandomPlaceRemove(t *testing.T) {
	const slots = 16
	rng := rand.New(rand.NewPCG(7, 11))

	for _, perTick := range []int{1, 3} {
		w := newTestWorld(t, nil)
		occupied := make([]bool, slots)
		ids := make([]EntityID, slots)

		for step := 0; step < 120; step++ {
			for range perTick {
				i := rng.IntN(slots)
				if occupied[i] {
					w.remove(ids[i])
				} else {
					ids[i] = w.rod(float64(i)*2, 0, Mode(rng.IntN(int(modeCount))))
				}
				occupied[i] = !occupied[i]
			}
			w.tick()

			want := runs(occupied)
			if got := len(w.mgr.registry.Networks()); got != want {
				t.Fatalf("perTick=%d step %d: %d networks, want %d (%s)",
					perTick, step, got, want, grouping(w.mgr.registry))
			}
			for i := 1; i < slots; i++ {
				if !occupied[i] || !occupied[i-1] {
					continue
				}
				if w.network(ids[i]) != w.network(ids[i-1]) {
					t.Fatalf("perTick=%d step %d: adjacent slots %d and %d in different networks", perTick, step, i-1, i)
				}
			}
		}
	}
}

func TestRegistrySplitTwoRemovalsOneTick(t *testing.T) {
	w := newTestWorld(t, nil)
	// P5 gets the lowest id so it is first in member order.
	p5 := w.rod(10, 0, ModeConduit)
	var p [6]EntityID
	for i := range 5 {
		p[i] = w.rod(float64(i)*2, 0, ModeConduit)
	}
	p[5] = p5
	w.tick()
	if n := len(w.mgr.registry.Networks()); n != 1 {
		t.Fatalf("line of six: %d networks", n)
	}

	w.remove(p[4])
	w.remove(p[2])
	w.tick()

	r := w.mgr.registry
	if got := len(r.Networks()); got != 3 {
		t.Fatalf("%d networks, want 3 (%s)", got, grouping(r))
	}
	if w.network(p[0]) != w.network(p[1]) {
		t.Fatalf("P0 and P1 split apart: %s", grouping(r))
	}
	if w.network(p[1]) == w.network(p[3]) || w.network(p[3]) == w.network(p[5]) || w.network(p[1]) == w.network(p[5]) {
		t.Fatalf("disconnected conduits share a network: %s", grouping(r))
	}

	before := grouping(r)
	w.mgr.RequestRebuild()
	w.tick()
	if got := grouping(r); got != before {
		t.Fatalf("rebuild changed the partition: %s, want %s", got, before)
	}
}

func TestRegistryMergeConservation(t *testing.T) {
	w := newTestWorld(t, nil)
	// Three separate lines of 2, 3 and 1 rods.
	for _, x := range []float64{0, 2, 8, 10, 12, 18} {
		w.rod(x, 0, ModeConduit)
	}
	w.tick()
	if got := sizes(w.mgr.registry); got != "[1 2 3]" {
		t.Fatalf("sizes = %s, want [1 2 3]", got)
	}
	before := w.mgr.registry.Networks()
	ids := map[string]bool{}
	for _, n := range before {
		ids[n.ID()] = true
	}

	// Bridges at 4 and 6 join the first two lines, 14 and 16 the last.
	for _, x := range []float64{4, 6, 14, 16} {
		w.rod(x, 0, ModeConduit)
	}
	w.tick()

	nets := w.mgr.registry.Networks()
	if len(nets) != 1 || nets[0].Len() != 10 {
		t.Fatalf("after bridging: %s", sizes(w.mgr.registry))
	}
	if !ids[nets[0].ID()] {
		t.Fatalf("merged network %s is not one of the original ids", nets[0].ID())
	}
}

func TestRegistryReusePathMovesConduit(t *testing.T) {
	w := newTestWorld(t, nil)
	a := w.rod(0, 0, ModeConduit)
	b := w.rod(10, 0, ModeConduit)
	w.tick()
	r := w.mgr.registry
	nb := w.network(b).ID()

	// A stored id that points elsewhere moves the conduit, never duplicates it.
	w.mgr.view.setNetworkID(a, nb)
	r.Register(a, ModeConduit, nil, false)

	if n := w.network(a); n.ID() != nb || n.Len() != 2 {
		t.Fatalf("A in %s (size %d), want %s", n.ID(), n.Len(), nb)
	}
	if len(r.Networks()) != 1 {
		t.Fatalf("old network of A not discarded: %s", grouping(r))
	}
}

func TestRegistryMissingNetworkIsSkipped(t *testing.T) {
	w := newTestWorld(t, nil)
	a := w.rod(0, 0, ModeConduit)
	w.tick()
	r := w.mgr.registry

	// Corrupt the index: A points at a handle with no network.
	r.members[a] = NetworkHandle(99)
	if _, ok := r.NetworkOf(a); ok {
		t.Fatalf("NetworkOf returned a network for a dangling handle")
	}
	if _, ok := r.members[a]; ok {
		t.Fatalf("dangling member not dropped")
	}
	r.Unregister(CachedConduit{ID: a})
}

func TestRegistryHandleReuse(t *testing.T) {
	w := newTestWorld(t, nil)
	a := w.rod(0, 0, ModeConduit)
	w.tick()
	h := w.network(a).Handle()

	w.remove(a)
	w.tick()
	b := w.rod(30, 0, ModeConduit)
	w.tick()
	if w.network(b).Handle() != h {
		t.Fatalf("handle %d not reused, got %d", h, w.network(b).Handle())
	}
}

func TestConduitsByChannel(t *testing.T) {
	w := newTestWorld(t, nil)
	a := w.rod(0, 0, ModeExtract)
	b := w.rod(2, 0, ModeInsert)
	w.rod(4, 0, ModeInsert)
	w.tick()

	ca, _ := w.mgr.Conduit(a)
	cb, _ := w.mgr.Conduit(b)
	ca.SetChannel(3)
	cb.SetChannel(3)

	got := w.mgr.ConduitsByChannel(w.network(a).ID(), 3)
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Fatalf("ConduitsByChannel = %v, want [%v %v]", got, a, b)
	}
	if got := w.mgr.ConduitsByChannel("missing", 0); got != nil {
		t.Fatalf("unknown network returned %v", got)
	}
}
