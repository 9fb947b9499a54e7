package conduit

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	beamPrefab  = "ic_wood_beam"
	chestPrefab = "piece_chest"
)

// rodHalf is the half-extent of a 2-unit rod lying along X.
var rodHalf = mgl64.Vec3{1, 0.1, 0.1}

// near compares vectors per component with an absolute tolerance.
func near(a, b mgl64.Vec3) bool {
	return a.ApproxFuncEqual(b, func(x, y float64) bool {
		return math.Abs(x-y) < 1e-9
	})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testWorld wires a MemStore to a Manager that is ticked by hand.
type testWorld struct {
	t     *testing.T
	store *MemStore
	mgr   *Manager
	next  uint32
}

func newTestWorld(t *testing.T, b *Builder) *testWorld {
	t.Helper()
	if b == nil {
		b = NewBuilder()
	}
	store := NewMemStore(8)
	mgr, err := b.Store(store).Logger(discardLogger()).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return &testWorld{t: t, store: store, mgr: mgr}
}

func (w *testWorld) nextID() EntityID {
	w.next++
	return EntityID{UserID: 1, ID: w.next}
}

// place spawns a conduit with the given box and queues its placement.
func (w *testWorld) place(center, half mgl64.Vec3, rot mgl64.Quat, mode Mode) EntityID {
	id := w.nextID()
	w.store.Spawn(id, beamPrefab, center, rot)
	w.store.SetInt(id, FieldMode, int(mode))
	w.mgr.ConduitPlaced(id, NewOBB(center, rot, half))
	return id
}

// rod places a conduit lying along X centred on (x, y, 0).
func (w *testWorld) rod(x, y float64, mode Mode) EntityID {
	return w.place(mgl64.Vec3{x, y, 0}, rodHalf, mgl64.QuatIdent(), mode)
}

// chest places a container box.
func (w *testWorld) chest(center, half mgl64.Vec3) EntityID {
	id := w.nextID()
	w.store.Spawn(id, chestPrefab, center, mgl64.QuatIdent())
	w.mgr.ContainerPlaced(id, NewOBB(center, mgl64.QuatIdent(), half))
	return id
}

// remove captures, queues and destroys a conduit.
func (w *testWorld) remove(id EntityID) {
	w.mgr.ConduitDestroyed(id)
	w.store.Destroy(id)
}

// removeChest captures, queues and destroys a container.
func (w *testWorld) removeChest(id EntityID) {
	w.mgr.ContainerDestroyed(id)
	w.store.Destroy(id)
}

func (w *testWorld) tick() {
	w.t.Helper()
	w.mgr.Tick()
	w.checkInvariants()
}

func (w *testWorld) connections(id EntityID) []EntityID {
	return w.mgr.view.connections(id).IDs()
}

func (w *testWorld) network(id EntityID) *Network {
	w.t.Helper()
	n, ok := w.mgr.registry.NetworkOf(id)
	if !ok {
		w.t.Fatalf("conduit %s has no network", id)
	}
	return n
}

// checkInvariants verifies adjacency symmetry and that every live conduit is
// in exactly one network that contains it.
func (w *testWorld) checkInvariants() {
	w.t.Helper()
	r := w.mgr.registry

	var live []EntityID
	for _, id := range w.store.Entities() {
		if w.mgr.view.isConduit(id) {
			live = append(live, id)
		}
	}

	members := 0
	var want RegistryStats
	for _, n := range r.Networks() {
		want.Networks++
		want.Extract += len(n.ExtractNodes())
		want.Insert += len(n.InsertNodes())
		if n.Valid() {
			want.ValidNetworks++
		}
		if n.Len() == 0 {
			w.t.Fatalf("network %s is empty", n.ID())
		}
		for _, c := range n.Conduits() {
			if !w.store.Exists(c) {
				w.t.Fatalf("network %s holds destroyed conduit %s", n.ID(), c)
			}
		}
		for _, c := range append(n.ExtractNodes(), n.InsertNodes()...) {
			if !n.Has(c) {
				w.t.Fatalf("network %s role node %s is not a member", n.ID(), c)
			}
		}
		members += n.Len()
	}
	if members != len(live) {
		w.t.Fatalf("networks hold %d conduits, store has %d", members, len(live))
	}
	want.Conduits = members
	if got := r.Stats(); got != want {
		w.t.Fatalf("Stats = %+v, recounted %+v", got, want)
	}

	for _, c := range live {
		n, ok := r.NetworkOf(c)
		if !ok || !n.Has(c) {
			w.t.Fatalf("conduit %s is not in its network", c)
		}
		if got := w.mgr.view.networkID(c); got != n.ID() {
			w.t.Fatalf("conduit %s stores network %q, registry says %q", c, got, n.ID())
		}
		for _, nb := range w.connections(c) {
			if !slices.Contains(w.connections(nb), c) {
				w.t.Fatalf("asymmetric adjacency: %s -> %s", c, nb)
			}
		}
	}
}

// grouping renders the partition as sorted member lists, independent of
// network ids.
func grouping(r *Registry) string {
	var groups []string
	for _, n := range r.Networks() {
		parts := make([]string, 0, n.Len())
		for _, c := range n.Conduits() {
			parts = append(parts, c.String())
		}
		groups = append(groups, "{"+strings.Join(parts, " ")+"}")
	}
	slices.Sort(groups)
	return strings.Join(groups, " ")
}

func sizes(r *Registry) string {
	var out []int
	for _, n := range r.Networks() {
		out = append(out, n.Len())
	}
	slices.Sort(out)
	return fmt.Sprint(out)
}
