package conduit

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// panicStore panics when the bounds of one entity are read.
type panicStore struct {
	*MemStore
	bad EntityID
}

func (s *panicStore) String(id EntityID, f Field) (string, bool) {
	if id == s.bad && f == FieldBounds {
		panic("corrupt bounds record")
	}
	return s.MemStore.String(id, f)
}

func TestProcessorDeduplicates(t *testing.T) {
	w := newTestWorld(t, nil)
	a := w.rod(0, 0, ModeConduit)
	w.mgr.ConduitChanged(a)
	w.mgr.ConduitChanged(a)
	c := w.chest(mgl64.Vec3{10, 0, 0}, mgl64.Vec3{0.5, 0.5, 0.5})
	w.mgr.processor.QueueContainer(c)
	w.mgr.RequestRebuild()
	w.mgr.RequestRebuild()

	if got := w.mgr.Pending(); got != 3 {
		t.Fatalf("Pending = %d, want 3", got)
	}
	w.tick()
	if got := w.mgr.Pending(); got != 0 {
		t.Fatalf("Pending after tick = %d", got)
	}
}

func TestProcessorPlaceAndRemoveSameTick(t *testing.T) {
	w := newTestWorld(t, nil)
	a := w.rod(0, 0, ModeConduit)
	b := w.rod(2, 0, ModeConduit)
	w.remove(b)

	if got := w.mgr.Pending(); got != 2 {
		t.Fatalf("Pending = %d, want 2 (one placement, one removal)", got)
	}
	w.tick()

	if n := w.network(a); n.Len() != 1 {
		t.Fatalf("network of A has %d conduits, want 1", n.Len())
	}
	if got := w.connections(a); len(got) != 0 {
		t.Fatalf("A connected to %v", got)
	}
}

func TestProcessorRemovalsRunBeforePlacements(t *testing.T) {
	w := newTestWorld(t, nil)
	a := w.rod(0, 0, ModeConduit)
	b := w.rod(2, 0, ModeConduit)
	w.tick()
	old := w.network(a).ID()

	// B is replaced in place within one tick: the removal runs first, so the
	// replacement joins A's network rather than meeting a stale B.
	w.remove(b)
	c := w.rod(2, 0, ModeConduit)
	w.tick()

	if got := w.network(c).ID(); got != old {
		t.Fatalf("replacement joined %s, want %s", got, old)
	}
	if got := w.connections(a); len(got) != 1 || got[0] != c {
		t.Fatalf("A connections = %v, want [%v]", got, c)
	}
}

func TestProcessorSkipsMissingBounds(t *testing.T) {
	w := newTestWorld(t, nil)
	bad := w.rod(0, 0, ModeConduit)
	good := w.rod(20, 0, ModeConduit)
	w.store.SetString(bad, FieldBounds, "garbage")

	// Not w.tick: the skipped conduit is deliberately left unregistered.
	w.mgr.Tick()

	if _, ok := w.mgr.registry.NetworkOf(bad); ok {
		t.Fatalf("conduit without bounds was registered")
	}
	if _, ok := w.mgr.registry.NetworkOf(good); !ok {
		t.Fatalf("conduit after the bad one was not registered")
	}
	if !w.mgr.view.isNew(bad) {
		t.Fatalf("skipped conduit lost its new flag")
	}
}

func TestProcessorSkipsDestroyedConduit(t *testing.T) {
	w := newTestWorld(t, nil)
	a := w.rod(0, 0, ModeConduit)
	w.store.Destroy(a)
	w.tick()
	if got := w.mgr.Stats().Conduits; got != 0 {
		t.Fatalf("Stats.Conduits = %d, want 0", got)
	}
}

func TestProcessorRecoversPanic(t *testing.T) {
	mem := NewMemStore(8)
	store := &panicStore{MemStore: mem}
	reg := prometheus.NewRegistry()
	mgr, err := NewBuilder().Store(store).Logger(discardLogger()).Metrics(reg).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	spawn := func(id EntityID, x float64) {
		center := mgl64.Vec3{x, 0, 0}
		mem.Spawn(id, beamPrefab, center, mgl64.QuatIdent())
		mgr.ConduitPlaced(id, NewOBB(center, mgl64.QuatIdent(), rodHalf))
	}
	bad, good := EntityID{UserID: 1, ID: 1}, EntityID{UserID: 1, ID: 2}
	spawn(bad, 0)
	spawn(good, 40)
	store.bad = bad

	mgr.Tick()

	if _, ok := mgr.registry.NetworkOf(good); !ok {
		t.Fatalf("panic in one item stopped the batch")
	}
	if got := testutil.ToFloat64(mgr.metrics.recovered); got != 1 {
		t.Fatalf("recovered_panics_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(mgr.metrics.queued.WithLabelValues(PhaseConduits.String())); got != 2 {
		t.Fatalf("queued conduits = %v, want 2", got)
	}
}

func TestProcessorContainerPlacedOnce(t *testing.T) {
	w := newTestWorld(t, nil)
	a := w.rod(0, 0, ModeExtract)
	w.tick()

	c := w.chest(mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0.5, 0.5, 0.5})
	w.tick()
	if got := w.mgr.view.container(a); got != c {
		t.Fatalf("A linked to %v, want %v", got, c)
	}

	// A second queue entry for a container that is no longer new is a no-op.
	w.mgr.processor.QueueContainer(c)
	w.tick()
	if got := w.mgr.view.linkedConduits(c).IDs(); len(got) != 1 || got[0] != a {
		t.Fatalf("container conduits = %v", got)
	}
}
