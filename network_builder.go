package conduit

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// NetworkBuilder turns lifecycle events into adjacency, container links and
// registry updates. It is driven by the Processor, once per queued item.
type NetworkBuilder struct {
	view     *view
	query    *SpatialQuery
	registry *Registry
	handler  NetworkHandler
	log      *slog.Logger
}

func newNetworkBuilder(v *view, q *SpatialQuery, r *Registry, h NetworkHandler, log *slog.Logger) *NetworkBuilder {
	return &NetworkBuilder{view: v, query: q, registry: r, handler: h, log: log}
}

// OnConduitPlaced runs a full placement: neighbour search, symmetric
// adjacency, container detection and registration as a new placement.
//
// A conduit that is already registered is being placed again (it moved in).
// Its old registration is removed first, with split detection, and edges to
// neighbours it no longer touches are dropped.
func (b *NetworkBuilder) OnConduitPlaced(id EntityID, bounds OBB) {
	if !b.view.isConduit(id) {
		b.log.Warn("conduit: rejected placement of non-conduit", "id", id, "prefab", b.view.store.Prefab(id))
		return
	}
	if _, ok := b.registry.NetworkOf(id); ok {
		b.registry.Unregister(b.view.captureConduit(id))
	}

	neighbours := b.relink(id, bounds)
	b.detectContainer(id, bounds)
	b.view.setIsNew(id, false)

	m, _ := b.view.mode(id)
	network := b.registry.Register(id, m, neighbours, true)
	b.log.Debug("conduit: placed conduit", "id", id, "network", network, "count", len(neighbours))
}

// relink replaces a conduit's adjacency with the conduits touching bounds and
// keeps every neighbour's list symmetric.
func (b *NetworkBuilder) relink(id EntityID, bounds OBB) []EntityID {
	neighbours := b.query.FindConnectedConduits(bounds, id)
	fresh := NewIDSet(neighbours...)

	for _, old := range b.view.connections(id).IDs() {
		if fresh.Has(old) {
			continue
		}
		set := b.view.connections(old)
		if set.Remove(id) {
			b.view.setConnections(old, set)
		}
	}
	b.view.setConnections(id, fresh)
	for _, nb := range neighbours {
		set := b.view.connections(nb)
		if set.Add(id) {
			b.view.setConnections(nb, set)
		}
	}
	return neighbours
}

// detectContainer links a conduit to the closest overlapping container,
// unlinking it from a previous, different one.
func (b *NetworkBuilder) detectContainer(id EntityID, bounds OBB, exclude ...EntityID) {
	container, found := b.query.FindConnectedContainer(bounds, exclude...)
	prev := b.view.container(id)
	if prev == container && found {
		b.link(id, container)
		return
	}
	if !prev.IsNone() {
		b.unlink(id, prev)
	}
	if found {
		b.link(id, container)
	}
}

// link sets a conduit's container and adds the conduit to the container's
// linked set.
func (b *NetworkBuilder) link(id, container EntityID) {
	changed := b.view.container(id) != container
	b.view.setContainer(id, container)
	set := b.view.linkedConduits(container)
	if set.Add(id) {
		b.view.setLinkedConduits(container, set)
		changed = true
	}
	if changed {
		b.handler.HandleContainerLinked(EventContainerLinked{Container: container, Conduit: id})
	}
}

// unlink clears a conduit's container and removes it from the container's
// linked set, if the container still exists.
func (b *NetworkBuilder) unlink(id, container EntityID) {
	if b.view.store.Ref(id, FieldContainer) == container {
		b.view.setContainer(id, None)
	}
	if b.view.isContainer(container) {
		set := b.view.linkedConduits(container)
		if set.Remove(id) {
			b.view.setLinkedConduits(container, set)
		}
	}
	b.handler.HandleContainerUnlinked(EventContainerUnlinked{Container: container, Conduit: id})
}

// OnConduitUpdate re-registers a conduit from its stored adjacency and
// current mode, without a geometry scan. A conduit switched to pass-through
// loses its container; one switched to a role without a container looks for
// one.
func (b *NetworkBuilder) OnConduitUpdate(id EntityID) {
	if !b.view.isConduit(id) {
		b.log.Warn("conduit: rejected update of non-conduit", "id", id, "prefab", b.view.store.Prefab(id))
		return
	}
	m, _ := b.view.mode(id)

	if n, ok := b.registry.NetworkOf(id); ok {
		prev, _ := n.Mode(id)
		if container := b.view.container(id); m == ModeConduit && prev.HasRole() && !container.IsNone() {
			b.unlink(id, container)
		}
	}
	if m.HasRole() && b.view.container(id).IsNone() {
		if bounds, ok := b.view.bounds(id); ok {
			b.detectContainer(id, bounds)
		}
	}

	b.registry.Register(id, m, b.view.connections(id).IDs(), false)
}

// OnConduitRemoved unregisters a removed conduit and strips it from its
// neighbours and its container.
func (b *NetworkBuilder) OnConduitRemoved(c CachedConduit) {
	b.registry.Unregister(c)

	for _, nb := range c.Connections {
		if !b.view.isConduit(nb) {
			continue
		}
		set := b.view.connections(nb)
		if set.Remove(c.ID) {
			b.view.setConnections(nb, set)
		}
	}
	if !c.Container.IsNone() && b.view.isContainer(c.Container) {
		set := b.view.linkedConduits(c.Container)
		if set.Remove(c.ID) {
			b.view.setLinkedConduits(c.Container, set)
		}
		b.handler.HandleContainerUnlinked(EventContainerUnlinked{Container: c.Container, Conduit: c.ID})
	}
	b.log.Debug("conduit: removed conduit", "id", c.ID, "network", c.NetworkID)
}

// OnContainerPlaced links the conduits overlapping a new container. Conduits
// already linked to another container keep it.
func (b *NetworkBuilder) OnContainerPlaced(id EntityID, bounds OBB) {
	if !b.view.isContainer(id) {
		b.log.Warn("conduit: rejected placement of non-container", "id", id, "prefab", b.view.store.Prefab(id))
		return
	}
	linked := b.view.linkedConduits(id)
	for _, c := range b.query.FindContainerConduits(bounds, id) {
		switch b.view.container(c) {
		case None:
			b.view.setContainer(c, id)
			linked.Add(c)
			b.handler.HandleContainerLinked(EventContainerLinked{Container: id, Conduit: c})
		case id:
			linked.Add(c)
		}
	}
	b.view.setLinkedConduits(id, linked)
	b.log.Debug("conduit: placed container", "id", id, "count", linked.Len())
}

// OnContainerRemoved clears the link on every conduit of a removed container
// and lets each of them look for another container.
func (b *NetworkBuilder) OnContainerRemoved(c CachedContainer) {
	for _, id := range c.Conduits {
		if !b.view.isConduit(id) {
			continue
		}
		ref := b.view.store.Ref(id, FieldContainer)
		if ref != c.ID && !ref.IsNone() {
			continue
		}
		b.view.setContainer(id, None)
		b.handler.HandleContainerUnlinked(EventContainerUnlinked{Container: c.ID, Conduit: id})
		if bounds, ok := b.view.bounds(id); ok {
			b.detectContainer(id, bounds, c.ID)
		}
	}
	b.log.Debug("conduit: removed container", "id", c.ID, "count", len(c.Conduits))
}

// RebuildAll clears the registry and registers every conduit again from its
// stored adjacency. Stored network ids are ignored, so the result is the
// connected components of the stored graph.
func (b *NetworkBuilder) RebuildAll() {
	b.registry.Clear()
	count := 0
	for _, id := range b.view.store.Entities() {
		if !b.view.isConduit(id) {
			continue
		}
		m, _ := b.view.mode(id)
		b.registry.Register(id, m, b.view.connections(id).IDs(), true)
		count++
	}
	b.log.Info("conduit: rebuilt networks", "count", count, "networks", b.registry.Stats().Networks)
}

// RescanArea recomputes adjacency and container links with fresh spatial
// queries for every conduit within radius of center, then rebuilds all
// networks.
func (b *NetworkBuilder) RescanArea(center mgl64.Vec3, radius float64) {
	cfg := b.query.cfg
	rings := max(cfg.QueryCells, int(radius/cfg.CellSize)+1)
	count := 0
	for _, id := range b.view.store.Nearby(center, rings) {
		if !b.view.isConduit(id) || !within(center, b.view.store.Position(id), radius) {
			continue
		}
		bounds, ok := b.view.bounds(id)
		if !ok {
			continue
		}
		b.relink(id, bounds)
		b.detectContainer(id, bounds)
		count++
	}
	b.log.Info("conduit: rescanned area", "center", center, "radius", radius, "count", count)
	b.RebuildAll()
}

// Describe returns a one-line summary of a conduit for debugging.
func (b *NetworkBuilder) Describe(id EntityID) string {
	if !b.view.isConduit(id) {
		return fmt.Sprintf("%s: not a conduit", id)
	}
	m, _ := b.view.mode(id)
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s mode=%s network=%q", id, m, b.view.networkID(id))
	if n, ok := b.registry.NetworkOf(id); ok {
		fmt.Fprintf(&sb, " size=%d valid=%t", n.Len(), n.Valid())
	} else {
		sb.WriteString(" unregistered")
	}
	conns := b.view.connections(id).IDs()
	parts := make([]string, len(conns))
	for i, c := range conns {
		parts[i] = c.String()
	}
	fmt.Fprintf(&sb, " connections=[%s]", strings.Join(parts, " "))
	if c := b.view.container(id); !c.IsNone() {
		fmt.Fprintf(&sb, " container=%s", c)
	}
	if bounds, ok := b.view.bounds(id); ok {
		fmt.Fprintf(&sb, " bounds=%s", bounds)
	}
	return sb.String()
}
