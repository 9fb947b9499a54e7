package conduit

import (
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Registry partitions registered conduits into networks.
//
// Networks live in an arena addressed by NetworkHandle. Every registered
// conduit maps to exactly one handle, and the member's mode is cached on the
// network so merges and splits never re-read the store.
//
// Registry is not safe for concurrent use; the Processor is its only writer.
type Registry struct {
	view    *view
	log     *slog.Logger
	handler NetworkHandler
	metrics *Metrics

	arena   []*Network
	free    []NetworkHandle
	byID    map[string]NetworkHandle
	members map[EntityID]NetworkHandle
	tally   roleTally

	newID func() string
}

func newRegistry(v *view, log *slog.Logger, h NetworkHandler, m *Metrics) *Registry {
	return &Registry{
		view:    v,
		log:     log,
		handler: h,
		metrics: m,
		byID:    make(map[string]NetworkHandle),
		members: make(map[EntityID]NetworkHandle),
		newID:   uuid.NewString,
	}
}

// alloc creates an empty network with the given id.
func (r *Registry) alloc(id string) *Network {
	var h NetworkHandle
	if n := len(r.free); n > 0 {
		h = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		h = NetworkHandle(len(r.arena))
		r.arena = append(r.arena, nil)
	}
	n := newNetwork(id, h, &r.tally)
	r.arena[h] = n
	r.byID[id] = h
	r.handler.HandleNetworkCreated(EventNetworkCreated{NetworkID: id})
	return n
}

// release drops a network from the arena. Its members must already have been
// moved or removed.
func (r *Registry) release(n *Network) {
	delete(r.byID, n.id)
	r.arena[n.handle] = nil
	r.free = append(r.free, n.handle)
	r.handler.HandleNetworkRemoved(EventNetworkRemoved{NetworkID: n.id})
}

// lookup returns the network with the given id, or nil.
func (r *Registry) lookup(id string) *Network {
	h, ok := r.byID[id]
	if !ok {
		return nil
	}
	return r.arena[h]
}

// networkOf returns the network a conduit belongs to, or nil. A member whose
// handle points at no network is logged and dropped from the index.
func (r *Registry) networkOf(c EntityID) *Network {
	h, ok := r.members[c]
	if !ok {
		return nil
	}
	if int(h) >= len(r.arena) || r.arena[h] == nil {
		r.log.Error("conduit: conduit maps to missing network", "id", c, "handle", h)
		delete(r.members, c)
		return nil
	}
	return r.arena[h]
}

// join adds a conduit to n, moving it off any other network, and persists
// the network id.
func (r *Registry) join(n *Network, c EntityID, m Mode) {
	if old := r.networkOf(c); old != nil && old != n {
		old.remove(c)
		if old.Len() == 0 {
			r.release(old)
		}
	}
	n.add(c, m)
	r.members[c] = n.handle
	r.view.setNetworkID(c, n.id)
}

// Register assigns a conduit to a network and returns the network id.
//
// A conduit that is not a new placement and already carries a network id
// keeps it; this is how a loaded world re-registers without rediscovery.
// Otherwise the conduit joins the networks of its connections: a fresh
// network if none has one, that network if there is one, or the largest of
// them after the others are merged into it.
func (r *Registry) Register(c EntityID, m Mode, connections []EntityID, isNew bool) string {
	if stored := r.view.networkID(c); !isNew && stored != "" {
		n := r.lookup(stored)
		if n == nil {
			n = r.alloc(stored)
		}
		r.join(n, c, m)
		r.refreshStats()
		return stored
	}

	var candidates []*Network
	for _, other := range connections {
		if other == c {
			continue
		}
		if n := r.networkOf(other); n != nil && !slices.Contains(candidates, n) {
			candidates = append(candidates, n)
		}
	}

	var target *Network
	switch len(candidates) {
	case 0:
		target = r.alloc(r.newID())
	case 1:
		target = candidates[0]
	default:
		target = r.merge(candidates)
	}
	r.join(target, c, m)
	r.refreshStats()
	return target.id
}

// merge folds every candidate into the largest one and returns it. The first
// candidate wins ties.
func (r *Registry) merge(candidates []*Network) *Network {
	target := candidates[0]
	for _, n := range candidates[1:] {
		if n.Len() > target.Len() {
			target = n
		}
	}

	var from []string
	for _, n := range candidates {
		if n == target {
			continue
		}
		for _, c := range n.Conduits() {
			m, _ := n.remove(c)
			target.add(c, m)
			r.members[c] = target.handle
			r.view.setNetworkID(c, target.id)
		}
		from = append(from, n.id)
		r.release(n)
	}

	r.log.Info("conduit: merged networks", "network", target.id, "from", strings.Join(from, ","), "count", target.Len())
	r.metrics.addMerges(len(from))
	r.handler.HandleNetworkMerged(EventNetworkMerged{Into: target.id, From: from, Size: target.Len()})
	return target
}

// Unregister removes a conduit from the graph. The conduit's entity may
// already be gone, so everything needed comes from the cached record.
//
// If the conduit had more than one neighbour its network is checked for a
// split: one connected component is collected per unvisited neighbour, then
// per live member still unvisited. The largest component keeps the network id
// and every other component moves to a new network.
func (r *Registry) Unregister(c CachedConduit) {
	n := r.networkOf(c.ID)
	if n == nil {
		return
	}
	n.remove(c.ID)
	delete(r.members, c.ID)
	defer r.refreshStats()

	if n.Len() == 0 {
		r.release(n)
		return
	}
	if len(c.Connections) <= 1 {
		return
	}
	r.split(n, c)
}

func (r *Registry) split(n *Network, removed CachedConduit) {
	visited := map[EntityID]struct{}{removed.ID: {}}
	var components [][]EntityID
	for _, nb := range removed.Connections {
		if _, seen := visited[nb]; seen || !n.Has(nb) || !r.view.isConduit(nb) {
			continue
		}
		components = append(components, r.component(n, nb, visited))
	}
	// Members reachable only through another conduit removed this tick were
	// not reached above. Conduits already destroyed stay put until their own
	// removal.
	for _, c := range n.Conduits() {
		if _, seen := visited[c]; seen || !r.view.isConduit(c) {
			continue
		}
		components = append(components, r.component(n, c, visited))
	}
	if len(components) <= 1 {
		return
	}

	largest := 0
	for i, comp := range components {
		if len(comp) > len(components[largest]) {
			largest = i
		}
	}

	e := EventNetworkSplit{From: n.id}
	for i, comp := range components {
		if i == largest {
			continue
		}
		nn := r.alloc(r.newID())
		for _, c := range comp {
			m, _ := n.remove(c)
			nn.add(c, m)
			r.members[c] = nn.handle
			r.view.setNetworkID(c, nn.id)
		}
		e.Into = append(e.Into, nn.id)
		e.Sizes = append(e.Sizes, nn.Len())
	}

	r.log.Info("conduit: split network", "network", n.id, "removed", removed.ID, "count", len(components))
	r.metrics.addSplits(len(e.Into))
	r.handler.HandleNetworkSplit(e)
}

// component collects the members of n reachable from start through the
// stored adjacency, skipping visited ids.
func (r *Registry) component(n *Network, start EntityID, visited map[EntityID]struct{}) []EntityID {
	visited[start] = struct{}{}
	comp := []EntityID{start}
	for i := 0; i < len(comp); i++ {
		for _, nb := range r.view.connections(comp[i]).IDs() {
			if _, seen := visited[nb]; seen || !n.Has(nb) {
				continue
			}
			visited[nb] = struct{}{}
			comp = append(comp, nb)
		}
	}
	return comp
}

// Clear drops every network.
func (r *Registry) Clear() {
	for _, n := range r.arena {
		if n != nil {
			r.handler.HandleNetworkRemoved(EventNetworkRemoved{NetworkID: n.id})
		}
	}
	r.arena = nil
	r.free = nil
	clear(r.byID)
	clear(r.members)
	r.tally = roleTally{}
	r.refreshStats()
}

// Network returns the network with the given id, or nil.
func (r *Registry) Network(id string) *Network {
	return r.lookup(id)
}

// NetworkOf returns the network a conduit belongs to.
func (r *Registry) NetworkOf(c EntityID) (*Network, bool) {
	n := r.networkOf(c)
	return n, n != nil
}

// Networks returns every network ordered by id.
func (r *Registry) Networks() []*Network {
	out := make([]*Network, 0, len(r.byID))
	for _, id := range slices.Sorted(maps.Keys(r.byID)) {
		out = append(out, r.arena[r.byID[id]])
	}
	return out
}

// ValidNetworks returns the networks that have both extract and insert nodes.
func (r *Registry) ValidNetworks() []*Network {
	var out []*Network
	for _, n := range r.Networks() {
		if n.Valid() {
			out = append(out, n)
		}
	}
	return out
}

// ConduitsByChannel returns the members of a network on the given channel.
func (r *Registry) ConduitsByChannel(networkID string, channel int) []EntityID {
	n := r.lookup(networkID)
	if n == nil {
		return nil
	}
	var out []EntityID
	for _, c := range n.Conduits() {
		if r.view.channel(c) == channel {
			out = append(out, c)
		}
	}
	return out
}

// RegistryStats summarises the registry.
type RegistryStats struct {
	Networks      int
	ValidNetworks int
	Conduits      int
	Extract       int
	Insert        int
}

// Stats returns a summary of the registry.
func (r *Registry) Stats() RegistryStats {
	return RegistryStats{
		Networks:      len(r.byID),
		ValidNetworks: r.tally.valid,
		Conduits:      len(r.members),
		Extract:       r.tally.extract,
		Insert:        r.tally.insert,
	}
}

func (r *Registry) refreshStats() {
	if r.metrics != nil {
		r.metrics.setRegistry(r.Stats())
	}
}
