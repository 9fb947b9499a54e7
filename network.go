package conduit

import (
	"maps"
	"slices"
)

// NetworkHandle addresses a Network inside its Registry. Handles are reused
// after a network is discarded; the string id is the persisted identity.
type NetworkHandle uint32

// Network is one connected partition of conduits.
type Network struct {
	id     string
	handle NetworkHandle

	conduits map[EntityID]Mode
	extract  map[EntityID]struct{}
	insert   map[EntityID]struct{}

	// tally is the owning registry's running totals, or nil.
	tally *roleTally
}

// roleTally counts role members and valid networks across a registry.
type roleTally struct {
	extract int
	insert  int
	valid   int
}

func newNetwork(id string, h NetworkHandle, t *roleTally) *Network {
	return &Network{
		id:       id,
		handle:   h,
		conduits: make(map[EntityID]Mode),
		extract:  make(map[EntityID]struct{}),
		insert:   make(map[EntityID]struct{}),
		tally:    t,
	}
}

// ID returns the persisted network id.
func (n *Network) ID() string { return n.id }

// Handle returns the network's registry handle.
func (n *Network) Handle() NetworkHandle { return n.handle }

// Len returns the number of member conduits.
func (n *Network) Len() int { return len(n.conduits) }

// Has checks if a conduit is a member.
func (n *Network) Has(id EntityID) bool {
	_, ok := n.conduits[id]
	return ok
}

// Mode returns the cached mode of a member conduit.
func (n *Network) Mode(id EntityID) (Mode, bool) {
	m, ok := n.conduits[id]
	return m, ok
}

// Conduits returns the member conduits ordered by id.
func (n *Network) Conduits() []EntityID {
	return slices.SortedFunc(maps.Keys(n.conduits), compareIDs)
}

// ExtractNodes returns the extract members ordered by id.
func (n *Network) ExtractNodes() []EntityID {
	return slices.SortedFunc(maps.Keys(n.extract), compareIDs)
}

// InsertNodes returns the insert members ordered by id.
func (n *Network) InsertNodes() []EntityID {
	return slices.SortedFunc(maps.Keys(n.insert), compareIDs)
}

// Valid reports whether the network can move items: it needs at least one
// extract and one insert node.
func (n *Network) Valid() bool {
	return len(n.extract) > 0 && len(n.insert) > 0
}

// track runs fn and applies the change in role counts and validity to the
// registry totals.
func (n *Network) track(fn func()) {
	if n.tally == nil {
		fn()
		return
	}
	extract, insert, valid := len(n.extract), len(n.insert), n.Valid()
	fn()
	n.tally.extract += len(n.extract) - extract
	n.tally.insert += len(n.insert) - insert
	switch {
	case valid && !n.Valid():
		n.tally.valid--
	case !valid && n.Valid():
		n.tally.valid++
	}
}

// add adds or re-roles a member.
func (n *Network) add(id EntityID, m Mode) {
	n.track(func() { n.setRole(id, m) })
}

func (n *Network) setRole(id EntityID, m Mode) {
	delete(n.extract, id)
	delete(n.insert, id)
	n.conduits[id] = m
	switch m {
	case ModeExtract:
		n.extract[id] = struct{}{}
	case ModeInsert:
		n.insert[id] = struct{}{}
	}
}

// remove removes a member and returns its cached mode.
func (n *Network) remove(id EntityID) (Mode, bool) {
	m, ok := n.conduits[id]
	if !ok {
		return ModeConduit, false
	}
	n.track(func() {
		delete(n.conduits, id)
		delete(n.extract, id)
		delete(n.insert, id)
	})
	return m, true
}
