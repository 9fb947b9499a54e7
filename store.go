package conduit

import (
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"
)

// Store is the host's authoritative entity store.
//
// Conduit and container data lives on the host entities as named fields. The
// engine reads and writes those fields but never owns their storage. Setters
// on an id that does not exist are no-ops.
type Store interface {
	// Exists reports whether the entity is alive.
	Exists(id EntityID) bool
	// Prefab returns the entity's stable prefab tag.
	Prefab(id EntityID) string
	// Position returns the entity's world position.
	Position(id EntityID) mgl64.Vec3
	// Rotation returns the entity's world rotation.
	Rotation(id EntityID) mgl64.Quat

	Int(id EntityID, f Field) (int, bool)
	SetInt(id EntityID, f Field, v int)
	String(id EntityID, f Field) (string, bool)
	SetString(id EntityID, f Field, v string)
	Bytes(id EntityID, f Field) ([]byte, bool)
	SetBytes(id EntityID, f Field, v []byte)
	Ref(id EntityID, f Field) EntityID
	SetRef(id EntityID, f Field, ref EntityID)

	// Nearby returns the entities in the spatial cell containing center and
	// the given number of cell rings around it.
	Nearby(center mgl64.Vec3, cells int) []EntityID
	// Entities returns every live entity.
	Entities() []EntityID
}

// view decodes entity fields into typed values. All reads of engine fields go
// through it, so stale references are healed in one place.
type view struct {
	store      Store
	log        *slog.Logger
	conduits   map[string]struct{}
	containers map[string]struct{}
	rate       int
}

func newView(s Store, log *slog.Logger, cfg Config) *view {
	v := &view{
		store:      s,
		log:        log,
		conduits:   make(map[string]struct{}, len(cfg.ConduitPrefabs)),
		containers: make(map[string]struct{}, len(cfg.ContainerPrefabs)),
		rate:       cfg.TransferRate,
	}
	for _, p := range cfg.ConduitPrefabs {
		v.conduits[p] = struct{}{}
	}
	for _, p := range cfg.ContainerPrefabs {
		v.containers[p] = struct{}{}
	}
	return v
}

// isConduitPrefab checks the prefab tag only.
func (v *view) isConduitPrefab(id EntityID) bool {
	if !v.store.Exists(id) {
		return false
	}
	_, ok := v.conduits[v.store.Prefab(id)]
	return ok
}

// isConduit is true for a live conduit prefab carrying a valid mode.
func (v *view) isConduit(id EntityID) bool {
	if !v.isConduitPrefab(id) {
		return false
	}
	_, ok := v.mode(id)
	return ok
}

func (v *view) isContainer(id EntityID) bool {
	if !v.store.Exists(id) {
		return false
	}
	_, ok := v.containers[v.store.Prefab(id)]
	return ok
}

func (v *view) mode(id EntityID) (Mode, bool) {
	raw, ok := v.store.Int(id, FieldMode)
	if !ok {
		return ModeConduit, false
	}
	return ParseMode(raw)
}

func (v *view) setMode(id EntityID, m Mode) {
	v.store.SetInt(id, FieldMode, int(m))
}

// bounds returns the stored box. Missing, malformed and zero-extent records
// all report false: the entity is not ready for collision tests.
func (v *view) bounds(id EntityID) (OBB, bool) {
	raw, ok := v.store.String(id, FieldBounds)
	if !ok || raw == "" {
		return OBB{}, false
	}
	b, ok := ParseOBB(raw)
	if !ok || b.Empty() {
		return OBB{}, false
	}
	return b, true
}

func (v *view) setBounds(id EntityID, b OBB) {
	v.store.SetString(id, FieldBounds, b.Serialize())
}

func (v *view) networkID(id EntityID) string {
	s, _ := v.store.String(id, FieldNetworkID)
	return s
}

func (v *view) setNetworkID(id EntityID, network string) {
	v.store.SetString(id, FieldNetworkID, network)
}

func (v *view) isNew(id EntityID) bool {
	n, _ := v.store.Int(id, FieldIsNew)
	return n != 0
}

func (v *view) setIsNew(id EntityID, isNew bool) {
	n := 0
	if isNew {
		n = 1
	}
	v.store.SetInt(id, FieldIsNew, n)
}

// idSet decodes an id-set field and drops entries that fail keep. If any were
// dropped the shorter set is written back. A malformed record reads as empty
// and is left as is.
func (v *view) idSet(id EntityID, f Field, keep func(EntityID) bool) *IDSet {
	raw, _ := v.store.Bytes(id, f)
	set, err := DecodeIDSet(raw)
	if err != nil {
		v.log.Warn("conduit: dropping malformed id set", "id", id, "field", string(f), "err", err)
		return &IDSet{}
	}
	stale := false
	for _, other := range set.IDs() {
		if !keep(other) {
			set.Remove(other)
			stale = true
		}
	}
	if stale {
		v.store.SetBytes(id, f, set.Encode())
	}
	return set
}

// connections returns the conduit's neighbours.
func (v *view) connections(id EntityID) *IDSet {
	return v.idSet(id, FieldConnections, v.isConduit)
}

func (v *view) setConnections(id EntityID, set *IDSet) {
	v.store.SetBytes(id, FieldConnections, set.Encode())
}

// linkedConduits returns the conduits a container feeds or drains.
func (v *view) linkedConduits(container EntityID) *IDSet {
	return v.idSet(container, FieldLinkedConduits, v.isConduit)
}

func (v *view) setLinkedConduits(container EntityID, set *IDSet) {
	v.store.SetBytes(container, FieldLinkedConduits, set.Encode())
}

// container returns the conduit's linked container, clearing the reference
// if the container no longer exists.
func (v *view) container(id EntityID) EntityID {
	ref := v.store.Ref(id, FieldContainer)
	if ref.IsNone() {
		return None
	}
	if !v.isContainer(ref) {
		v.store.SetRef(id, FieldContainer, None)
		return None
	}
	return ref
}

func (v *view) setContainer(id, container EntityID) {
	v.store.SetRef(id, FieldContainer, container)
}

func (v *view) channel(id EntityID) int {
	n, _ := v.store.Int(id, FieldChannel)
	return n
}

func (v *view) priority(id EntityID) int {
	n, _ := v.store.Int(id, FieldPriority)
	return n
}

func (v *view) filter(id EntityID) Filter {
	mode, _ := v.store.Int(id, FieldFilterMode)
	list, _ := v.store.String(id, FieldFilterList)
	f := Filter{Mode: Whitelist, Items: parseFilterList(list)}
	if FilterMode(mode) == Blacklist {
		f.Mode = Blacklist
	}
	return f
}

func (v *view) setFilter(id EntityID, f Filter) {
	v.store.SetInt(id, FieldFilterMode, int(f.Mode))
	v.store.SetString(id, FieldFilterList, f.list())
}

func (v *view) transferRate(id EntityID) int {
	n, ok := v.store.Int(id, FieldTransferRate)
	if !ok || n <= 0 {
		return v.rate
	}
	return n
}

// CachedConduit holds what the engine needs to unregister a conduit after its
// entity is gone.
type CachedConduit struct {
	ID          EntityID
	Mode        Mode
	NetworkID   string
	Connections []EntityID
	Container   EntityID
}

// CachedContainer holds what the engine needs to unlink a removed container.
type CachedContainer struct {
	ID       EntityID
	Conduits []EntityID
}

func (v *view) captureConduit(id EntityID) CachedConduit {
	m, _ := v.mode(id)
	return CachedConduit{
		ID:          id,
		Mode:        m,
		NetworkID:   v.networkID(id),
		Connections: v.connections(id).IDs(),
		Container:   v.container(id),
	}
}

func (v *view) captureContainer(id EntityID) CachedContainer {
	return CachedContainer{ID: id, Conduits: v.linkedConduits(id).IDs()}
}

// InitConduit performs the placement bookkeeping for a freshly built conduit:
// it stores the bounds, sets pass-through mode unless a mode is already set,
// and flags the entity as new so the next tick runs a full placement.
func InitConduit(s Store, id EntityID, bounds OBB) {
	if _, ok := s.Int(id, FieldMode); !ok {
		s.SetInt(id, FieldMode, int(ModeConduit))
	}
	s.SetString(id, FieldBounds, bounds.Serialize())
	s.SetInt(id, FieldIsNew, 1)
}

// InitContainer stores a container's bounds and flags it as new.
func InitContainer(s Store, id EntityID, bounds OBB) {
	s.SetString(id, FieldBounds, bounds.Serialize())
	s.SetInt(id, FieldIsNew, 1)
}
