package conduit

import (
	"math"
	"slices"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// cellKey addresses one cube of the MemStore spatial index.
type cellKey [3]int

// memEntity is one entity record held by a MemStore.
type memEntity struct {
	prefab   string
	position mgl64.Vec3
	rotation mgl64.Quat
	cell     cellKey

	ints    map[Field]int
	strings map[Field]string
	bytes   map[Field][]byte
	refs    map[Field]EntityID
}

func newMemEntity(prefab string, pos mgl64.Vec3, rot mgl64.Quat) *memEntity {
	return &memEntity{
		prefab:   prefab,
		position: pos,
		rotation: rot,
		ints:     make(map[Field]int),
		strings:  make(map[Field]string),
		bytes:    make(map[Field][]byte),
		refs:     make(map[Field]EntityID),
	}
}

// MemStore is an in-memory Store with a uniform 3D cell index for Nearby.
// It is safe for concurrent use.
type MemStore struct {
	mu       sync.RWMutex
	cellSize float64
	entities map[EntityID]*memEntity
	cells    map[cellKey]map[EntityID]struct{}
}

// NewMemStore creates an empty store whose spatial cells have the given edge
// length.
func NewMemStore(cellSize float64) *MemStore {
	if cellSize <= 0 {
		cellSize = DefaultConfig().CellSize
	}
	return &MemStore{
		cellSize: cellSize,
		entities: make(map[EntityID]*memEntity),
		cells:    make(map[cellKey]map[EntityID]struct{}),
	}
}

// Compile-time check that MemStore implements Store.
var _ Store = (*MemStore)(nil)

func (s *MemStore) cellOf(pos mgl64.Vec3) cellKey {
	return cellKey{
		int(math.Floor(pos[0] / s.cellSize)),
		int(math.Floor(pos[1] / s.cellSize)),
		int(math.Floor(pos[2] / s.cellSize)),
	}
}

func (s *MemStore) index(id EntityID, e *memEntity) {
	e.cell = s.cellOf(e.position)
	c := s.cells[e.cell]
	if c == nil {
		c = make(map[EntityID]struct{})
		s.cells[e.cell] = c
	}
	c[id] = struct{}{}
}

func (s *MemStore) unindex(id EntityID, e *memEntity) {
	c := s.cells[e.cell]
	delete(c, id)
	if len(c) == 0 {
		delete(s.cells, e.cell)
	}
}

// Spawn adds an entity. Spawning an id that already exists replaces it.
func (s *MemStore) Spawn(id EntityID, prefab string, pos mgl64.Vec3, rot mgl64.Quat) {
	if id.IsNone() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entities[id]; ok {
		s.unindex(id, old)
	}
	e := newMemEntity(prefab, pos, rot)
	s.entities[id] = e
	s.index(id, e)
}

// Destroy removes an entity and all of its fields.
func (s *MemStore) Destroy(id EntityID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entities[id]; ok {
		s.unindex(id, e)
		delete(s.entities, id)
	}
}

// Move updates an entity's position and rotation.
func (s *MemStore) Move(id EntityID, pos mgl64.Vec3, rot mgl64.Quat) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[id]
	if !ok {
		return
	}
	s.unindex(id, e)
	e.position, e.rotation = pos, rot
	s.index(id, e)
}

// Len returns the number of live entities.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

func (s *MemStore) Exists(id EntityID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entities[id]
	return ok
}

func (s *MemStore) Prefab(id EntityID) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entities[id]; ok {
		return e.prefab
	}
	return ""
}

func (s *MemStore) Position(id EntityID) mgl64.Vec3 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entities[id]; ok {
		return e.position
	}
	return mgl64.Vec3{}
}

func (s *MemStore) Rotation(id EntityID) mgl64.Quat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entities[id]; ok {
		return e.rotation
	}
	return mgl64.QuatIdent()
}

func (s *MemStore) Int(id EntityID, f Field) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entities[id]; ok {
		v, ok := e.ints[f]
		return v, ok
	}
	return 0, false
}

func (s *MemStore) SetInt(id EntityID, f Field, v int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entities[id]; ok {
		e.ints[f] = v
	}
}

func (s *MemStore) String(id EntityID, f Field) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entities[id]; ok {
		v, ok := e.strings[f]
		return v, ok
	}
	return "", false
}

func (s *MemStore) SetString(id EntityID, f Field, v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entities[id]; ok {
		e.strings[f] = v
	}
}

func (s *MemStore) Bytes(id EntityID, f Field) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entities[id]; ok {
		v, ok := e.bytes[f]
		return slices.Clone(v), ok
	}
	return nil, false
}

func (s *MemStore) SetBytes(id EntityID, f Field, v []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entities[id]; ok {
		e.bytes[f] = slices.Clone(v)
	}
}

func (s *MemStore) Ref(id EntityID, f Field) EntityID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entities[id]; ok {
		return e.refs[f]
	}
	return None
}

func (s *MemStore) SetRef(id EntityID, f Field, ref EntityID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return
	}
	if ref.IsNone() {
		delete(e.refs, f)
		return
	}
	e.refs[f] = ref
}

// Nearby returns the entities in the (2*cells+1)^3 block of cells around
// center, ordered by id.
func (s *MemStore) Nearby(center mgl64.Vec3, cells int) []EntityID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := s.cellOf(center)
	var out []EntityID
	for dx := -cells; dx <= cells; dx++ {
		for dy := -cells; dy <= cells; dy++ {
			for dz := -cells; dz <= cells; dz++ {
				for id := range s.cells[cellKey{c[0] + dx, c[1] + dy, c[2] + dz}] {
					out = append(out, id)
				}
			}
		}
	}
	slices.SortFunc(out, compareIDs)
	return out
}

// Entities returns every live entity ordered by id.
func (s *MemStore) Entities() []EntityID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]EntityID, 0, len(s.entities))
	for id := range s.entities {
		out = append(out, id)
	}
	slices.SortFunc(out, compareIDs)
	return out
}
