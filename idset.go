package conduit

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMalformedIDSet is returned when an id-set record cannot be decoded.
var ErrMalformedIDSet = errors.New("conduit: malformed id set")

// idRecordSize is the encoded size of one EntityID (int64 user + uint32 counter).
const idRecordSize = 12

// IDSet is an insertion-ordered set of entity ids.
// It backs a conduit's neighbour list and a container's linked conduits.
//
// The zero value is an empty set ready to use.
type IDSet struct {
	ids   []EntityID
	index map[EntityID]int
}

// NewIDSet creates a set holding the given ids. Duplicates are collapsed.
func NewIDSet(ids ...EntityID) *IDSet {
	s := &IDSet{}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add adds an id to the set. It returns false if the id was already present
// or is None.
func (s *IDSet) Add(id EntityID) bool {
	if id.IsNone() {
		return false
	}
	if s.index == nil {
		s.index = make(map[EntityID]int)
	}
	if _, ok := s.index[id]; ok {
		return false
	}
	s.index[id] = len(s.ids)
	s.ids = append(s.ids, id)
	return true
}

// Remove removes an id from the set. It returns false if the id was absent.
func (s *IDSet) Remove(id EntityID) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}
	delete(s.index, id)
	copy(s.ids[i:], s.ids[i+1:])
	s.ids = s.ids[:len(s.ids)-1]
	for j := i; j < len(s.ids); j++ {
		s.index[s.ids[j]] = j
	}
	return true
}

// Has checks if an id is in the set.
func (s *IDSet) Has(id EntityID) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[id]
	return ok
}

// Len returns the number of ids in the set.
func (s *IDSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// IDs returns a copy of the ids in insertion order.
func (s *IDSet) IDs() []EntityID {
	if s == nil || len(s.ids) == 0 {
		return nil
	}
	out := make([]EntityID, len(s.ids))
	copy(out, s.ids)
	return out
}

// Equal returns true if both sets hold the same ids, ignoring order.
func (s *IDSet) Equal(other *IDSet) bool {
	if s.Len() != other.Len() {
		return false
	}
	for _, id := range s.IDs() {
		if !other.Has(id) {
			return false
		}
	}
	return true
}

// Encode returns the binary record for the set: a little-endian int32 count
// followed by count (int64 user, uint32 counter) pairs.
func (s *IDSet) Encode() []byte {
	n := s.Len()
	buf := make([]byte, 4+n*idRecordSize)
	binary.LittleEndian.PutUint32(buf, uint32(int32(n)))
	off := 4
	for _, id := range s.IDs() {
		binary.LittleEndian.PutUint64(buf[off:], uint64(id.UserID))
		binary.LittleEndian.PutUint32(buf[off+8:], id.ID)
		off += idRecordSize
	}
	return buf
}

// DecodeIDSet decodes a record produced by IDSet.Encode.
// Nil or empty input decodes to an empty set.
func DecodeIDSet(b []byte) (*IDSet, error) {
	s := &IDSet{}
	if len(b) == 0 {
		return s, nil
	}
	if len(b) < 4 {
		return s, fmt.Errorf("%w: %d byte header", ErrMalformedIDSet, len(b))
	}
	count := int32(binary.LittleEndian.Uint32(b))
	if count < 0 {
		return &IDSet{}, fmt.Errorf("%w: negative count %d", ErrMalformedIDSet, count)
	}
	if need := 4 + int(count)*idRecordSize; len(b) < need {
		return &IDSet{}, fmt.Errorf("%w: need %d bytes, have %d", ErrMalformedIDSet, need, len(b))
	}
	off := 4
	for range count {
		s.Add(EntityID{
			UserID: int64(binary.LittleEndian.Uint64(b[off:])),
			ID:     binary.LittleEndian.Uint32(b[off+8:]),
		})
		off += idRecordSize
	}
	return s, nil
}
