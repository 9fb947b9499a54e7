package conduit

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

// EntityID is the stable identity of an entity in the host store.
// It pairs the id of the peer that created the entity with a per-peer counter.
type EntityID struct {
	UserID int64
	ID     uint32
}

// None is the empty EntityID. It is used for unset references.
var None EntityID

// IsNone returns true if the id is unset.
func (id EntityID) IsNone() bool {
	return id == None
}

// String returns the id as "user:id".
func (id EntityID) String() string {
	return strconv.FormatInt(id.UserID, 10) + ":" + strconv.FormatUint(uint64(id.ID), 10)
}

// ParseEntityID parses an id in the form produced by EntityID.String.
func ParseEntityID(s string) (EntityID, error) {
	user, counter, ok := strings.Cut(s, ":")
	if !ok {
		return None, fmt.Errorf("conduit: malformed entity id %q", s)
	}
	u, err := strconv.ParseInt(user, 10, 64)
	if err != nil {
		return None, fmt.Errorf("conduit: malformed entity id %q: %w", s, err)
	}
	c, err := strconv.ParseUint(counter, 10, 32)
	if err != nil {
		return None, fmt.Errorf("conduit: malformed entity id %q: %w", s, err)
	}
	return EntityID{UserID: u, ID: uint32(c)}, nil
}

// compareIDs orders ids by user, then counter.
func compareIDs(a, b EntityID) int {
	if c := cmp.Compare(a.UserID, b.UserID); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
