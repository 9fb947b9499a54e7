package conduit

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/klauspost/compress/zstd"
)

// snapshotVersion is the current snapshot format version.
const snapshotVersion = 1

// SnapshotHeader is written as a JSON line ahead of the snapshot body so tools
// can inspect a snapshot without decoding it.
type SnapshotHeader struct {
	Version  int `json:"version"`
	Entities int `json:"entities"`
}

// EntityRecord is the saved form of one store entity.
type EntityRecord struct {
	ID       EntityID
	Prefab   string
	Position [3]float64
	Rotation [4]float64 // x, y, z, w

	Ints    map[Field]int
	Strings map[Field]string
	Bytes   map[Field][]byte
	Refs    map[Field]EntityID
}

type snapshotV1 struct {
	Header   SnapshotHeader
	Entities []EntityRecord
}

// Records returns a copy of every entity, ordered by id.
func (s *MemStore) Records() []EntityRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]EntityRecord, 0, len(s.entities))
	for id, e := range s.entities {
		bytes := make(map[Field][]byte, len(e.bytes))
		for f, b := range e.bytes {
			bytes[f] = slices.Clone(b)
		}
		out = append(out, EntityRecord{
			ID:       id,
			Prefab:   e.prefab,
			Position: [3]float64(e.position),
			Rotation: [4]float64{e.rotation.V[0], e.rotation.V[1], e.rotation.V[2], e.rotation.W},
			Ints:     maps.Clone(e.ints),
			Strings:  maps.Clone(e.strings),
			Bytes:    bytes,
			Refs:     maps.Clone(e.refs),
		})
	}
	slices.SortFunc(out, func(a, b EntityRecord) int { return compareIDs(a.ID, b.ID) })
	return out
}

// Restore spawns an entity from a saved record, replacing any entity with the
// same id.
func (s *MemStore) Restore(r EntityRecord) {
	rot := mgl64.Quat{W: r.Rotation[3], V: mgl64.Vec3{r.Rotation[0], r.Rotation[1], r.Rotation[2]}}
	s.Spawn(r.ID, r.Prefab, mgl64.Vec3(r.Position), rot)

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[r.ID]
	if !ok {
		return
	}
	maps.Copy(e.ints, r.Ints)
	maps.Copy(e.strings, r.Strings)
	for f, b := range r.Bytes {
		e.bytes[f] = slices.Clone(b)
	}
	maps.Copy(e.refs, r.Refs)
}

// WriteSnapshot writes every entity of s to w as a zstd compressed stream:
// a JSON header line followed by a gob body.
func WriteSnapshot(w io.Writer, s *MemStore) error {
	snap := snapshotV1{Entities: s.Records()}
	snap.Header = SnapshotHeader{Version: snapshotVersion, Entities: len(snap.Entities)}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, err := json.Marshal(snap.Header)
	if err != nil {
		_ = enc.Close()
		return err
	}
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("conduit: gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// ReadSnapshot reads a snapshot written by WriteSnapshot into a new MemStore
// with the given cell size.
func ReadSnapshot(r io.Reader, cellSize float64) (*MemStore, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	br := bufio.NewReaderSize(dec, 64*1024)

	line, err := br.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("conduit: snapshot header: %w", err)
	}
	var hdr SnapshotHeader
	if err := json.Unmarshal(line, &hdr); err != nil {
		return nil, fmt.Errorf("conduit: snapshot header: %w", err)
	}
	if hdr.Version != snapshotVersion {
		return nil, fmt.Errorf("conduit: unsupported snapshot version %d", hdr.Version)
	}

	var snap snapshotV1
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return nil, fmt.Errorf("conduit: gob decode: %w", err)
	}
	s := NewMemStore(cellSize)
	for _, rec := range snap.Entities {
		s.Restore(rec)
	}
	return s, nil
}
