package conduit

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestIDSetOrderAndRemove(t *testing.T) {
	a, b, c := EntityID{1, 1}, EntityID{1, 2}, EntityID{2, 1}
	s := NewIDSet(a, b, a, None, c)
	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3", s.Len())
	}
	if !s.Remove(b) || s.Remove(b) {
		t.Fatalf("Remove(b) should succeed once")
	}
	ids := s.IDs()
	if len(ids) != 2 || ids[0] != a || ids[1] != c {
		t.Fatalf("IDs = %v, want [%v %v]", ids, a, c)
	}
	if !s.Has(c) || s.Has(b) {
		t.Fatalf("Has mismatch after Remove")
	}
	if !s.Add(b) || s.IDs()[2] != b {
		t.Fatalf("re-added id should go last: %v", s.IDs())
	}

	var nilSet *IDSet
	if nilSet.Len() != 0 || nilSet.Has(a) || nilSet.IDs() != nil {
		t.Fatalf("nil set should read as empty")
	}
}

func TestIDSetEncodeDecode(t *testing.T) {
	s := NewIDSet(EntityID{-7, 1}, EntityID{1 << 40, 4_000_000_000})
	buf := s.Encode()
	if len(buf) != 4+2*idRecordSize {
		t.Fatalf("encoded length = %d", len(buf))
	}
	got, err := DecodeIDSet(buf)
	if err != nil {
		t.Fatalf("DecodeIDSet: %v", err)
	}
	if !got.Equal(s) || got.IDs()[0] != s.IDs()[0] {
		t.Fatalf("decoded %v, want %v", got.IDs(), s.IDs())
	}

	empty, err := DecodeIDSet(nil)
	if err != nil || empty.Len() != 0 {
		t.Fatalf("DecodeIDSet(nil) = %v, %v", empty.IDs(), err)
	}
	zero, err := DecodeIDSet((&IDSet{}).Encode())
	if err != nil || zero.Len() != 0 {
		t.Fatalf("decode of empty record = %v, %v", zero.IDs(), err)
	}
}

func TestDecodeIDSetMalformed(t *testing.T) {
	negative := make([]byte, 4)
	binary.LittleEndian.PutUint32(negative, uint32(0xFFFFFFFF))

	short := make([]byte, 4+idRecordSize)
	binary.LittleEndian.PutUint32(short, 2)

	cases := map[string][]byte{
		"header":   {1, 0, 0},
		"negative": negative,
		"short":    short,
	}
	for name, buf := range cases {
		s, err := DecodeIDSet(buf)
		if !errors.Is(err, ErrMalformedIDSet) {
			t.Fatalf("%s: err = %v, want ErrMalformedIDSet", name, err)
		}
		if s.Len() != 0 {
			t.Fatalf("%s: decoded %d ids from a malformed record", name, s.Len())
		}
	}
}

func TestDecodeIDSetCollapsesDuplicates(t *testing.T) {
	buf := make([]byte, 4+2*idRecordSize)
	binary.LittleEndian.PutUint32(buf, 2)
	for i := 0; i < 2; i++ {
		off := 4 + i*idRecordSize
		binary.LittleEndian.PutUint64(buf[off:], 9)
		binary.LittleEndian.PutUint32(buf[off+8:], 3)
	}
	s, err := DecodeIDSet(buf)
	if err != nil {
		t.Fatalf("DecodeIDSet: %v", err)
	}
	if s.Len() != 1 || !s.Has(EntityID{9, 3}) {
		t.Fatalf("decoded %v, want one id", s.IDs())
	}
}

func TestEntityIDString(t *testing.T) {
	id := EntityID{UserID: -12, ID: 99}
	if id.String() != "-12:99" {
		t.Fatalf("String = %q", id.String())
	}
	got, err := ParseEntityID(id.String())
	if err != nil || got != id {
		t.Fatalf("ParseEntityID = %v, %v", got, err)
	}
	for _, s := range []string{"", "12", "a:1", "1:-1", "1:4294967296"} {
		if _, err := ParseEntityID(s); err == nil {
			t.Fatalf("ParseEntityID(%q) succeeded", s)
		}
	}
}
