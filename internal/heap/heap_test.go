package heap

import (
	"bytes"
	"strings"
	"testing"

	"github.com/robert-malhotra/imslink/internal/binary"
)

type buffer struct{ b []byte }

func (m *buffer) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(m.b) {
		m.b = append(m.b, make([]byte, end-len(m.b))...)
	}
	return copy(m.b[off:], p), nil
}

func (m *buffer) ReadAt(p []byte, off int64) (int, error) {
	return bytes.NewReader(m.b).ReadAt(p, off)
}

// writeLocal lays out a local heap header at 0x10 with its segment at 0x40.
func writeLocal(buf *buffer, segment []byte) {
	w := binary.NewWriter(buf, binary.DefaultConfig()).At(0x10)
	w.WriteBytes([]byte("HEAP"))
	w.WriteZeros(4)
	w.WriteLength(uint64(len(segment)))
	w.WriteLength(0)
	w.WriteOffset(0x40)
	w.At(0x40).WriteBytes(segment)
}

func TestLocalHeap(t *testing.T) {
	buf := &buffer{}
	writeLocal(buf, []byte("\x00DataSet\x00DataSetInfo\x00Thumbnail"))

	h, err := ReadLocalHeap(binary.NewReader(buf, binary.DefaultConfig()), 0x10)
	if err != nil {
		t.Fatalf("ReadLocalHeap: %v", err)
	}
	for off, want := range map[uint64]string{
		0:  "",
		1:  "DataSet",
		4:  "aSet",
		9:  "DataSetInfo",
		21: "Thumbnail",
		99: "",
	} {
		if got := h.Name(off); got != want {
			t.Errorf("Name(%d) = %q, want %q", off, got, want)
		}
	}
}

func TestLocalHeapErrors(t *testing.T) {
	buf := &buffer{}
	writeLocal(buf, []byte("x\x00"))
	buf.b[0x14] = 1
	if _, err := ReadLocalHeap(binary.NewReader(buf, binary.DefaultConfig()), 0x10); err == nil {
		t.Error("expected version error")
	}

	buf.b[0x10] = 'X'
	if _, err := ReadLocalHeap(binary.NewReader(buf, binary.DefaultConfig()), 0x10); err == nil {
		t.Error("expected signature error")
	}

	if _, err := ReadLocalHeap(binary.NewReader(buf, binary.DefaultConfig()), 0x1000); err == nil {
		t.Error("expected read error past the end")
	}
}

// writeCollection writes a global heap collection at addr holding objs as
// indexes 1..n.
func writeCollection(buf *buffer, addr int64, objs ...string) {
	w := binary.NewWriter(buf, binary.DefaultConfig())
	body := int64(16)
	for _, o := range objs {
		body += 16 + int64((len(o)+7)&^7)
	}
	size := body + 16 // trailing free space object
	hw := w.At(addr)
	hw.WriteBytes([]byte("GCOL"))
	hw.WriteUint8(1)
	hw.WriteZeros(3)
	hw.WriteLength(uint64(size))
	for i, o := range objs {
		hw.WriteUint16(uint16(i + 1))
		hw.WriteUint16(1)
		hw.WriteZeros(4)
		hw.WriteLength(uint64(len(o)))
		hw.WriteBytes([]byte(o))
		hw.WriteZeros((8 - len(o)%8) % 8)
	}
	hw.WriteZeros(16)
}

func TestCollection(t *testing.T) {
	buf := &buffer{}
	writeCollection(buf, 0x100, "488", "Exc\x00tra", "", strings.Repeat("z", 9))

	c, err := ReadCollection(binary.NewReader(buf, binary.DefaultConfig()), 0x100)
	if err != nil {
		t.Fatalf("ReadCollection: %v", err)
	}
	for idx, want := range map[uint32]string{1: "488", 2: "Exc", 3: "", 4: "zzzzzzzzz"} {
		got, err := c.String(idx)
		if err != nil || got != want {
			t.Errorf("String(%d) = %q, %v; want %q", idx, got, err, want)
		}
	}

	obj, err := c.Object(2)
	if err != nil || string(obj) != "Exc\x00tra" {
		t.Fatalf("Object(2) = %q, %v", obj, err)
	}
	obj[0] = 'X'
	if again, _ := c.Object(2); again[0] != 'E' {
		t.Error("Object returned the stored slice")
	}

	if _, err := c.Object(7); err == nil {
		t.Error("expected error for a missing object")
	}
	if _, err := c.String(1 << 16); err == nil {
		t.Error("expected error for an index past 16 bits")
	}
}

func TestCollectionErrors(t *testing.T) {
	buf := &buffer{}
	writeCollection(buf, 0, "a")
	r := binary.NewReader(buf, binary.DefaultConfig())

	if _, err := ReadCollection(r, 0); err == nil {
		t.Error("expected error for address 0")
	}
	if _, err := ReadCollection(r, 0xffffffffffffffff); err == nil {
		t.Error("expected error for the undefined address")
	}
}

func TestParseID(t *testing.T) {
	raw := []byte{0x00, 0x10, 0, 0, 0, 0, 0, 0, 3, 0, 0, 0}
	id, err := ParseID(raw, 8)
	if err != nil {
		t.Fatalf("ParseID: %v", err)
	}
	if id.Collection != 0x1000 || id.Index != 3 || id.IsNull() {
		t.Errorf("ParseID = %+v", id)
	}

	id, err = ParseID([]byte{0x34, 0x12, 0, 0, 9, 0, 0, 0}, 4)
	if err != nil || id.Collection != 0x1234 || id.Index != 9 {
		t.Errorf("ParseID 4-byte = %+v, %v", id, err)
	}

	if _, err := ParseID(raw[:10], 8); err == nil {
		t.Error("expected error for a short ID")
	}
	if _, err := ParseID(raw, 3); err == nil {
		t.Error("expected error for offset size 3")
	}
	if !(ID{}).IsNull() {
		t.Error("zero ID should be null")
	}
}
