package binary

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

// buffer is an io.WriterAt and io.ReaderAt over a growing byte slice.
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

func TestRoundTrip(t *testing.T) {
	for _, sizes := range [][2]int{{8, 8}, {4, 8}, {2, 4}} {
		cfg := Config{ByteOrder: binary.LittleEndian, OffsetSize: sizes[0], LengthSize: sizes[1]}
		buf := &buffer{}
		w := NewWriter(buf, cfg)

		steps := []error{
			w.WriteUint8(0xab),
			w.WriteUint16(0x1234),
			w.WriteUint32(0xdeadbeef),
			w.WriteUint64(0x0102030405060708),
			w.WriteOffset(0x0bad),
			w.WriteLength(0x7ff),
			w.WriteUintN(0x030201, 3),
			w.WriteUndefinedOffset(),
			w.WriteZeros(5),
			w.WriteBytes([]byte("FADB")),
		}
		for i, err := range steps {
			if err != nil {
				t.Fatalf("sizes %v: write %d: %v", sizes, i, err)
			}
		}
		want := int64(1 + 2 + 4 + 8 + sizes[0] + sizes[1] + 3 + sizes[0] + 5 + 4)
		if w.Pos() != want || int64(len(buf.b)) != want {
			t.Fatalf("sizes %v: wrote %d bytes, position %d, want %d", sizes, len(buf.b), w.Pos(), want)
		}

		r := NewReader(buf, cfg)
		u8, _ := r.ReadUint8()
		u16, _ := r.ReadUint16()
		u32, _ := r.ReadUint32()
		u64, _ := r.ReadUint64()
		off, _ := r.ReadOffset()
		length, _ := r.ReadLength()
		odd, _ := r.ReadUintN(3)
		undef, _ := r.ReadOffset()
		r.Skip(5)
		sig, err := r.ReadBytes(4)
		if err != nil {
			t.Fatalf("sizes %v: %v", sizes, err)
		}

		if u8 != 0xab || u16 != 0x1234 || u32 != 0xdeadbeef || u64 != 0x0102030405060708 {
			t.Errorf("sizes %v: fixed width values %x %x %x %x", sizes, u8, u16, u32, u64)
		}
		if off != 0x0bad || length != 0x7ff || odd != 0x030201 {
			t.Errorf("sizes %v: offset %x length %x odd %x", sizes, off, length, odd)
		}
		if !r.IsUndefinedOffset(undef) || undef != w.UndefinedOffset() {
			t.Errorf("sizes %v: undefined offset read as %x", sizes, undef)
		}
		if string(sig) != "FADB" {
			t.Errorf("sizes %v: signature %q", sizes, sig)
		}
	}
}

func TestUndefinedValues(t *testing.T) {
	for size, want := range map[int]uint64{2: 0xffff, 4: 0xffffffff, 8: ^uint64(0)} {
		w := NewWriter(&buffer{}, Config{ByteOrder: binary.LittleEndian, OffsetSize: size, LengthSize: size})
		if w.UndefinedOffset() != want || w.UndefinedLength() != want {
			t.Errorf("size %d: got %x/%x, want %x", size, w.UndefinedOffset(), w.UndefinedLength(), want)
		}
	}
}

func TestBigEndian(t *testing.T) {
	buf := &buffer{}
	cfg := Config{ByteOrder: binary.BigEndian, OffsetSize: 4, LengthSize: 4}
	if err := NewWriter(buf, cfg).WriteUint32(0x01020304); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf.b, []byte{1, 2, 3, 4}) {
		t.Errorf("got % x", buf.b)
	}
	v, err := NewReader(buf, cfg).ReadOffset()
	if err != nil || v != 0x01020304 {
		t.Errorf("ReadOffset = %x, %v", v, err)
	}
}

func TestReaderPositioning(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	r := NewReader(bytes.NewReader(data), DefaultConfig())

	sub := r.At(9)
	if b, _ := sub.ReadUint8(); b != 9 || sub.Pos() != 10 || r.Pos() != 0 {
		t.Errorf("At: read %d, positions %d/%d", b, sub.Pos(), r.Pos())
	}

	r.Skip(3)
	r.Align(8)
	if r.Pos() != 8 {
		t.Errorf("Align from 3: got %d, want 8", r.Pos())
	}
	r.Align(8)
	if r.Pos() != 8 {
		t.Errorf("Align when aligned moved to %d", r.Pos())
	}

	peek, err := r.Peek(2)
	if err != nil || !bytes.Equal(peek, []byte{8, 9}) || r.Pos() != 8 {
		t.Errorf("Peek = %v, %v at %d", peek, err, r.Pos())
	}

	r.Skip(7)
	if _, err := r.ReadUint32(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("short read: got %v, want io.ErrUnexpectedEOF", err)
	}
	if r.Pos() != 15 {
		t.Errorf("failed read moved to %d", r.Pos())
	}
	if b, err := r.ReadBytes(0); b != nil || err != nil {
		t.Errorf("ReadBytes(0) = %v, %v", b, err)
	}
}
