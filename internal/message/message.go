// Package message decodes and encodes the object header messages a linked
// Imaris container touches: dataspace, datatype, data layout, filter
// pipeline, attribute, link, link info, group info and symbol table.
// Other message types are kept as opaque bytes.
package message

import (
	"fmt"

	"github.com/robert-malhotra/imslink/internal/binary"
)

// Type is the header message type number.
type Type uint16

const (
	TypeNIL            Type = 0x00
	TypeDataspace      Type = 0x01
	TypeLinkInfo       Type = 0x02
	TypeDatatype       Type = 0x03
	TypeFillValueOld   Type = 0x04
	TypeFillValue      Type = 0x05
	TypeLink           Type = 0x06
	TypeDataLayout     Type = 0x08
	TypeGroupInfo      Type = 0x0A
	TypeFilterPipeline Type = 0x0B
	TypeAttribute      Type = 0x0C
	TypeComment        Type = 0x0D
	TypeModTime        Type = 0x0E
	TypeContinuation   Type = 0x10
	TypeSymbolTable    Type = 0x11
	TypeModTimeOld     Type = 0x12
	TypeAttributeInfo  Type = 0x15
	TypeRefCount       Type = 0x16
)

// FlagShared marks a message stored in the shared message heap or another
// object header. Its body is a reference, not the message.
const FlagShared = 0x02

// Message is one decoded header message.
type Message interface {
	Type() Type
}

// Serializable is a message the writer can store.
type Serializable interface {
	Message
	Serialize(w *binary.Writer) error
	SerializedSize(w *binary.Writer) int
}

// Parse decodes the body of a header message. Types this package does not
// model, and shared messages, come back as *Unknown.
func Parse(typ Type, data []byte, flags uint8, r *binary.Reader) (Message, error) {
	if flags&FlagShared != 0 {
		return &Unknown{typ: typ, Shared: true, data: data}, nil
	}
	c := newCursor(data, r)
	var m Message
	switch typ {
	case TypeDataspace:
		m = decodeDataspace(c)
	case TypeDatatype:
		m = decodeDatatype(c)
	case TypeDataLayout:
		m = decodeDataLayout(c)
	case TypeFilterPipeline:
		m = decodeFilterPipeline(c)
	case TypeAttribute:
		m = decodeAttribute(c)
	case TypeLink:
		m = decodeLink(c)
	case TypeSymbolTable:
		m = &SymbolTable{BTreeAddress: c.offset(), LocalHeapAddress: c.offset()}
	case TypeContinuation:
		m = &Continuation{Offset: c.offset(), Length: c.length()}
	default:
		return &Unknown{typ: typ, data: data}, nil
	}
	if c.err != nil {
		return nil, fmt.Errorf("message type 0x%02x: %w", uint16(typ), c.err)
	}
	return m, nil
}

// Unknown is a message kept as its raw body.
type Unknown struct {
	typ    Type
	Shared bool
	data   []byte
}

func (m *Unknown) Type() Type   { return m.typ }
func (m *Unknown) Data() []byte { return m.data }

// Continuation points at the next block of header messages.
type Continuation struct {
	Offset uint64
	Length uint64
}

func (m *Continuation) Type() Type { return TypeContinuation }

// ParseContinuation decodes a continuation message body.
func ParseContinuation(data []byte, r *binary.Reader) (*Continuation, error) {
	m, err := Parse(TypeContinuation, data, 0, r)
	if err != nil {
		return nil, err
	}
	return m.(*Continuation), nil
}

// SymbolTable locates the B-tree and local heap of an old style group.
type SymbolTable struct {
	BTreeAddress     uint64
	LocalHeapAddress uint64
}

func (m *SymbolTable) Type() Type { return TypeSymbolTable }

// cursor reads little-endian fields from a message body. The first short
// read sets err; later reads return zeros.
type cursor struct {
	b          []byte
	off        int
	offsetSize int
	lengthSize int
	err        error
}

func newCursor(b []byte, r *binary.Reader) *cursor {
	return &cursor{b: b, offsetSize: r.OffsetSize(), lengthSize: r.LengthSize()}
}

// sub returns a cursor over the next n bytes and advances past them.
func (c *cursor) sub(n int) *cursor {
	return &cursor{b: c.bytes(n), offsetSize: c.offsetSize, lengthSize: c.lengthSize, err: c.err}
}

// adopt takes over the error of a sub cursor.
func (c *cursor) adopt(s *cursor) {
	if c.err == nil {
		c.err = s.err
	}
}

func (c *cursor) fail(format string, args ...any) {
	if c.err == nil {
		c.err = fmt.Errorf(format, args...)
	}
}

func (c *cursor) remaining() int { return len(c.b) - c.off }

func (c *cursor) bytes(n int) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || n > c.remaining() {
		c.fail("truncated: need %d bytes at %d, have %d", n, c.off, c.remaining())
		return nil
	}
	b := c.b[c.off : c.off+n]
	c.off += n
	return b
}

func (c *cursor) skip(n int) { c.bytes(n) }

func (c *cursor) uint(n int) uint64 {
	var v uint64
	b := c.bytes(n)
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func (c *cursor) u8() uint8   { return uint8(c.uint(1)) }
func (c *cursor) u16() uint16 { return uint16(c.uint(2)) }
func (c *cursor) u32() uint32 { return uint32(c.uint(4)) }
func (c *cursor) offset() uint64 {
	return c.uint(c.offsetSize)
}
func (c *cursor) length() uint64 {
	return c.uint(c.lengthSize)
}

// text reads n bytes and cuts them at the first NUL.
func (c *cursor) text(n int) string {
	b := c.bytes(n)
	for i, ch := range b {
		if ch == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// cstring reads a NUL-terminated string, consuming the terminator.
func (c *cursor) cstring() string {
	if c.err != nil {
		return ""
	}
	for i := c.off; i < len(c.b); i++ {
		if c.b[i] == 0 {
			s := string(c.b[c.off:i])
			c.off = i + 1
			return s
		}
	}
	c.fail("unterminated string at %d", c.off)
	return ""
}

// align skips to the next multiple of n counted from base.
func (c *cursor) align(base, n int) {
	if pad := (c.off - base) % n; pad != 0 {
		c.skip(n - pad)
	}
}

// encoder builds a message body.
type encoder struct {
	b          []byte
	offsetSize int
	lengthSize int
}

func newEncoder(w *binary.Writer) *encoder {
	if w == nil {
		return &encoder{offsetSize: 8, lengthSize: 8}
	}
	return &encoder{offsetSize: w.OffsetSize(), lengthSize: w.LengthSize()}
}

func (e *encoder) uint(v uint64, n int) {
	for i := 0; i < n; i++ {
		e.b = append(e.b, byte(v>>(8*i)))
	}
}

func (e *encoder) u8(v uint8)       { e.b = append(e.b, v) }
func (e *encoder) u16(v uint16)     { e.uint(uint64(v), 2) }
func (e *encoder) u32(v uint32)     { e.uint(uint64(v), 4) }
func (e *encoder) offset(v uint64)  { e.uint(v, e.offsetSize) }
func (e *encoder) length(v uint64)  { e.uint(v, e.lengthSize) }
func (e *encoder) bytes(b []byte)   { e.b = append(e.b, b...) }
func (e *encoder) cstring(s string) { e.b = append(append(e.b, s...), 0) }

// sizeBytes is the smallest of 1, 2, 4 or 8 bytes that holds v.
func sizeBytes(v uint64) int {
	switch {
	case v <= 0xff:
		return 1
	case v <= 0xffff:
		return 2
	case v <= 0xffffffff:
		return 4
	}
	return 8
}

type encodable interface {
	encode(e *encoder)
}

func writeMessage(w *binary.Writer, m encodable) error {
	e := newEncoder(w)
	m.encode(e)
	return w.WriteBytes(e.b)
}

func encodedSize(w *binary.Writer, m encodable) int {
	e := newEncoder(w)
	m.encode(e)
	return len(e.b)
}

// UndefinedAddress is the all-ones address of 8-byte offsets.
const UndefinedAddress = ^uint64(0)
