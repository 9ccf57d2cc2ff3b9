package message

import (
	"math/bits"

	"github.com/robert-malhotra/imslink/internal/binary"
)

// DatatypeClass is the datatype class number.
type DatatypeClass uint8

const (
	ClassFixedPoint DatatypeClass = 0
	ClassFloatPoint DatatypeClass = 1
	ClassTime       DatatypeClass = 2
	ClassString     DatatypeClass = 3
	ClassBitfield   DatatypeClass = 4
	ClassOpaque     DatatypeClass = 5
	ClassCompound   DatatypeClass = 6
	ClassReference  DatatypeClass = 7
	ClassEnum       DatatypeClass = 8
	ClassVarLen     DatatypeClass = 9
	ClassArray      DatatypeClass = 10
)

type ByteOrder uint8

const (
	OrderLE ByteOrder = 0
	OrderBE ByteOrder = 1
)

type StringPadding uint8

const (
	PadNullTerm StringPadding = 0
	PadNullPad  StringPadding = 1
	PadSpacePad StringPadding = 2
)

type CharacterSet uint8

const (
	CharsetASCII CharacterSet = 0
	CharsetUTF8  CharacterSet = 1
)

// Datatype describes the element type of a dataset or attribute.
type Datatype struct {
	Version   uint8
	Class     DatatypeClass
	ClassBits uint32
	Size      uint32

	ByteOrder    ByteOrder
	Signed       bool
	BitOffset    uint16
	BitPrecision uint16

	StringPadding  StringPadding
	CharSet        CharacterSet
	IsVarLenString bool

	// Members of a compound type.
	Members []CompoundMember
	// Values of an enumeration, in the representation of BaseType.
	Enum []EnumValue
	// ArrayDims is the shape of an array type.
	ArrayDims []uint32
	// BaseType is the element of an array or variable-length type, or
	// the integer type behind an enumeration.
	BaseType *Datatype
	// Tag names an opaque type.
	Tag string

	// Properties holds the raw floating point layout fields.
	Properties []byte
}

type CompoundMember struct {
	Name       string
	ByteOffset uint32
	Type       *Datatype
}

type EnumValue struct {
	Name  string
	Value []byte
}

func (m *Datatype) Type() Type { return TypeDatatype }

func (m *Datatype) IsString() bool {
	return m.Class == ClassString || (m.Class == ClassVarLen && m.IsVarLenString)
}

// memberOffsetBytes is the width of compound member offsets in version 3,
// the fewest bytes that can hold the compound size.
func memberOffsetBytes(size uint32) int {
	if size == 0 {
		return 1
	}
	return (bits.Len32(size)-1)/8 + 1
}

func decodeDatatype(c *cursor) *Datatype {
	head := c.u8()
	m := &Datatype{
		Version:   head >> 4,
		Class:     DatatypeClass(head & 0x0f),
		ClassBits: uint32(c.uint(3)),
		Size:      c.u32(),
	}
	cb := m.ClassBits
	switch m.Class {
	case ClassFixedPoint, ClassBitfield:
		m.ByteOrder = ByteOrder(cb & 0x01)
		m.Signed = cb&0x08 != 0
		m.BitOffset = c.u16()
		m.BitPrecision = c.u16()
	case ClassFloatPoint:
		m.ByteOrder = ByteOrder(cb & 0x01)
		m.Properties = append([]byte(nil), c.bytes(12)...)
	case ClassTime:
		m.ByteOrder = ByteOrder(cb & 0x01)
		m.BitPrecision = c.u16()
	case ClassString:
		m.StringPadding = StringPadding(cb & 0x0f)
		m.CharSet = CharacterSet(cb >> 4 & 0x0f)
	case ClassOpaque:
		m.Tag = c.text(int(cb & 0xff))
	case ClassReference:
	case ClassCompound:
		m.Members = make([]CompoundMember, 0, cb&0xffff)
		for i := 0; i < int(cb&0xffff) && c.err == nil; i++ {
			m.Members = append(m.Members, decodeMember(c, m))
		}
	case ClassEnum:
		m.BaseType = decodeDatatype(c)
		n := int(cb & 0xffff)
		m.Enum = make([]EnumValue, n)
		for i := range m.Enum {
			base := c.off
			m.Enum[i].Name = c.cstring()
			if m.Version < 3 {
				c.align(base, 8)
			}
		}
		for i := range m.Enum {
			m.Enum[i].Value = c.bytes(int(m.BaseType.Size))
		}
	case ClassVarLen:
		m.IsVarLenString = cb&0x0f == 1
		m.StringPadding = StringPadding(cb >> 4 & 0x0f)
		m.CharSet = CharacterSet(cb >> 8 & 0x0f)
		m.BaseType = decodeDatatype(c)
	case ClassArray:
		rank := int(c.u8())
		if m.Version < 3 {
			c.skip(3)
		}
		m.ArrayDims = make([]uint32, rank)
		for i := range m.ArrayDims {
			m.ArrayDims[i] = c.u32()
		}
		if m.Version < 3 {
			c.skip(4 * rank)
		}
		m.BaseType = decodeDatatype(c)
	default:
		c.fail("datatype class %d not supported", m.Class)
	}
	return m
}

// Version 1 members carry a name padded to eight bytes and an old array
// description that is skipped. Version 2 drops the array part and version
// 3 drops the padding and narrows the offset.
func decodeMember(c *cursor, parent *Datatype) CompoundMember {
	base := c.off
	var mb CompoundMember
	mb.Name = c.cstring()
	switch parent.Version {
	case 1:
		c.align(base, 8)
		mb.ByteOffset = c.u32()
		c.skip(28)
	case 2:
		c.align(base, 8)
		mb.ByteOffset = c.u32()
	default:
		mb.ByteOffset = uint32(c.uint(memberOffsetBytes(parent.Size)))
	}
	mb.Type = decodeDatatype(c)
	return mb
}

func (m *Datatype) encode(e *encoder) {
	version := uint8(1)
	switch m.Class {
	case ClassCompound, ClassEnum, ClassArray:
		version = 3
	}
	e.u8(uint8(m.Class) | version<<4)
	e.uint(uint64(m.ClassBits), 3)
	e.u32(m.Size)
	switch m.Class {
	case ClassFixedPoint, ClassBitfield:
		precision := m.BitPrecision
		if precision == 0 {
			precision = uint16(m.Size * 8)
		}
		e.u16(m.BitOffset)
		e.u16(precision)
	case ClassFloatPoint:
		if len(m.Properties) == 12 {
			e.bytes(m.Properties)
		} else {
			e.bytes(ieeeProperties(m.Size))
		}
	case ClassTime:
		e.u16(m.BitPrecision)
	case ClassOpaque:
		tag := make([]byte, m.ClassBits&0xff)
		copy(tag, m.Tag)
		e.bytes(tag)
	case ClassCompound:
		for _, mb := range m.Members {
			e.cstring(mb.Name)
			e.uint(uint64(mb.ByteOffset), memberOffsetBytes(m.Size))
			mb.Type.encode(e)
		}
	case ClassEnum:
		m.BaseType.encode(e)
		for _, v := range m.Enum {
			e.cstring(v.Name)
		}
		for _, v := range m.Enum {
			e.bytes(v.Value)
		}
	case ClassVarLen:
		m.BaseType.encode(e)
	case ClassArray:
		e.u8(uint8(len(m.ArrayDims)))
		for _, d := range m.ArrayDims {
			e.u32(d)
		}
		m.BaseType.encode(e)
	}
}

func (m *Datatype) Serialize(w *binary.Writer) error    { return writeMessage(w, m) }
func (m *Datatype) SerializedSize(w *binary.Writer) int { return encodedSize(w, m) }

// ieeeProperties returns bit offset, precision, exponent location and
// size, mantissa location and size, and exponent bias of IEEE 754 types.
func ieeeProperties(size uint32) []byte {
	switch size {
	case 4:
		return []byte{0, 0, 32, 0, 23, 8, 0, 23, 127, 0, 0, 0}
	case 8:
		return []byte{0, 0, 64, 0, 52, 11, 0, 52, 0xff, 0x03, 0, 0}
	}
	return make([]byte, 12)
}

func NewFixedPointDatatype(size uint32, signed bool, order ByteOrder) *Datatype {
	classBits := uint32(order)
	if signed {
		classBits |= 0x08
	}
	return &Datatype{
		Version:      1,
		Class:        ClassFixedPoint,
		ClassBits:    classBits,
		Size:         size,
		ByteOrder:    order,
		Signed:       signed,
		BitPrecision: uint16(size * 8),
	}
}

// NewFloatDatatype returns an IEEE 754 type of 4 or 8 bytes. The class
// bits set the byte order, normalized mantissas and the sign position.
func NewFloatDatatype(size uint32, order ByteOrder) *Datatype {
	sign := size*8 - 1
	return &Datatype{
		Version:    1,
		Class:      ClassFloatPoint,
		ClassBits:  uint32(order) | 1<<5 | sign<<8,
		Size:       size,
		ByteOrder:  order,
		Properties: ieeeProperties(size),
	}
}

func NewStringDatatype(size uint32, padding StringPadding, charset CharacterSet) *Datatype {
	return &Datatype{
		Version:       1,
		Class:         ClassString,
		ClassBits:     uint32(padding) | uint32(charset)<<4,
		Size:          size,
		StringPadding: padding,
		CharSet:       charset,
	}
}

// NewVarLenStringDatatype returns a null-terminated variable-length
// string. Values are stored as a length and a global heap ID.
func NewVarLenStringDatatype(charset CharacterSet) *Datatype {
	return &Datatype{
		Version:        1,
		Class:          ClassVarLen,
		ClassBits:      1 | uint32(PadNullTerm)<<4 | uint32(charset)<<8,
		Size:           16,
		IsVarLenString: true,
		CharSet:        charset,
		BaseType:       NewStringDatatype(1, PadNullTerm, charset),
	}
}

func NewCompoundDatatype(size uint32, members []CompoundMember) *Datatype {
	return &Datatype{Version: 3, Class: ClassCompound, ClassBits: uint32(len(members)), Size: size, Members: members}
}

func NewArrayDatatype(dims []uint32, base *Datatype) *Datatype {
	size := base.Size
	for _, d := range dims {
		size *= d
	}
	return &Datatype{Version: 3, Class: ClassArray, Size: size, ArrayDims: dims, BaseType: base}
}
