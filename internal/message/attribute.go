package message

import "github.com/robert-malhotra/imslink/internal/binary"

// Attribute is a small named value stored in an object header.
type Attribute struct {
	Version   uint8
	Name      string
	Datatype  *Datatype
	Dataspace *Dataspace
	Data      []byte
}

func (m *Attribute) Type() Type { return TypeAttribute }

// Version 1 pads the name, datatype and dataspace to eight bytes. Version
// 3 adds the name character set.
func decodeAttribute(c *cursor) *Attribute {
	m := &Attribute{Version: c.u8()}
	if m.Version < 1 || m.Version > 3 {
		c.fail("attribute version %d not supported", m.Version)
		return m
	}
	flags := c.u8()
	if m.Version == 1 {
		flags = 0
	}
	if flags&0x03 != 0 {
		c.fail("attribute with shared datatype or dataspace not supported")
		return m
	}
	nameSize := int(c.u16())
	typeSize := int(c.u16())
	spaceSize := int(c.u16())
	if m.Version == 3 {
		c.skip(1)
	}
	pad := func(n int) int {
		if m.Version == 1 {
			return (n + 7) &^ 7
		}
		return n
	}

	m.Name = c.text(pad(nameSize))
	tc := c.sub(pad(typeSize))
	m.Datatype = decodeDatatype(tc)
	c.adopt(tc)
	sc := c.sub(pad(spaceSize))
	m.Dataspace = decodeDataspace(sc)
	c.adopt(sc)
	if c.err != nil {
		return m
	}

	n := uint64(c.remaining())
	if want := m.dataSize(); want < n {
		n = want
	}
	m.Data = append([]byte(nil), c.bytes(int(n))...)
	return m
}

// dataSize is the size of the value as stored.
func (m *Attribute) dataSize() uint64 {
	return m.Dataspace.NumElements() * uint64(m.Datatype.Size)
}

// encode writes version 3 with an ASCII name.
func (m *Attribute) encode(e *encoder) {
	te := &encoder{offsetSize: e.offsetSize, lengthSize: e.lengthSize}
	m.Datatype.encode(te)
	se := &encoder{offsetSize: e.offsetSize, lengthSize: e.lengthSize}
	m.Dataspace.encode(se)

	e.u8(3)
	e.u8(0)
	e.u16(uint16(len(m.Name) + 1))
	e.u16(uint16(len(te.b)))
	e.u16(uint16(len(se.b)))
	e.u8(uint8(CharsetASCII))
	e.cstring(m.Name)
	e.bytes(te.b)
	e.bytes(se.b)
	e.bytes(m.Data)
}

func (m *Attribute) Serialize(w *binary.Writer) error    { return writeMessage(w, m) }
func (m *Attribute) SerializedSize(w *binary.Writer) int { return encodedSize(w, m) }

func NewAttribute(name string, datatype *Datatype, dataspace *Dataspace, data []byte) *Attribute {
	return &Attribute{Version: 3, Name: name, Datatype: datatype, Dataspace: dataspace, Data: data}
}
