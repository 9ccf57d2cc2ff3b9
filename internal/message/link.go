package message

import "github.com/robert-malhotra/imslink/internal/binary"

type LinkType uint8

const (
	LinkTypeHard     LinkType = 0
	LinkTypeSoft     LinkType = 1
	LinkTypeExternal LinkType = 64
)

// Link is one member of a new style group.
type Link struct {
	Version       uint8
	LinkType      LinkType
	CreationOrder uint64
	Name          string
	Charset       CharacterSet

	ObjectAddress uint64
	SoftLinkValue string
	ExternalFile  string
	ExternalPath  string
}

func (m *Link) Type() Type { return TypeLink }

func (m *Link) IsHard() bool     { return m.LinkType == LinkTypeHard }
func (m *Link) IsSoft() bool     { return m.LinkType == LinkTypeSoft }
func (m *Link) IsExternal() bool { return m.LinkType == LinkTypeExternal }

// Link message flags.
const (
	linkNameWidth     = 0x03
	linkHasOrder      = 0x04
	linkHasType       = 0x08
	linkHasCharset    = 0x10
	externalLinkFlags = 0x00
)

func decodeLink(c *cursor) *Link {
	m := &Link{Version: c.u8()}
	if m.Version != 1 {
		c.fail("link version %d not supported", m.Version)
		return m
	}
	flags := c.u8()
	if flags&linkHasType != 0 {
		m.LinkType = LinkType(c.u8())
	}
	if flags&linkHasOrder != 0 {
		m.CreationOrder = c.uint(8)
	}
	if flags&linkHasCharset != 0 {
		m.Charset = CharacterSet(c.u8())
	}
	m.Name = string(c.bytes(int(c.uint(1 << (flags & linkNameWidth)))))

	switch m.LinkType {
	case LinkTypeHard:
		m.ObjectAddress = c.offset()
	case LinkTypeSoft:
		m.SoftLinkValue = string(c.bytes(int(c.u16())))
	case LinkTypeExternal:
		// A version and flags byte, then the file and object paths, each
		// NUL terminated.
		ec := c.sub(int(c.u16()))
		if v := ec.u8(); v>>4 != 0 {
			ec.fail("external link version %d not supported", v>>4)
		}
		m.ExternalFile = ec.cstring()
		m.ExternalPath = ec.cstring()
		c.adopt(ec)
	default:
		c.fail("link type %d not supported", m.LinkType)
	}
	return m
}

func (m *Link) encode(e *encoder) {
	width := sizeBytes(uint64(len(m.Name)))
	flags := uint8(bitsFor(width))
	if m.LinkType != LinkTypeHard {
		flags |= linkHasType
	}
	if m.Charset != CharsetASCII {
		flags |= linkHasCharset
	}
	e.u8(1)
	e.u8(flags)
	if flags&linkHasType != 0 {
		e.u8(uint8(m.LinkType))
	}
	if flags&linkHasCharset != 0 {
		e.u8(uint8(m.Charset))
	}
	e.uint(uint64(len(m.Name)), width)
	e.bytes([]byte(m.Name))
	switch m.LinkType {
	case LinkTypeHard:
		e.offset(m.ObjectAddress)
	case LinkTypeSoft:
		e.u16(uint16(len(m.SoftLinkValue)))
		e.bytes([]byte(m.SoftLinkValue))
	case LinkTypeExternal:
		e.u16(uint16(1 + len(m.ExternalFile) + 1 + len(m.ExternalPath) + 1))
		e.u8(externalLinkFlags)
		e.cstring(m.ExternalFile)
		e.cstring(m.ExternalPath)
	}
}

// bitsFor maps a field width of 1, 2, 4 or 8 bytes to its flag value.
func bitsFor(width int) int {
	switch width {
	case 2:
		return 1
	case 4:
		return 2
	case 8:
		return 3
	}
	return 0
}

func (m *Link) Serialize(w *binary.Writer) error    { return writeMessage(w, m) }
func (m *Link) SerializedSize(w *binary.Writer) int { return encodedSize(w, m) }

func NewHardLink(name string, addr uint64) *Link {
	return &Link{Version: 1, LinkType: LinkTypeHard, Name: name, ObjectAddress: addr}
}

func NewSoftLink(name, target string) *Link {
	return &Link{Version: 1, LinkType: LinkTypeSoft, Name: name, SoftLinkValue: target}
}

// NewExternalLink links name to the object at path inside file. The file
// name is resolved by readers relative to the linking file.
func NewExternalLink(name, file, path string) *Link {
	return &Link{Version: 1, LinkType: LinkTypeExternal, Name: name, ExternalFile: file, ExternalPath: path}
}

// LinkInfo opens the link storage of a new style group. The writer keeps
// links compact in the object header, so the heap and index addresses are
// undefined.
type LinkInfo struct {
	Flags              uint8
	MaxCreationIndex   uint64
	FractalHeapAddr    uint64
	NameIndexBTreeAddr uint64
	OrderIndexAddr     uint64
}

func (m *LinkInfo) Type() Type { return TypeLinkInfo }

func (m *LinkInfo) encode(e *encoder) {
	e.u8(0)
	e.u8(m.Flags)
	if m.Flags&0x01 != 0 {
		e.uint(m.MaxCreationIndex, 8)
	}
	e.offset(m.FractalHeapAddr)
	e.offset(m.NameIndexBTreeAddr)
	if m.Flags&0x02 != 0 {
		e.offset(m.OrderIndexAddr)
	}
}

func (m *LinkInfo) Serialize(w *binary.Writer) error    { return writeMessage(w, m) }
func (m *LinkInfo) SerializedSize(w *binary.Writer) int { return encodedSize(w, m) }

func NewLinkInfo() *LinkInfo {
	return &LinkInfo{FractalHeapAddr: UndefinedAddress, NameIndexBTreeAddr: UndefinedAddress}
}

// GroupInfo carries the storage thresholds of a new style group. The
// writer stores none, leaving library defaults.
type GroupInfo struct {
	Flags           uint8
	MaxCompactLinks uint16
	MinDenseLinks   uint16
	EstEntries      uint16
	EstNameLen      uint16
}

func (m *GroupInfo) Type() Type { return TypeGroupInfo }

func (m *GroupInfo) encode(e *encoder) {
	e.u8(0)
	e.u8(m.Flags)
	if m.Flags&0x01 != 0 {
		e.u16(m.MaxCompactLinks)
		e.u16(m.MinDenseLinks)
	}
	if m.Flags&0x02 != 0 {
		e.u16(m.EstEntries)
		e.u16(m.EstNameLen)
	}
}

func (m *GroupInfo) Serialize(w *binary.Writer) error    { return writeMessage(w, m) }
func (m *GroupInfo) SerializedSize(w *binary.Writer) int { return encodedSize(w, m) }

func NewGroupInfo() *GroupInfo { return &GroupInfo{} }
