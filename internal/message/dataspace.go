package message

import "github.com/robert-malhotra/imslink/internal/binary"

// DataspaceType is the kind of extent a dataspace describes.
type DataspaceType uint8

const (
	DataspaceScalar DataspaceType = 0
	DataspaceSimple DataspaceType = 1
	DataspaceNull   DataspaceType = 2
)

// Dataspace is the extent of a dataset or attribute.
type Dataspace struct {
	Version    uint8
	Rank       int
	SpaceType  DataspaceType
	Dimensions []uint64
	MaxDims    []uint64 // nil when the extent is fixed
}

func (m *Dataspace) Type() Type { return TypeDataspace }

// NumElements is the number of elements in the extent.
func (m *Dataspace) NumElements() uint64 {
	switch m.SpaceType {
	case DataspaceScalar:
		return 1
	case DataspaceSimple:
		if len(m.Dimensions) == 0 {
			return 0
		}
		n := uint64(1)
		for _, d := range m.Dimensions {
			n *= d
		}
		return n
	}
	return 0
}

func (m *Dataspace) IsScalar() bool { return m.SpaceType == DataspaceScalar }
func (m *Dataspace) IsNull() bool   { return m.SpaceType == DataspaceNull }

// Version 1 has no type byte: rank 0 means scalar. It also has four
// reserved bytes and an optional permutation list that is skipped.
func decodeDataspace(c *cursor) *Dataspace {
	m := &Dataspace{Version: c.u8(), Rank: int(c.u8())}
	flags := c.u8()
	switch m.Version {
	case 1:
		c.skip(5)
		m.SpaceType = DataspaceSimple
		if m.Rank == 0 {
			m.SpaceType = DataspaceScalar
		}
	case 2:
		m.SpaceType = DataspaceType(c.u8())
	default:
		c.fail("dataspace version %d not supported", m.Version)
		return m
	}
	if m.SpaceType != DataspaceSimple {
		return m
	}
	m.Dimensions = make([]uint64, m.Rank)
	for i := range m.Dimensions {
		m.Dimensions[i] = c.length()
	}
	if flags&0x01 != 0 {
		m.MaxDims = make([]uint64, m.Rank)
		for i := range m.MaxDims {
			m.MaxDims[i] = c.length()
		}
	}
	return m
}

// encode always writes version 2.
func (m *Dataspace) encode(e *encoder) {
	var flags uint8
	if len(m.MaxDims) > 0 {
		flags = 0x01
	}
	e.u8(2)
	e.u8(uint8(m.Rank))
	e.u8(flags)
	e.u8(uint8(m.SpaceType))
	for _, d := range m.Dimensions {
		e.length(d)
	}
	if flags != 0 {
		for _, d := range m.MaxDims {
			e.length(d)
		}
	}
}

func (m *Dataspace) Serialize(w *binary.Writer) error    { return writeMessage(w, m) }
func (m *Dataspace) SerializedSize(w *binary.Writer) int { return encodedSize(w, m) }

// NewDataspace returns a simple dataspace. maxDims may be nil.
func NewDataspace(dims, maxDims []uint64) *Dataspace {
	return &Dataspace{Version: 2, Rank: len(dims), SpaceType: DataspaceSimple, Dimensions: dims, MaxDims: maxDims}
}

func NewScalarDataspace() *Dataspace {
	return &Dataspace{Version: 2, SpaceType: DataspaceScalar}
}

func NewNullDataspace() *Dataspace {
	return &Dataspace{Version: 2, SpaceType: DataspaceNull}
}
