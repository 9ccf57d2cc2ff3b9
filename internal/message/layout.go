package message

import "github.com/robert-malhotra/imslink/internal/binary"

type LayoutClass uint8

const (
	LayoutCompact    LayoutClass = 0
	LayoutContiguous LayoutClass = 1
	LayoutChunked    LayoutClass = 2
	LayoutVirtual    LayoutClass = 3
)

// ChunkIndexType selects the chunk index of a version 4 layout. Older
// layouts always index chunks with a version 1 B-tree.
type ChunkIndexType uint8

const (
	ChunkIndexSingleChunk     ChunkIndexType = 1
	ChunkIndexImplicit        ChunkIndexType = 2
	ChunkIndexFixedArray      ChunkIndexType = 3
	ChunkIndexExtensibleArray ChunkIndexType = 4
	ChunkIndexBTreeV2         ChunkIndexType = 5
)

// Chunked layout flags.
const (
	ChunkFlagNoPartialFilter uint8 = 0x01
	// ChunkFlagFilteredSingle marks a single chunk stored through the
	// filter pipeline; its stored size and filter mask follow.
	ChunkFlagFilteredSingle uint8 = 0x02
)

// DataLayout says where and how a dataset's elements are stored.
type DataLayout struct {
	Version uint8
	Class   LayoutClass

	CompactData []byte

	// Contiguous storage. Size is not recorded before version 3.
	Address uint64
	Size    uint64

	// ChunkDims has one entry per dataset axis plus a trailing one for the
	// element size.
	ChunkDims          []uint32
	ChunkIndexAddr     uint64
	ChunkIndexType     ChunkIndexType
	ChunkFlags         uint8
	DimensionSizeBytes uint8

	// Index parameters. PageBits applies to fixed and extensible arrays.
	PageBits          uint8
	FilteredChunkSize uint64
	FilterMask        uint32
}

func (m *DataLayout) Type() Type { return TypeDataLayout }

func decodeDataLayout(c *cursor) *DataLayout {
	m := &DataLayout{Version: c.u8()}
	switch m.Version {
	case 1, 2:
		decodeLayoutV1(c, m)
	case 3, 4:
		m.Class = LayoutClass(c.u8())
		switch m.Class {
		case LayoutCompact:
			m.CompactData = append([]byte(nil), c.bytes(int(c.u16()))...)
		case LayoutContiguous:
			m.Address = c.offset()
			m.Size = c.length()
		case LayoutChunked:
			if m.Version == 3 {
				decodeChunkedV3(c, m)
			} else {
				decodeChunkedV4(c, m)
			}
		case LayoutVirtual:
			// Virtual datasets are recognized but not read.
		default:
			c.fail("layout class %d not supported", m.Class)
		}
	default:
		c.fail("layout version %d not supported", m.Version)
	}
	return m
}

// decodeLayoutV1 reads the old form: the dimensions follow the address
// for every class, and compact data comes last.
func decodeLayoutV1(c *cursor, m *DataLayout) {
	rank := int(c.u8())
	m.Class = LayoutClass(c.u8())
	c.skip(5)
	if m.Class != LayoutCompact {
		m.Address = c.offset()
	}
	dims := make([]uint32, rank)
	for i := range dims {
		dims[i] = c.u32()
	}
	switch m.Class {
	case LayoutChunked:
		m.ChunkDims = dims
		m.ChunkIndexAddr = m.Address
		m.Address = 0
	case LayoutCompact:
		m.CompactData = append([]byte(nil), c.bytes(int(c.u32()))...)
	}
}

func decodeChunkedV3(c *cursor, m *DataLayout) {
	rank := int(c.u8())
	m.ChunkIndexAddr = c.offset()
	m.ChunkDims = make([]uint32, rank)
	for i := range m.ChunkDims {
		m.ChunkDims[i] = c.u32()
	}
}

func decodeChunkedV4(c *cursor, m *DataLayout) {
	m.ChunkFlags = c.u8()
	rank := int(c.u8())
	m.DimensionSizeBytes = c.u8()
	m.ChunkDims = make([]uint32, rank)
	for i := range m.ChunkDims {
		m.ChunkDims[i] = uint32(c.uint(int(m.DimensionSizeBytes)))
	}
	m.ChunkIndexType = ChunkIndexType(c.u8())
	switch m.ChunkIndexType {
	case ChunkIndexSingleChunk:
		if m.ChunkFlags&ChunkFlagFilteredSingle != 0 {
			m.FilteredChunkSize = c.length()
			m.FilterMask = c.u32()
		}
	case ChunkIndexImplicit:
	case ChunkIndexFixedArray:
		m.PageBits = c.u8()
	case ChunkIndexExtensibleArray:
		// Maximum bits, index elements, minimum pointers, minimum
		// elements, page bits.
		p := c.bytes(5)
		if len(p) == 5 {
			m.PageBits = p[4]
		}
	case ChunkIndexBTreeV2:
		c.skip(6)
	default:
		c.fail("chunk index type %d not supported", m.ChunkIndexType)
	}
	m.ChunkIndexAddr = c.offset()
}

// encode writes version 3 for compact and contiguous layouts and version
// 4 for chunked ones, which the writer indexes with a single chunk or an
// unpaged fixed array.
func (m *DataLayout) encode(e *encoder) {
	version := uint8(3)
	if m.Class == LayoutChunked {
		version = 4
	}
	e.u8(version)
	e.u8(uint8(m.Class))
	switch m.Class {
	case LayoutCompact:
		e.u16(uint16(len(m.CompactData)))
		e.bytes(m.CompactData)
	case LayoutContiguous:
		e.offset(m.Address)
		e.length(m.Size)
	case LayoutChunked:
		width := int(m.DimensionSizeBytes)
		if width == 0 {
			width = 4
		}
		e.u8(m.ChunkFlags)
		e.u8(uint8(len(m.ChunkDims)))
		e.u8(uint8(width))
		for _, d := range m.ChunkDims {
			e.uint(uint64(d), width)
		}
		e.u8(uint8(m.ChunkIndexType))
		switch m.ChunkIndexType {
		case ChunkIndexSingleChunk:
			if m.ChunkFlags&ChunkFlagFilteredSingle != 0 {
				e.length(m.FilteredChunkSize)
				e.u32(m.FilterMask)
			}
		case ChunkIndexFixedArray:
			e.u8(m.PageBits)
		}
		e.offset(m.ChunkIndexAddr)
	}
}

func (m *DataLayout) Serialize(w *binary.Writer) error    { return writeMessage(w, m) }
func (m *DataLayout) SerializedSize(w *binary.Writer) int { return encodedSize(w, m) }

func NewCompactLayout(data []byte) *DataLayout {
	return &DataLayout{Version: 3, Class: LayoutCompact, CompactData: data}
}

func NewContiguousLayout(address, size uint64) *DataLayout {
	return &DataLayout{Version: 3, Class: LayoutContiguous, Address: address, Size: size}
}

// NewChunkedLayout returns a version 4 chunked layout for chunks of the
// given shape. The element size is appended as the last chunk dimension
// and dimensions are stored in the fewest bytes that hold them all. The
// index address is filled in once the index is written.
func NewChunkedLayout(chunkDims []uint32, elementSize uint32, indexType ChunkIndexType) *DataLayout {
	dims := append(append([]uint32(nil), chunkDims...), elementSize)
	var largest uint64
	for _, d := range dims {
		largest = max(largest, uint64(d))
	}
	return &DataLayout{
		Version:            4,
		Class:              LayoutChunked,
		ChunkDims:          dims,
		ChunkIndexType:     indexType,
		DimensionSizeBytes: uint8(sizeBytes(largest)),
	}
}
