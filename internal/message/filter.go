package message

import "github.com/robert-malhotra/imslink/internal/binary"

// Registered filter IDs.
const (
	FilterDeflate     uint16 = 1
	FilterShuffle     uint16 = 2
	FilterFletcher32  uint16 = 3
	FilterSZIP        uint16 = 4
	FilterNBit        uint16 = 5
	FilterScaleOffset uint16 = 6
)

// FilterInfo is one stage of a filter pipeline.
type FilterInfo struct {
	ID         uint16
	Flags      uint16
	Name       string
	ClientData []uint32
}

// IsOptional reports whether a chunk may skip this filter.
func (f *FilterInfo) IsOptional() bool { return f.Flags&0x01 != 0 }

// FilterPipeline lists the filters applied to each chunk, in write order.
type FilterPipeline struct {
	Version uint8
	Filters []FilterInfo
}

func (m *FilterPipeline) Type() Type { return TypeFilterPipeline }

func (m *FilterPipeline) HasFilter(id uint16) bool {
	for _, f := range m.Filters {
		if f.ID == id {
			return true
		}
	}
	return false
}

// Version 1 has six reserved bytes, always names its filters and pads
// names and odd client data lists to eight bytes. Version 2 only names
// filters with IDs of 256 and above.
func decodeFilterPipeline(c *cursor) *FilterPipeline {
	m := &FilterPipeline{Version: c.u8()}
	n := int(c.u8())
	switch m.Version {
	case 1:
		c.skip(6)
	case 2:
	default:
		c.fail("filter pipeline version %d not supported", m.Version)
		return m
	}
	m.Filters = make([]FilterInfo, n)
	for i := range m.Filters {
		f := &m.Filters[i]
		f.ID = c.u16()
		var nameLen int
		if m.Version == 1 || f.ID >= 256 {
			nameLen = int(c.u16())
		}
		f.Flags = c.u16()
		cd := int(c.u16())
		if nameLen > 0 {
			if m.Version == 1 {
				nameLen = (nameLen + 7) &^ 7
			}
			f.Name = c.text(nameLen)
		}
		f.ClientData = make([]uint32, cd)
		for j := range f.ClientData {
			f.ClientData[j] = c.u32()
		}
		if m.Version == 1 && cd%2 == 1 {
			c.skip(4)
		}
	}
	return m
}

// encode writes version 2.
func (m *FilterPipeline) encode(e *encoder) {
	e.u8(2)
	e.u8(uint8(len(m.Filters)))
	for _, f := range m.Filters {
		e.u16(f.ID)
		named := f.ID >= 256 && f.Name != ""
		if f.ID >= 256 {
			if named {
				e.u16(uint16(len(f.Name) + 1))
			} else {
				e.u16(0)
			}
		}
		e.u16(f.Flags)
		e.u16(uint16(len(f.ClientData)))
		if named {
			e.cstring(f.Name)
		}
		for _, v := range f.ClientData {
			e.u32(v)
		}
	}
}

func (m *FilterPipeline) Serialize(w *binary.Writer) error    { return writeMessage(w, m) }
func (m *FilterPipeline) SerializedSize(w *binary.Writer) int { return encodedSize(w, m) }

// NewFilterPipeline returns a pipeline applying filters in order.
func NewFilterPipeline(filters ...FilterInfo) *FilterPipeline {
	return &FilterPipeline{Version: 2, Filters: filters}
}

// DeflateFilter is a mandatory zlib stage at level 0-9.
func DeflateFilter(level uint32) FilterInfo {
	return FilterInfo{ID: FilterDeflate, ClientData: []uint32{level}}
}

// ShuffleFilter regroups the bytes of elemSize-byte elements.
func ShuffleFilter(elemSize uint32) FilterInfo {
	return FilterInfo{ID: FilterShuffle, ClientData: []uint32{elemSize}}
}

func Fletcher32Filter() FilterInfo {
	return FilterInfo{ID: FilterFletcher32}
}
