// Package layout reads dataset storage in its compact, contiguous and
// chunked forms and writes chunked storage.
package layout

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/imslink/internal/binary"
	"github.com/robert-malhotra/imslink/internal/message"
)

// ErrUnsupported is returned for storage this package cannot read.
var ErrUnsupported = errors.New("unsupported storage")

// Layout reads the raw, row-major element bytes of a dataset.
type Layout interface {
	Read() ([]byte, error)
	// ReadSlice reads the box of count elements per axis starting at start.
	ReadSlice(start, count []uint64) ([]byte, error)
}

// New returns the reader for the storage described by l.
func New(l *message.DataLayout, space *message.Dataspace, dt *message.Datatype, fp *message.FilterPipeline, r *binary.Reader) (Layout, error) {
	if l == nil {
		return nil, fmt.Errorf("no data layout message")
	}
	sh := newShape(space, dt)
	switch l.Class {
	case message.LayoutCompact:
		return &Compact{shape: sh, data: l.CompactData}, nil
	case message.LayoutContiguous:
		return &Contiguous{shape: sh, addr: l.Address, r: r}, nil
	case message.LayoutChunked:
		return NewChunked(l, space, dt, fp, r)
	default:
		return nil, fmt.Errorf("%w: layout class %d", ErrUnsupported, l.Class)
	}
}

// shape is the extent and element size of a dataset. Scalars have the
// extent [1].
type shape struct {
	dims []uint64
	elem uint64
}

func newShape(space *message.Dataspace, dt *message.Datatype) shape {
	sh := shape{dims: []uint64{1}}
	if dt != nil {
		sh.elem = uint64(dt.Size)
	}
	if space == nil {
		return sh
	}
	switch {
	case space.IsNull():
		sh.dims = []uint64{0}
	case len(space.Dimensions) > 0:
		sh.dims = space.Dimensions
	}
	return sh
}

func (s shape) bytes() uint64 {
	return product(s.dims) * s.elem
}

func (s shape) origin() []uint64 {
	return make([]uint64, len(s.dims))
}

// selection checks a box against the extent. An empty start and count on
// a scalar select the one element.
func (s shape) selection(start, count []uint64) ([]uint64, []uint64, error) {
	if len(start) == 0 && len(count) == 0 && len(s.dims) == 1 && s.dims[0] == 1 {
		return []uint64{0}, []uint64{1}, nil
	}
	if len(start) != len(s.dims) || len(count) != len(s.dims) {
		return nil, nil, fmt.Errorf("selection of rank %d/%d on a rank %d dataset", len(start), len(count), len(s.dims))
	}
	for d := range s.dims {
		if start[d]+count[d] > s.dims[d] {
			return nil, nil, fmt.Errorf("selection [%d,%d) outside axis %d of length %d", start[d], start[d]+count[d], d, s.dims[d])
		}
	}
	return start, count, nil
}

func product(v []uint64) uint64 {
	n := uint64(1)
	for _, x := range v {
		n *= x
	}
	return n
}

// box is an axis-aligned block of elements in dataset coordinates.
type box struct {
	origin, size []uint64
}

// intersect returns the overlap of a and b, and false when it is empty.
func intersect(a, b box) (lo, hi []uint64, ok bool) {
	lo = make([]uint64, len(a.origin))
	hi = make([]uint64, len(a.origin))
	for d := range lo {
		lo[d] = max(a.origin[d], b.origin[d])
		hi[d] = min(a.origin[d]+a.size[d], b.origin[d]+b.size[d])
		if lo[d] >= hi[d] {
			return nil, nil, false
		}
	}
	return lo, hi, true
}

// copyBox copies elements [lo, hi) from src, which holds the block
// srcBox, into dst, which holds dstBox. Both are row-major.
func copyBox(dst []byte, dstBox box, src []byte, srcBox box, lo, hi []uint64, elem uint64) {
	rank := len(lo)
	last := rank - 1
	row := (hi[last] - lo[last]) * elem
	pos := append([]uint64(nil), lo...)
	for {
		var si, di uint64
		for d := 0; d < rank; d++ {
			si = si*srcBox.size[d] + pos[d] - srcBox.origin[d]
			di = di*dstBox.size[d] + pos[d] - dstBox.origin[d]
		}
		si *= elem
		di *= elem
		copy(dst[di:di+row], src[si:si+row])

		// Advance over every axis but the innermost.
		d := last - 1
		for ; d >= 0; d-- {
			pos[d]++
			if pos[d] < hi[d] {
				break
			}
			pos[d] = lo[d]
		}
		if d < 0 {
			return
		}
	}
}

// slice copies the selection out of data, which holds the whole extent.
func (s shape) slice(data []byte, start, count []uint64) []byte {
	out := make([]byte, product(count)*s.elem)
	if len(out) == 0 {
		return out
	}
	all := box{s.origin(), s.dims}
	sel := box{start, count}
	lo, hi, _ := intersect(all, sel)
	copyBox(out, sel, data, all, lo, hi, s.elem)
	return out
}

// Compact storage keeps the data inside the object header.
type Compact struct {
	shape
	data []byte
}

func (c *Compact) Read() ([]byte, error) {
	return append([]byte(nil), c.data...), nil
}

func (c *Compact) ReadSlice(start, count []uint64) ([]byte, error) {
	start, count, err := c.selection(start, count)
	if err != nil {
		return nil, err
	}
	if uint64(len(c.data)) < c.bytes() {
		return nil, fmt.Errorf("compact data holds %d bytes, need %d", len(c.data), c.bytes())
	}
	return c.slice(c.data, start, count), nil
}

// Contiguous storage is one block in the file. An unallocated block reads
// as zeros.
type Contiguous struct {
	shape
	addr uint64
	r    *binary.Reader
}

func (c *Contiguous) Read() ([]byte, error) {
	n := c.bytes()
	if n == 0 || c.r.IsUndefinedOffset(c.addr) {
		return make([]byte, n), nil
	}
	data, err := c.r.At(int64(c.addr)).ReadBytes(int(n))
	if err != nil {
		return nil, fmt.Errorf("contiguous data at 0x%x: %w", c.addr, err)
	}
	return data, nil
}

func (c *Contiguous) ReadSlice(start, count []uint64) ([]byte, error) {
	start, count, err := c.selection(start, count)
	if err != nil {
		return nil, err
	}
	data, err := c.Read()
	if err != nil {
		return nil, err
	}
	return c.slice(data, start, count), nil
}
