package layout

import (
	"encoding/binary"
	"fmt"

	binpkg "github.com/robert-malhotra/imslink/internal/binary"
	"github.com/robert-malhotra/imslink/internal/btree"
	"github.com/robert-malhotra/imslink/internal/filter"
	"github.com/robert-malhotra/imslink/internal/message"
)

// Chunked storage splits the dataset into equal blocks, each stored and
// filtered on its own and located through a chunk index. Edge chunks are
// stored at full size.
type Chunked struct {
	shape
	chunk    []uint64
	layout   *message.DataLayout
	pipeline *filter.Pipeline
	r        *binpkg.Reader
}

// NewChunked returns the reader for a chunked layout message.
func NewChunked(l *message.DataLayout, space *message.Dataspace, dt *message.Datatype, fp *message.FilterPipeline, r *binpkg.Reader) (*Chunked, error) {
	pipeline, err := filter.NewPipeline(fp)
	if err != nil {
		return nil, fmt.Errorf("filter pipeline: %w", err)
	}
	c := &Chunked{shape: newShape(space, dt), layout: l, pipeline: pipeline, r: r}

	// The stored chunk shape carries a trailing axis for the element.
	if len(l.ChunkDims) < len(c.dims) {
		return nil, fmt.Errorf("chunk rank %d below dataset rank %d", len(l.ChunkDims), len(c.dims))
	}
	c.chunk = make([]uint64, len(c.dims))
	for d := range c.chunk {
		if l.ChunkDims[d] == 0 {
			return nil, fmt.Errorf("chunk axis %d has length 0", d)
		}
		c.chunk[d] = uint64(l.ChunkDims[d])
	}
	return c, nil
}

// ChunkBytes is the unfiltered size of one chunk.
func (c *Chunked) ChunkBytes() uint64 {
	return product(c.chunk) * c.elem
}

func (c *Chunked) Read() ([]byte, error) {
	return c.ReadSlice(c.origin(), c.dims)
}

// ReadSlice reads and decodes only the chunks overlapping the selection.
// Chunks never written read as zeros.
func (c *Chunked) ReadSlice(start, count []uint64) ([]byte, error) {
	start, count, err := c.selection(start, count)
	if err != nil {
		return nil, err
	}
	out := make([]byte, product(count)*c.elem)
	if len(out) == 0 {
		return out, nil
	}

	chunks, err := c.Chunks()
	if err != nil {
		return nil, err
	}
	sel := box{start, count}
	for _, ch := range chunks {
		cb := box{ch.Offset, c.chunk}
		lo, hi, ok := intersect(cb, sel)
		if !ok {
			continue
		}
		data, err := c.load(ch)
		if err != nil {
			return nil, fmt.Errorf("chunk %v: %w", ch.Offset, err)
		}
		copyBox(out, sel, data, cb, lo, hi, c.elem)
	}
	return out, nil
}

// load reads and decodes one chunk, padding short results to the full
// chunk size.
func (c *Chunked) load(ch btree.Chunk) ([]byte, error) {
	raw, err := c.r.At(int64(ch.Address)).ReadBytes(int(ch.Size))
	if err != nil {
		return nil, err
	}
	data, err := c.pipeline.Decode(raw, ch.FilterMask)
	if err != nil {
		return nil, err
	}
	if want := c.ChunkBytes(); uint64(len(data)) < want {
		data = append(data, make([]byte, want-uint64(len(data)))...)
	}
	return data, nil
}

func (c *Chunked) undefined(addr uint64) bool {
	return addr == 0 || c.r.IsUndefinedOffset(addr)
}

// Chunks lists the stored chunks. Layout messages before version 4 always
// use a version 1 B-tree.
func (c *Chunked) Chunks() ([]btree.Chunk, error) {
	addr := c.layout.ChunkIndexAddr
	if c.undefined(addr) {
		return nil, nil
	}
	if c.layout.Version < 4 {
		chunks, err := btree.ReadChunks(c.r, addr, len(c.dims))
		if err != nil {
			return nil, fmt.Errorf("chunk B-tree: %w", err)
		}
		return chunks, nil
	}

	switch c.layout.ChunkIndexType {
	case message.ChunkIndexSingleChunk:
		ch := btree.Chunk{Offset: c.origin(), Address: addr, Size: uint32(c.ChunkBytes())}
		if c.layout.ChunkFlags&message.ChunkFlagFilteredSingle != 0 {
			ch.Size = uint32(c.layout.FilteredChunkSize)
			ch.FilterMask = c.layout.FilterMask
		}
		return []btree.Chunk{ch}, nil
	case message.ChunkIndexImplicit:
		return c.implicitChunks(addr), nil
	case message.ChunkIndexFixedArray:
		chunks, err := c.fixedArrayChunks(addr)
		if err != nil {
			return nil, fmt.Errorf("fixed array index: %w", err)
		}
		return chunks, nil
	default:
		return nil, fmt.Errorf("%w: chunk index type %d", ErrUnsupported, c.layout.ChunkIndexType)
	}
}

// grid returns the number of chunks along each axis.
func (c *Chunked) grid() []uint64 {
	g := make([]uint64, len(c.dims))
	for d := range g {
		g[d] = (c.dims[d] + c.chunk[d] - 1) / c.chunk[d]
	}
	return g
}

// chunkOffset maps a row-major chunk number to its first element.
func (c *Chunked) chunkOffset(grid []uint64, i uint64) []uint64 {
	off := make([]uint64, len(grid))
	for d := len(grid) - 1; d >= 0; d-- {
		off[d] = i % grid[d] * c.chunk[d]
		i /= grid[d]
	}
	return off
}

// implicitChunks lays out unfiltered chunks back to back from addr.
func (c *Chunked) implicitChunks(addr uint64) []btree.Chunk {
	grid := c.grid()
	n := product(grid)
	size := c.ChunkBytes()
	chunks := make([]btree.Chunk, n)
	for i := range chunks {
		chunks[i] = btree.Chunk{
			Offset:  c.chunkOffset(grid, uint64(i)),
			Address: addr + uint64(i)*size,
			Size:    uint32(size),
		}
	}
	return chunks
}

// fixedArrayChunks reads a fixed array index, the header at addr and its
// one data block. Paged data blocks are not read.
func (c *Chunked) fixedArrayChunks(addr uint64) ([]btree.Chunk, error) {
	hr := c.r.At(int64(addr))
	head, err := hr.ReadBytes(8)
	if err != nil {
		return nil, err
	}
	if string(head[:4]) != "FAHD" {
		return nil, fmt.Errorf("bad header signature %q", head[:4])
	}
	if head[4] != 0 {
		return nil, fmt.Errorf("header version %d not supported", head[4])
	}
	filtered := head[5] == 1
	entrySize := int(head[6])
	pageBits := head[7]
	n, err := hr.ReadLength()
	if err != nil {
		return nil, err
	}
	block, err := hr.ReadOffset()
	if err != nil {
		return nil, err
	}
	if n > 1<<pageBits {
		return nil, fmt.Errorf("%w: paged fixed array of %d entries", ErrUnsupported, n)
	}
	if c.undefined(block) {
		return nil, nil
	}

	br := c.r.At(int64(block))
	bhead, err := br.ReadBytes(6)
	if err != nil {
		return nil, err
	}
	if string(bhead[:4]) != "FADB" {
		return nil, fmt.Errorf("bad data block signature %q", bhead[:4])
	}
	br.Skip(int64(c.r.OffsetSize()))
	raw, err := br.ReadBytes(int(n) * entrySize)
	if err != nil {
		return nil, err
	}

	osz := c.r.OffsetSize()
	sizeLen := entrySize - osz - 4
	if filtered && sizeLen < 1 {
		return nil, fmt.Errorf("entry size %d too small for filtered chunks", entrySize)
	}
	grid := c.grid()
	var chunks []btree.Chunk
	for i := uint64(0); i < n; i++ {
		e := raw[int(i)*entrySize:]
		ch := btree.Chunk{
			Address: uintLE(e[:osz]),
			Size:    uint32(c.ChunkBytes()),
		}
		if c.undefined(ch.Address) {
			continue
		}
		if filtered {
			ch.Size = uint32(uintLE(e[osz : osz+sizeLen]))
			ch.FilterMask = binary.LittleEndian.Uint32(e[osz+sizeLen:])
		}
		ch.Offset = c.chunkOffset(grid, i)
		chunks = append(chunks, ch)
	}
	return chunks, nil
}

func uintLE(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
