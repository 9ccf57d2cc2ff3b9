package layout

import (
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/imslink/internal/binary"
	"github.com/robert-malhotra/imslink/internal/filter"
	"github.com/robert-malhotra/imslink/internal/message"
)

// fixedArrayPageBits is written to both the layout message and the fixed
// array header. Indexes are written unpaged, which caps them at
// 1<<fixedArrayPageBits chunks.
const fixedArrayPageBits = 10

// MaxChunks is the largest number of chunks ChunkWriter can index.
const MaxChunks = 1 << fixedArrayPageBits

// ChunkWriter stores a dataset's bytes as chunks of a fixed shape, passing
// each chunk through a filter pipeline, and writes the chunk index.
type ChunkWriter struct {
	w        *binary.Writer
	dims     []uint64
	chunk    []uint32
	elemSize uint32
	pipeline *filter.Pipeline
	allocate func(size int64) uint64
}

// NewChunkWriter checks that chunk has the rank of dims and no zero
// extents. A nil pipeline stores chunks unfiltered.
func NewChunkWriter(w *binary.Writer, dims []uint64, chunk []uint32, elemSize uint32, pipeline *filter.Pipeline, allocate func(size int64) uint64) (*ChunkWriter, error) {
	if len(chunk) != len(dims) {
		return nil, fmt.Errorf("chunk rank %d does not match dataset rank %d", len(chunk), len(dims))
	}
	for i, c := range chunk {
		if c == 0 {
			return nil, fmt.Errorf("chunk dimension %d is zero", i)
		}
	}
	if pipeline == nil {
		pipeline = &filter.Pipeline{}
	}
	return &ChunkWriter{w: w, dims: dims, chunk: chunk, elemSize: elemSize, pipeline: pipeline, allocate: allocate}, nil
}

// ChunkBytes returns the unfiltered size of one chunk.
func (cw *ChunkWriter) ChunkBytes() uint64 {
	size := uint64(cw.elemSize)
	for _, c := range cw.chunk {
		size *= uint64(c)
	}
	return size
}

// Write stores data, the row-major bytes of the whole dataset, and returns
// the layout message describing where it went.
//
// An unfiltered dataset that fits one chunk exactly, or any unfiltered 1-D
// dataset of one chunk, is stored without an index. Everything else gets a
// fixed array index, with chunk sizes and filter masks when filtered.
func (cw *ChunkWriter) Write(data []byte) (*message.DataLayout, error) {
	chunks := SplitIntoChunks(data, cw.dims, cw.chunk, cw.elemSize)
	if len(chunks) > MaxChunks {
		return nil, fmt.Errorf("%d chunks exceed the index limit of %d; use larger chunks", len(chunks), MaxChunks)
	}

	if len(chunks) == 0 {
		l := message.NewChunkedLayout(cw.chunk, cw.elemSize, message.ChunkIndexSingleChunk)
		l.ChunkIndexAddr = cw.w.UndefinedOffset()
		return l, nil
	}

	if cw.pipeline.Empty() && len(chunks) == 1 && (len(cw.dims) == 1 || cw.exact()) {
		addr, err := cw.writeChunk(chunks[0])
		if err != nil {
			return nil, err
		}
		l := message.NewChunkedLayout(cw.chunk, cw.elemSize, message.ChunkIndexSingleChunk)
		l.ChunkIndexAddr = addr
		return l, nil
	}

	entries := make([]chunkEntry, len(chunks))
	for i, c := range chunks {
		stored, err := cw.pipeline.Encode(c)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		addr, err := cw.writeChunk(stored)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		entries[i] = chunkEntry{addr: addr, size: uint64(len(stored))}
	}

	addr, err := cw.writeFixedArray(entries)
	if err != nil {
		return nil, fmt.Errorf("writing chunk index: %w", err)
	}
	l := message.NewChunkedLayout(cw.chunk, cw.elemSize, message.ChunkIndexFixedArray)
	l.ChunkIndexAddr = addr
	l.PageBits = fixedArrayPageBits
	return l, nil
}

// exact reports whether the chunk shape equals the dataset shape.
func (cw *ChunkWriter) exact() bool {
	for i, d := range cw.dims {
		if uint64(cw.chunk[i]) != d {
			return false
		}
	}
	return true
}

func (cw *ChunkWriter) writeChunk(data []byte) (uint64, error) {
	addr := cw.allocate(int64(len(data)))
	if err := cw.w.At(int64(addr)).WriteBytes(data); err != nil {
		return 0, err
	}
	return addr, nil
}

type chunkEntry struct {
	addr uint64
	size uint64
}

// chunkSizeLen is the width of the stored chunk size in filtered fixed
// array entries: one byte more than the unfiltered chunk size needs, as
// the HDF5 library computes it.
func chunkSizeLen(chunkBytes uint64) int {
	n := 1 + (bits.Len64(chunkBytes)-1+8)/8
	if n > 8 {
		n = 8
	}
	return n
}

// writeFixedArray writes a fixed array header (FAHD) and its single,
// unpaged data block (FADB) and returns the header address.
func (cw *ChunkWriter) writeFixedArray(entries []chunkEntry) (uint64, error) {
	offsetSize := cw.w.OffsetSize()
	lengthSize := cw.w.LengthSize()

	filtered := !cw.pipeline.Empty()
	var clientID uint8
	entrySize, sizeLen := offsetSize, 0
	if filtered {
		clientID = 1
		sizeLen = chunkSizeLen(cw.ChunkBytes())
		entrySize += sizeLen + 4
	}

	headerSize := 4 + 4 + lengthSize + offsetSize + 4
	blockSize := 4 + 2 + offsetSize + len(entries)*entrySize + 4
	headerAddr := cw.allocate(int64(headerSize))
	blockAddr := cw.allocate(int64(blockSize))

	block := make([]byte, 0, blockSize)
	block = append(block, "FADB"...)
	block = append(block, 0, clientID)
	block = appendUint(block, headerAddr, offsetSize)
	for _, e := range entries {
		block = appendUint(block, e.addr, offsetSize)
		if filtered {
			if sizeLen < 8 && e.size>>(8*uint(sizeLen)) != 0 {
				return 0, fmt.Errorf("filtered chunk of %d bytes does not fit the index", e.size)
			}
			block = appendUint(block, e.size, sizeLen)
			block = appendUint(block, 0, 4)
		}
	}
	block = appendUint(block, uint64(binary.Lookup3Checksum(block)), 4)

	header := make([]byte, 0, headerSize)
	header = append(header, "FAHD"...)
	header = append(header, 0, clientID, uint8(entrySize), fixedArrayPageBits)
	header = appendUint(header, uint64(len(entries)), lengthSize)
	header = appendUint(header, blockAddr, offsetSize)
	header = appendUint(header, uint64(binary.Lookup3Checksum(header)), 4)

	if err := cw.w.At(int64(blockAddr)).WriteBytes(block); err != nil {
		return 0, err
	}
	if err := cw.w.At(int64(headerAddr)).WriteBytes(header); err != nil {
		return 0, err
	}
	return headerAddr, nil
}

func appendUint(b []byte, v uint64, size int) []byte {
	for i := 0; i < size; i++ {
		b = append(b, byte(v>>(8*uint(i))))
	}
	return b
}

// SplitIntoChunks cuts row-major data of shape dims into chunks of shape
// chunk, in row-major chunk order. Chunks crossing the dataset edge are
// zero padded to full size.
func SplitIntoChunks(data []byte, dims []uint64, chunk []uint32, elemSize uint32) [][]byte {
	rank := len(dims)
	if rank == 0 {
		return nil
	}

	grid := make([]uint64, rank)
	total := uint64(1)
	for d := range dims {
		grid[d] = (dims[d] + uint64(chunk[d]) - 1) / uint64(chunk[d])
		total *= grid[d]
	}

	// Byte strides of the dataset and of one chunk.
	stride := make([]uint64, rank)
	cstride := make([]uint64, rank)
	stride[rank-1], cstride[rank-1] = uint64(elemSize), uint64(elemSize)
	for d := rank - 2; d >= 0; d-- {
		stride[d] = stride[d+1] * dims[d+1]
		cstride[d] = cstride[d+1] * uint64(chunk[d+1])
	}
	chunkBytes := cstride[0] * uint64(chunk[0])

	origin := make([]uint64, rank)
	chunks := make([][]byte, 0, total)
	for idx := uint64(0); idx < total; idx++ {
		rem := idx
		for d := rank - 1; d >= 0; d-- {
			origin[d] = (rem % grid[d]) * uint64(chunk[d])
			rem /= grid[d]
		}

		buf := make([]byte, chunkBytes)
		var start uint64
		for d := range origin {
			start += origin[d] * stride[d]
		}

		var fill func(d int, src, dst uint64)
		fill = func(d int, src, dst uint64) {
			n := dims[d] - origin[d]
			if c := uint64(chunk[d]); n > c {
				n = c
			}
			if d == rank-1 {
				copy(buf[dst:dst+n*uint64(elemSize)], data[src:src+n*uint64(elemSize)])
				return
			}
			for i := uint64(0); i < n; i++ {
				fill(d+1, src+i*stride[d], dst+i*cstride[d])
			}
		}
		fill(0, start, 0)
		chunks = append(chunks, buf)
	}
	return chunks
}
