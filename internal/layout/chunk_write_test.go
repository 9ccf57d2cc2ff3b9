package layout

import (
	"bytes"
	"testing"

	"github.com/robert-malhotra/imslink/internal/binary"
	"github.com/robert-malhotra/imslink/internal/filter"
	"github.com/robert-malhotra/imslink/internal/message"
)

// memFile is a growable in-memory file with a bump allocator.
type memFile struct {
	data []byte
	next uint64
}

func (m *memFile) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(m.data) {
		m.data = append(m.data, make([]byte, end-len(m.data))...)
	}
	return copy(m.data[off:], p), nil
}

func (m *memFile) ReadAt(p []byte, off int64) (int, error) {
	return bytesReaderAt(m.data).ReadAt(p, off)
}

func (m *memFile) allocate(size int64) uint64 {
	if m.next == 0 {
		m.next = 64
	}
	addr := m.next
	m.next += uint64(size)
	return addr
}

func TestSplitIntoChunks(t *testing.T) {
	// 3x5 bytes valued by position, 2x2 chunks: a 2x3 chunk grid.
	data := make([]byte, 15)
	for i := range data {
		data[i] = byte(i)
	}
	chunks := SplitIntoChunks(data, []uint64{3, 5}, []uint32{2, 2}, 1)
	if len(chunks) != 6 {
		t.Fatalf("got %d chunks, want 6", len(chunks))
	}
	want := [][]byte{
		{0, 1, 5, 6},
		{2, 3, 7, 8},
		{4, 0, 9, 0},
		{10, 11, 0, 0},
		{12, 13, 0, 0},
		{14, 0, 0, 0},
	}
	for i, w := range want {
		if !bytes.Equal(chunks[i], w) {
			t.Errorf("chunk %d: got %v, want %v", i, chunks[i], w)
		}
	}

	if got := SplitIntoChunks(nil, []uint64{0, 4}, []uint32{2, 2}, 1); len(got) != 0 {
		t.Errorf("empty dataset: got %d chunks", len(got))
	}
}

func TestChunkSizeLen(t *testing.T) {
	for _, tt := range []struct {
		bytes uint64
		want  int
	}{
		{1, 2},
		{255, 2},
		{256, 3},
		{1024, 3},
		{1 << 20, 4},
		{1 << 62, 8},
	} {
		if got := chunkSizeLen(tt.bytes); got != tt.want {
			t.Errorf("chunkSizeLen(%d) = %d, want %d", tt.bytes, got, tt.want)
		}
	}
}

func TestNewChunkWriterErrors(t *testing.T) {
	m := &memFile{}
	w := binary.NewWriter(m, binary.DefaultConfig())
	if _, err := NewChunkWriter(w, []uint64{4, 4}, []uint32{2}, 1, nil, m.allocate); err == nil {
		t.Error("expected rank mismatch error")
	}
	if _, err := NewChunkWriter(w, []uint64{4, 4}, []uint32{2, 0}, 1, nil, m.allocate); err == nil {
		t.Error("expected zero chunk error")
	}

	cw, err := NewChunkWriter(w, []uint64{MaxChunks + 1}, []uint32{1}, 1, nil, m.allocate)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cw.Write(make([]byte, MaxChunks+1)); err == nil {
		t.Error("expected too many chunks error")
	}
}

// roundTrip writes data through a ChunkWriter and reads it back with the
// chunked layout reader.
func roundTrip(t *testing.T, dims []uint64, chunk []uint32, data []byte, fp *message.FilterPipeline) *message.DataLayout {
	t.Helper()
	m := &memFile{}
	w := binary.NewWriter(m, binary.DefaultConfig())

	var pipeline *filter.Pipeline
	if fp != nil {
		var err error
		if pipeline, err = filter.NewPipeline(fp); err != nil {
			t.Fatalf("NewPipeline: %v", err)
		}
	}
	cw, err := NewChunkWriter(w, dims, chunk, 2, pipeline, m.allocate)
	if err != nil {
		t.Fatalf("NewChunkWriter: %v", err)
	}
	l, err := cw.Write(data)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	r := binary.NewReader(m, binary.DefaultConfig())
	c, err := NewChunked(l, message.NewDataspace(dims, nil), message.NewFixedPointDatatype(2, false, message.OrderLE), fp, r)
	if err != nil {
		t.Fatalf("NewChunked: %v", err)
	}
	got, err := c.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("round trip mismatch:\n got %v\nwant %v", got, data)
	}
	return l
}

func cube(dims []uint64) []byte {
	n := uint64(2)
	for _, d := range dims {
		n *= d
	}
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i * 7 % 251)
	}
	return data
}

func TestChunkWriterRoundTrip(t *testing.T) {
	dims := []uint64{5, 7, 3}
	chunk := []uint32{2, 4, 2}
	data := cube(dims)

	t.Run("unfiltered", func(t *testing.T) {
		l := roundTrip(t, dims, chunk, data, nil)
		if l.ChunkIndexType != message.ChunkIndexFixedArray {
			t.Errorf("index type: got %v, want fixed array", l.ChunkIndexType)
		}
	})

	t.Run("filtered", func(t *testing.T) {
		fp := message.NewFilterPipeline(message.ShuffleFilter(2), message.DeflateFilter(4), message.Fletcher32Filter())
		l := roundTrip(t, dims, chunk, data, fp)
		if l.ChunkIndexType != message.ChunkIndexFixedArray {
			t.Errorf("index type: got %v, want fixed array", l.ChunkIndexType)
		}
	})

	t.Run("filtered single chunk", func(t *testing.T) {
		fp := message.NewFilterPipeline(message.DeflateFilter(1))
		roundTrip(t, []uint64{4, 4}, []uint32{4, 4}, cube([]uint64{4, 4}), fp)
	})

	t.Run("single chunk", func(t *testing.T) {
		l := roundTrip(t, []uint64{6}, []uint32{8}, cube([]uint64{6}), nil)
		if l.ChunkIndexType != message.ChunkIndexSingleChunk {
			t.Errorf("index type: got %v, want single chunk", l.ChunkIndexType)
		}
	})
}
