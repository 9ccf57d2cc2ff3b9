// Package heap reads local heaps, which hold v1 group member names, and
// global heaps, which hold variable-length strings.
package heap

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/imslink/internal/binary"
)

const localSignature = "HEAP"

// LocalHeap is the data segment of a local heap. Imaris writers still use
// v1 groups, whose member names live here.
type LocalHeap struct {
	Address uint64
	data    []byte
}

// ReadLocalHeap loads the local heap whose header is at addr.
func ReadLocalHeap(r *binary.Reader, addr uint64) (*LocalHeap, error) {
	hr := r.At(int64(addr))
	head, err := hr.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("local heap at 0x%x: %w", addr, err)
	}
	if string(head[:4]) != localSignature {
		return nil, fmt.Errorf("local heap at 0x%x: bad signature %q", addr, head[:4])
	}
	if head[4] != 0 {
		return nil, fmt.Errorf("local heap at 0x%x: version %d not supported", addr, head[4])
	}

	size, err := hr.ReadLength()
	if err != nil {
		return nil, err
	}
	// Free list head, unused when reading.
	if _, err := hr.ReadLength(); err != nil {
		return nil, err
	}
	dataAddr, err := hr.ReadOffset()
	if err != nil {
		return nil, err
	}

	data, err := r.At(int64(dataAddr)).ReadBytes(int(size))
	if err != nil {
		return nil, fmt.Errorf("local heap at 0x%x: data segment: %w", addr, err)
	}
	return &LocalHeap{Address: addr, data: data}, nil
}

// Name returns the NUL-terminated string at off, or "" when off lies
// outside the segment.
func (h *LocalHeap) Name(off uint64) string {
	if off >= uint64(len(h.data)) {
		return ""
	}
	s := h.data[off:]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s)
}
