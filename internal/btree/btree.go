// Package btree walks version 1 B-trees, the index behind symbol table
// groups and behind the chunked datasets of files written by HDF5 1.8,
// which is what Imaris produces.
package btree

import (
	"encoding/binary"
	"fmt"

	binpkg "github.com/robert-malhotra/imslink/internal/binary"
	"github.com/robert-malhotra/imslink/internal/heap"
)

const signature = "TREE"

// Node types.
const (
	groupNode = 0
	chunkNode = 1
)

// maxDepth bounds the descent so a corrupt level byte cannot recurse
// forever.
const maxDepth = 64

// walk visits every child pointer of the leaves below addr, passing the
// key that precedes it.
func walk(r *binpkg.Reader, addr uint64, nodeType uint8, keySize int, depth int, visit func(key []byte, child uint64) error) error {
	if depth > maxDepth {
		return fmt.Errorf("B-tree at 0x%x: deeper than %d levels", addr, maxDepth)
	}
	nr := r.At(int64(addr))
	head, err := nr.ReadBytes(8)
	if err != nil {
		return fmt.Errorf("B-tree node at 0x%x: %w", addr, err)
	}
	if string(head[:4]) != signature {
		return fmt.Errorf("B-tree node at 0x%x: bad signature %q", addr, head[:4])
	}
	if head[4] != nodeType {
		return fmt.Errorf("B-tree node at 0x%x: node type %d, want %d", addr, head[4], nodeType)
	}
	level := head[5]
	used := int(binary.LittleEndian.Uint16(head[6:]))

	// Siblings are not needed for a full traversal.
	nr.Skip(int64(2 * r.OffsetSize()))

	for i := 0; i < used; i++ {
		key, err := nr.ReadBytes(keySize)
		if err != nil {
			return fmt.Errorf("B-tree node at 0x%x: key %d: %w", addr, i, err)
		}
		child, err := nr.ReadOffset()
		if err != nil {
			return fmt.Errorf("B-tree node at 0x%x: child %d: %w", addr, i, err)
		}
		if level > 0 {
			err = walk(r, child, nodeType, keySize, depth+1, visit)
		} else {
			err = visit(key, child)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Symbol is one member of a symbol table group.
type Symbol struct {
	Name    string
	Address uint64
	// Target is set for soft links, which have no object address.
	Target string
}

// IsSoftLink reports whether the symbol is a soft link.
func (s Symbol) IsSoftLink() bool { return s.Target != "" }

// cacheSoftLink marks a symbol table entry whose scratch pad holds the
// heap offset of a soft link target.
const cacheSoftLink = 2

// ReadSymbols lists the members of the group whose B-tree is at addr, in
// name order, resolving names through names.
func ReadSymbols(r *binpkg.Reader, addr uint64, names *heap.LocalHeap) ([]Symbol, error) {
	var syms []Symbol
	err := walk(r, addr, groupNode, r.LengthSize(), 0, func(_ []byte, snod uint64) error {
		s, err := readSymbolNode(r, snod, names)
		syms = append(syms, s...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return syms, nil
}

func readSymbolNode(r *binpkg.Reader, addr uint64, names *heap.LocalHeap) ([]Symbol, error) {
	nr := r.At(int64(addr))
	head, err := nr.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("symbol node at 0x%x: %w", addr, err)
	}
	if string(head[:4]) != "SNOD" {
		return nil, fmt.Errorf("symbol node at 0x%x: bad signature %q", addr, head[:4])
	}
	if head[4] != 1 {
		return nil, fmt.Errorf("symbol node at 0x%x: version %d not supported", addr, head[4])
	}
	n := int(binary.LittleEndian.Uint16(head[6:]))

	syms := make([]Symbol, 0, n)
	for i := 0; i < n; i++ {
		nameOff, err := nr.ReadOffset()
		if err != nil {
			return nil, err
		}
		objAddr, err := nr.ReadOffset()
		if err != nil {
			return nil, err
		}
		cache, err := nr.ReadUint32()
		if err != nil {
			return nil, err
		}
		nr.Skip(4)
		scratch, err := nr.ReadBytes(16)
		if err != nil {
			return nil, err
		}

		s := Symbol{Name: names.Name(nameOff), Address: objAddr}
		if s.Name == "" {
			continue
		}
		if cache == cacheSoftLink {
			s.Target = names.Name(uint64(binary.LittleEndian.Uint32(scratch)))
			s.Address = 0
		}
		syms = append(syms, s)
	}
	return syms, nil
}

// Chunk locates one stored chunk of a dataset.
type Chunk struct {
	// Offset is the chunk's first element in dataset coordinates.
	Offset []uint64
	// Size is the stored size, after filtering.
	Size uint32
	// FilterMask has bit i set when filter i was skipped for this chunk.
	FilterMask uint32
	Address    uint64
}

// ReadChunks lists the chunks of a rank-dimensional dataset indexed by the
// B-tree at addr.
func ReadChunks(r *binpkg.Reader, addr uint64, rank int) ([]Chunk, error) {
	// Keys carry one extra offset for the element byte position.
	keySize := 8 + 8*(rank+1)
	var chunks []Chunk
	err := walk(r, addr, chunkNode, keySize, 0, func(key []byte, child uint64) error {
		c := Chunk{
			Size:       binary.LittleEndian.Uint32(key),
			FilterMask: binary.LittleEndian.Uint32(key[4:]),
			Address:    child,
			Offset:     make([]uint64, rank),
		}
		for d := range c.Offset {
			c.Offset[d] = binary.LittleEndian.Uint64(key[8+8*d:])
		}
		if c.Size > 0 && !r.IsUndefinedOffset(child) {
			chunks = append(chunks, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}
