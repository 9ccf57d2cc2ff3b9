package heap

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/imslink/internal/binary"
)

const globalSignature = "GCOL"

// Collection is one global heap collection, keyed by object index.
type Collection struct {
	Address uint64
	objects map[uint16][]byte
}

// ID points at an object inside a global heap collection. Variable-length
// data elements store one after their 4-byte length.
type ID struct {
	Collection uint64
	Index      uint32
}

// IsNull reports whether the ID references nothing.
func (id ID) IsNull() bool { return id.Collection == 0 }

// ParseID decodes an ID from its on-disk form, an offset-sized address
// followed by a 4-byte little-endian index.
func ParseID(b []byte, offsetSize int) (ID, error) {
	switch offsetSize {
	case 2, 4, 8:
	default:
		return ID{}, fmt.Errorf("global heap ID: offset size %d", offsetSize)
	}
	if len(b) < offsetSize+4 {
		return ID{}, fmt.Errorf("global heap ID: %d bytes, need %d", len(b), offsetSize+4)
	}
	var id ID
	for i := offsetSize - 1; i >= 0; i-- {
		id.Collection = id.Collection<<8 | uint64(b[i])
	}
	for i := 3; i >= 0; i-- {
		id.Index = id.Index<<8 | uint32(b[offsetSize+i])
	}
	return id, nil
}

// ReadCollection loads the global heap collection at addr.
func ReadCollection(r *binary.Reader, addr uint64) (*Collection, error) {
	if addr == 0 || r.IsUndefinedOffset(addr) {
		return nil, fmt.Errorf("global heap: undefined address")
	}
	hr := r.At(int64(addr))
	head, err := hr.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("global heap at 0x%x: %w", addr, err)
	}
	if string(head[:4]) != globalSignature {
		return nil, fmt.Errorf("global heap at 0x%x: bad signature %q", addr, head[:4])
	}
	if head[4] != 1 {
		return nil, fmt.Errorf("global heap at 0x%x: version %d not supported", addr, head[4])
	}
	size, err := hr.ReadLength()
	if err != nil {
		return nil, err
	}

	c := &Collection{Address: addr, objects: make(map[uint16][]byte)}
	objHead := int64(8 + r.LengthSize())
	end := int64(addr) + int64(size)
	for hr.Pos()+objHead <= end {
		idx, err := hr.ReadUint16()
		if err != nil || idx == 0 {
			// Index 0 is the free space object closing the collection.
			break
		}
		// Reference count and reserved bytes.
		hr.Skip(6)
		n, err := hr.ReadLength()
		if err != nil {
			break
		}
		if hr.Pos()+int64(n) > end {
			return nil, fmt.Errorf("global heap at 0x%x: object %d overruns the collection", addr, idx)
		}
		data, err := hr.ReadBytes(int(n))
		if err != nil {
			return nil, fmt.Errorf("global heap at 0x%x: object %d: %w", addr, idx, err)
		}
		c.objects[idx] = data
		hr.Skip(int64(-n & 7))
	}
	return c, nil
}

// Object returns a copy of object idx.
func (c *Collection) Object(idx uint32) ([]byte, error) {
	data, ok := c.objects[uint16(idx)]
	if !ok || idx > 0xffff {
		return nil, fmt.Errorf("global heap at 0x%x: no object %d", c.Address, idx)
	}
	return append([]byte(nil), data...), nil
}

// String returns object idx up to its first NUL.
func (c *Collection) String(idx uint32) (string, error) {
	data, ok := c.objects[uint16(idx)]
	if !ok || idx > 0xffff {
		return "", fmt.Errorf("global heap at 0x%x: no object %d", c.Address, idx)
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return string(data), nil
}
