// Package dtype converts between the stored bytes of HDF5 datatypes and Go
// values.
package dtype

import (
	"encoding/binary"
	"errors"
	"fmt"
	"reflect"

	binpkg "github.com/robert-malhotra/imslink/internal/binary"
	"github.com/robert-malhotra/imslink/internal/heap"
	"github.com/robert-malhotra/imslink/internal/message"
)

var (
	// ErrType is returned when a value cannot be stored in the destination
	// or encoded as the datatype.
	ErrType = errors.New("type mismatch")
	// ErrUnsupported is returned for datatype classes without a Go form.
	ErrUnsupported = errors.New("unsupported datatype")
)

// GoType returns the Go type that holds one element of dt exactly: sized
// integers and floats, strings, structs for compounds and arrays for array
// types.
func GoType(dt *message.Datatype) (reflect.Type, error) {
	if dt == nil {
		return nil, fmt.Errorf("%w: nil datatype", ErrUnsupported)
	}
	switch dt.Class {
	case message.ClassFixedPoint:
		return intType(dt.Size, dt.Signed)
	case message.ClassEnum:
		if dt.BaseType == nil {
			return nil, fmt.Errorf("%w: enum without base type", ErrUnsupported)
		}
		return intType(dt.BaseType.Size, dt.BaseType.Signed)
	case message.ClassFloatPoint:
		switch dt.Size {
		case 4:
			return reflect.TypeOf(float32(0)), nil
		case 8:
			return reflect.TypeOf(float64(0)), nil
		}
		return nil, fmt.Errorf("%w: %d byte float", ErrUnsupported, dt.Size)
	case message.ClassString:
		return reflect.TypeOf(""), nil
	case message.ClassBitfield, message.ClassOpaque:
		return reflect.TypeOf([]byte(nil)), nil
	case message.ClassVarLen:
		if dt.IsVarLenString {
			return reflect.TypeOf(""), nil
		}
		elem, err := GoType(dt.BaseType)
		if err != nil {
			return nil, err
		}
		return reflect.SliceOf(elem), nil
	case message.ClassArray:
		// Multi-dimensional arrays are flattened in row-major order.
		t, err := GoType(dt.BaseType)
		if err != nil {
			return nil, err
		}
		n := 1
		for _, d := range dt.ArrayDims {
			n *= int(d)
		}
		return reflect.ArrayOf(n, t), nil
	case message.ClassCompound:
		fields := make([]reflect.StructField, len(dt.Members))
		for i, m := range dt.Members {
			t, err := GoType(m.Type)
			if err != nil {
				return nil, fmt.Errorf("member %q: %w", m.Name, err)
			}
			fields[i] = reflect.StructField{
				Name: exportName(m.Name, i),
				Type: t,
				Tag:  reflect.StructTag(fmt.Sprintf(`h5:%q`, m.Name)),
			}
		}
		return reflect.StructOf(fields), nil
	}
	return nil, fmt.Errorf("%w: class %d", ErrUnsupported, dt.Class)
}

func intType(size uint32, signed bool) (reflect.Type, error) {
	var v any
	switch {
	case size == 1 && signed:
		v = int8(0)
	case size == 1:
		v = uint8(0)
	case size == 2 && signed:
		v = int16(0)
	case size == 2:
		v = uint16(0)
	case size == 4 && signed:
		v = int32(0)
	case size == 4:
		v = uint32(0)
	case size == 8 && signed:
		v = int64(0)
	case size == 8:
		v = uint64(0)
	default:
		return nil, fmt.Errorf("%w: %d byte integer", ErrUnsupported, size)
	}
	return reflect.TypeOf(v), nil
}

// natural is the type an element decodes to when the destination is an
// interface: int64 or uint64, float64, string, the member name of an
// enum, map[string]any for compounds and slices for arrays and sequences.
func natural(dt *message.Datatype) reflect.Type {
	switch dt.Class {
	case message.ClassFixedPoint:
		if dt.Signed {
			return reflect.TypeOf(int64(0))
		}
		return reflect.TypeOf(uint64(0))
	case message.ClassFloatPoint:
		return reflect.TypeOf(float64(0))
	case message.ClassString, message.ClassEnum:
		return reflect.TypeOf("")
	case message.ClassVarLen:
		if dt.IsVarLenString {
			return reflect.TypeOf("")
		}
		return reflect.SliceOf(natural(dt.BaseType))
	case message.ClassArray:
		return reflect.SliceOf(natural(dt.BaseType))
	case message.ClassCompound:
		return reflect.TypeOf(map[string]any(nil))
	}
	return reflect.TypeOf([]byte(nil))
}

// exportName turns a member name into an exported Go identifier.
func exportName(name string, i int) string {
	b := []byte(name)
	for j, c := range b {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_') {
			b[j] = '_'
		}
	}
	if len(b) == 0 || b[0] >= '0' && b[0] <= '9' || b[0] == '_' {
		return fmt.Sprintf("F%d%s", i, b)
	}
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}

// ByteOrder returns the byte order of a numeric type.
func ByteOrder(dt *message.Datatype) binary.ByteOrder {
	if dt.ByteOrder == message.OrderBE {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Size is the stored size of n elements.
func Size(dt *message.Datatype, n uint64) uint64 {
	return uint64(dt.Size) * n
}

// Heap resolves variable-length elements, which store a length and a
// global heap ID. Collections are read once and kept.
type Heap struct {
	r           *binpkg.Reader
	collections map[uint64]*heap.Collection
}

func NewHeap(r *binpkg.Reader) *Heap {
	return &Heap{r: r, collections: make(map[uint64]*heap.Collection)}
}

// object returns the element count and heap object of a variable-length
// element.
func (h *Heap) object(b []byte) (uint32, []byte, error) {
	if h == nil || h.r == nil {
		return 0, nil, fmt.Errorf("%w: variable-length data without a file", ErrUnsupported)
	}
	if len(b) < 4 {
		return 0, nil, fmt.Errorf("variable-length element of %d bytes", len(b))
	}
	count := binary.LittleEndian.Uint32(b)
	id, err := heap.ParseID(b[4:], h.r.OffsetSize())
	if err != nil {
		return 0, nil, err
	}
	if id.IsNull() {
		return 0, nil, nil
	}
	c, ok := h.collections[id.Collection]
	if !ok {
		if c, err = heap.ReadCollection(h.r, id.Collection); err != nil {
			return 0, nil, err
		}
		h.collections[id.Collection] = c
	}
	obj, err := c.Object(id.Index)
	return count, obj, err
}
