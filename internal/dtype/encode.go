package dtype

import (
	"fmt"
	"math"
	"reflect"

	"github.com/robert-malhotra/imslink/internal/message"
)

// Infer returns the datatype and extent of a Go value: a number or string,
// or nested slices and arrays of them. A bare value has no extent and is
// stored as a scalar. Strings become fixed-length, null-terminated types
// sized to the longest one.
func Infer(v any) (*message.Datatype, []uint64, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, nil, fmt.Errorf("%w: nil value", ErrType)
	}
	var dims []uint64
	t := rv.Type()
	for t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		dims = append(dims, 0)
		t = t.Elem()
	}
	if len(dims) > 0 {
		if err := extent(rv, dims); err != nil {
			return nil, nil, err
		}
	}

	switch t.Kind() {
	case reflect.String:
		longest := 1
		leaves(rv, func(s reflect.Value) {
			longest = max(longest, s.Len()+1)
		})
		return message.NewStringDatatype(uint32(longest), message.PadNullTerm, message.CharsetASCII), dims, nil
	case reflect.Float32:
		return message.NewFloatDatatype(4, message.OrderLE), dims, nil
	case reflect.Float64:
		return message.NewFloatDatatype(8, message.OrderLE), dims, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return message.NewFixedPointDatatype(uint32(intSize(t)), true, message.OrderLE), dims, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return message.NewFixedPointDatatype(uint32(intSize(t)), false, message.OrderLE), dims, nil
	}
	return nil, nil, fmt.Errorf("%w: cannot store %s", ErrType, t)
}

// intSize stores int and uint in eight bytes.
func intSize(t reflect.Type) int {
	if t.Kind() == reflect.Int || t.Kind() == reflect.Uint {
		return 8
	}
	return int(t.Size())
}

// extent fills dims from v and checks every nested slice is rectangular.
func extent(v reflect.Value, dims []uint64) error {
	var walk func(v reflect.Value, d int) error
	walk = func(v reflect.Value, d int) error {
		if d == len(dims) {
			return nil
		}
		n := uint64(v.Len())
		if dims[d] == 0 && n > 0 {
			dims[d] = n
		}
		if n != dims[d] {
			return fmt.Errorf("%w: ragged axis %d, length %d and %d", ErrType, d, dims[d], n)
		}
		for i := 0; i < v.Len(); i++ {
			if err := walk(v.Index(i), d+1); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(v, 0)
}

// leaves calls fn for every non-container value in row-major order.
func leaves(v reflect.Value, fn func(reflect.Value)) {
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			leaves(v.Index(i), fn)
		}
	case reflect.Interface, reflect.Pointer:
		leaves(v.Elem(), fn)
	default:
		fn(v)
	}
}

// Encode stores the values of v, a number, string or nested slices of
// them, as elements of dt in row-major order.
func Encode(dt *message.Datatype, v any) ([]byte, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, fmt.Errorf("%w: nil value", ErrType)
	}
	size := int(dt.Size)
	var out []byte
	var err error
	leaves(rv, func(x reflect.Value) {
		if err != nil {
			return
		}
		b := make([]byte, size)
		if err = encodeElem(dt, x, b); err == nil {
			out = append(out, b...)
		}
	})
	return out, err
}

func encodeElem(dt *message.Datatype, v reflect.Value, b []byte) error {
	switch dt.Class {
	case message.ClassFixedPoint:
		u, err := intBits(v, dt)
		if err != nil {
			return err
		}
		putUint(b, u, dt)
	case message.ClassFloatPoint:
		var f float64
		switch v.Kind() {
		case reflect.Float32, reflect.Float64:
			f = v.Float()
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			f = float64(v.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			f = float64(v.Uint())
		default:
			return fmt.Errorf("%w: %s as float", ErrType, v.Type())
		}
		switch dt.Size {
		case 4:
			putUint(b, uint64(math.Float32bits(float32(f))), dt)
		case 8:
			putUint(b, math.Float64bits(f), dt)
		default:
			return fmt.Errorf("%w: %d byte float", ErrUnsupported, dt.Size)
		}
	case message.ClassString:
		if v.Kind() != reflect.String {
			return fmt.Errorf("%w: %s as string", ErrType, v.Type())
		}
		s := v.String()
		limit := len(b)
		if dt.StringPadding == message.PadNullTerm {
			limit--
		}
		if len(s) > limit {
			return fmt.Errorf("%w: string of %d bytes in a %d byte type", ErrType, len(s), dt.Size)
		}
		n := copy(b, s)
		if dt.StringPadding == message.PadSpacePad {
			for i := n; i < len(b); i++ {
				b[i] = ' '
			}
		}
	default:
		return fmt.Errorf("%w: encoding class %d", ErrUnsupported, dt.Class)
	}
	return nil
}

// intBits returns the two's complement bits of an integer value after
// checking it fits the type.
func intBits(v reflect.Value, dt *message.Datatype) (uint64, error) {
	bits := 8 * uint(dt.Size)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := v.Int()
		if dt.Signed && bits < 64 && (i < -1<<(bits-1) || i >= 1<<(bits-1)) ||
			!dt.Signed && (i < 0 || bits < 64 && uint64(i) >= 1<<bits) {
			return 0, fmt.Errorf("%w: %d does not fit %d bits", ErrType, i, bits)
		}
		return uint64(i), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := v.Uint()
		limit := bits
		if dt.Signed {
			limit--
		}
		if limit < 64 && u >= 1<<limit {
			return 0, fmt.Errorf("%w: %d does not fit %d bits", ErrType, u, bits)
		}
		return u, nil
	}
	return 0, fmt.Errorf("%w: %s as integer", ErrType, v.Type())
}

func putUint(b []byte, u uint64, dt *message.Datatype) {
	n := len(b)
	for i := 0; i < n; i++ {
		if dt.ByteOrder == message.OrderBE {
			b[n-1-i] = byte(u >> (8 * i))
		} else {
			b[i] = byte(u >> (8 * i))
		}
	}
}
