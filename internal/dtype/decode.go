package dtype

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/robert-malhotra/imslink/internal/message"
)

// Decode converts n stored elements of dt into dest, a pointer to a slice,
// an array, a single value or an interface. Slices are resized to n. An
// interface receives the natural form: one value when n is 1, a slice
// otherwise. h may be nil when dt has no variable-length parts.
func Decode(dt *message.Datatype, data []byte, n uint64, dest any, h *Heap) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return fmt.Errorf("%w: destination must be a non-nil pointer, got %T", ErrType, dest)
	}
	size := uint64(dt.Size)
	if uint64(len(data)) < n*size {
		return fmt.Errorf("%d bytes hold fewer than %d elements of %d bytes", len(data), n, size)
	}
	v = v.Elem()

	// A byte slice takes a single opaque or string element whole.
	whole := n == 1 && isBytes(v.Type()) &&
		(dt.Class == message.ClassOpaque || dt.Class == message.ClassBitfield || dt.IsString())

	switch {
	case v.Kind() == reflect.Slice && !whole:
		v.Set(reflect.MakeSlice(v.Type(), int(n), int(n)))
	case v.Kind() == reflect.Array:
		if uint64(v.Len()) < n {
			return fmt.Errorf("%w: array of %d for %d elements", ErrType, v.Len(), n)
		}
	case v.Kind() == reflect.Interface && n != 1:
		s := reflect.MakeSlice(reflect.SliceOf(natural(dt)), int(n), int(n))
		if err := decodeEach(dt, data, s, h); err != nil {
			return err
		}
		v.Set(s)
		return nil
	default:
		if n != 1 {
			return fmt.Errorf("%w: single %s for %d elements", ErrType, v.Type(), n)
		}
		return decodeElem(dt, data[:size], v, h)
	}
	return decodeEach(dt, data, v, h)
}

// Values decodes n elements into a slice of their natural Go form.
func Values(dt *message.Datatype, data []byte, n uint64, h *Heap) (any, error) {
	s := reflect.MakeSlice(reflect.SliceOf(natural(dt)), int(n), int(n))
	if uint64(len(data)) < n*uint64(dt.Size) {
		return nil, fmt.Errorf("%d bytes hold fewer than %d elements of %d bytes", len(data), n, dt.Size)
	}
	if err := decodeEach(dt, data, s, h); err != nil {
		return nil, err
	}
	return s.Interface(), nil
}

// Text decodes a string valued attribute or dataset as one string. Arrays
// of strings are joined, which turns the one character per element arrays
// Imaris writes into their text. 8-bit integers are read as characters.
func Text(dt *message.Datatype, data []byte, n uint64, h *Heap) (string, error) {
	if dt.Class == message.ClassFixedPoint && dt.Size == 1 {
		b := data[:min(uint64(len(data)), n)]
		if i := bytes.IndexByte(b, 0); i >= 0 {
			b = b[:i]
		}
		return string(b), nil
	}
	if !dt.IsString() {
		return "", fmt.Errorf("%w: class %d is not text", ErrType, dt.Class)
	}
	var parts []string
	if err := Decode(dt, data, n, &parts, h); err != nil {
		return "", err
	}
	return strings.Join(parts, ""), nil
}

func decodeEach(dt *message.Datatype, data []byte, v reflect.Value, h *Heap) error {
	size := int(dt.Size)
	for i := 0; i < v.Len(); i++ {
		if err := decodeElem(dt, data[i*size:(i+1)*size], v.Index(i), h); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

// decodeElem stores the element b of type dt into v.
func decodeElem(dt *message.Datatype, b []byte, v reflect.Value, h *Heap) error {
	switch dt.Class {
	case message.ClassFixedPoint:
		return setInt(v, readUint(b, dt), dt.Signed, len(b))
	case message.ClassEnum:
		return decodeEnum(dt, b, v)
	case message.ClassFloatPoint:
		f, err := readFloat(b, dt)
		if err != nil {
			return err
		}
		return setFloat(v, f)
	case message.ClassString:
		return setString(v, trimString(b, dt.StringPadding))
	case message.ClassBitfield, message.ClassOpaque:
		return setBytes(v, b)
	case message.ClassVarLen:
		count, obj, err := h.object(b)
		if err != nil {
			return err
		}
		if dt.IsVarLenString {
			return setString(v, trimString(obj, message.PadNullTerm))
		}
		return decodeSequence(dt.BaseType, obj, uint64(count), v, h)
	case message.ClassArray:
		n := uint64(1)
		for _, d := range dt.ArrayDims {
			n *= uint64(d)
		}
		return decodeSequence(dt.BaseType, b, n, v, h)
	case message.ClassCompound:
		return decodeCompound(dt, b, v, h)
	}
	return fmt.Errorf("%w: class %d", ErrUnsupported, dt.Class)
}

// decodeSequence stores the n elements of an array or variable-length
// element into a slice, array or interface.
func decodeSequence(base *message.Datatype, data []byte, n uint64, v reflect.Value, h *Heap) error {
	if base == nil {
		return fmt.Errorf("%w: sequence without base type", ErrUnsupported)
	}
	if v.Kind() == reflect.Interface {
		s, err := Values(base, data, n, h)
		if err != nil {
			return err
		}
		v.Set(reflect.ValueOf(s))
		return nil
	}
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return fmt.Errorf("%w: sequence into %s", ErrType, v.Type())
	}
	return Decode(base, data, n, v.Addr().Interface(), h)
}

func decodeEnum(dt *message.Datatype, b []byte, v reflect.Value) error {
	base := dt.BaseType
	if base == nil {
		return fmt.Errorf("%w: enum without base type", ErrUnsupported)
	}
	if v.Kind() == reflect.String || v.Kind() == reflect.Interface {
		for _, e := range dt.Enum {
			if bytes.Equal(e.Value, b) {
				return setString(v, e.Name)
			}
		}
		return fmt.Errorf("enum value %v has no name", b)
	}
	return setInt(v, readUint(b, base), base.Signed, len(b))
}

// decodeCompound fills a struct by field name or h5 tag, or a map keyed by
// member name. Struct fields without a member are left alone.
func decodeCompound(dt *message.Datatype, b []byte, v reflect.Value, h *Heap) error {
	member := func(m message.CompoundMember) ([]byte, error) {
		end := uint64(m.ByteOffset) + uint64(m.Type.Size)
		if end > uint64(len(b)) {
			return nil, fmt.Errorf("member %q ends at %d, past the element", m.Name, end)
		}
		return b[m.ByteOffset:end], nil
	}

	switch v.Kind() {
	case reflect.Struct:
		for i, m := range dt.Members {
			f := field(v, m.Name, i)
			if !f.IsValid() {
				continue
			}
			mb, err := member(m)
			if err != nil {
				return err
			}
			if err := decodeElem(m.Type, mb, f, h); err != nil {
				return fmt.Errorf("member %q: %w", m.Name, err)
			}
		}
		return nil
	case reflect.Map, reflect.Interface:
		out := make(map[string]any, len(dt.Members))
		for _, m := range dt.Members {
			mb, err := member(m)
			if err != nil {
				return err
			}
			var x any
			if err := decodeElem(m.Type, mb, reflect.ValueOf(&x).Elem(), h); err != nil {
				return fmt.Errorf("member %q: %w", m.Name, err)
			}
			out[m.Name] = x
		}
		if v.Kind() == reflect.Map && v.Type() != reflect.TypeOf(out) {
			return fmt.Errorf("%w: compound into %s", ErrType, v.Type())
		}
		v.Set(reflect.ValueOf(out))
		return nil
	}
	return fmt.Errorf("%w: compound into %s", ErrType, v.Type())
}

// field finds the struct field for a member: an h5 tag first, then the
// exported form of the name.
func field(v reflect.Value, name string, i int) reflect.Value {
	t := v.Type()
	for j := 0; j < t.NumField(); j++ {
		if t.Field(j).Tag.Get("h5") == name {
			return v.Field(j)
		}
	}
	return v.FieldByName(exportName(name, i))
}

func readUint(b []byte, dt *message.Datatype) uint64 {
	var u uint64
	if dt.ByteOrder == message.OrderBE {
		for _, c := range b {
			u = u<<8 | uint64(c)
		}
		return u
	}
	for i := len(b) - 1; i >= 0; i-- {
		u = u<<8 | uint64(b[i])
	}
	return u
}

func readFloat(b []byte, dt *message.Datatype) (float64, error) {
	switch len(b) {
	case 4:
		return float64(math.Float32frombits(uint32(readUint(b, dt)))), nil
	case 8:
		return math.Float64frombits(readUint(b, dt)), nil
	}
	return 0, fmt.Errorf("%w: %d byte float", ErrUnsupported, len(b))
}

// trimString drops the terminator or padding of a fixed-length string.
func trimString(b []byte, pad message.StringPadding) string {
	switch pad {
	case message.PadNullTerm:
		if i := bytes.IndexByte(b, 0); i >= 0 {
			b = b[:i]
		}
	case message.PadSpacePad:
		b = bytes.TrimRight(b, " \x00")
	default:
		b = bytes.TrimRight(b, "\x00")
	}
	return string(b)
}

// setInt stores an integer of size bytes, sign extending when signed.
func setInt(v reflect.Value, u uint64, signed bool, size int) error {
	shift := uint(64 - 8*size)
	i := int64(u<<shift) >> shift
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if !signed {
			if u > math.MaxInt64 {
				return fmt.Errorf("%w: %d overflows %s", ErrType, u, v.Type())
			}
			i = int64(u)
		}
		if v.OverflowInt(i) {
			return fmt.Errorf("%w: %d overflows %s", ErrType, i, v.Type())
		}
		v.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if signed && i < 0 {
			return fmt.Errorf("%w: %d into %s", ErrType, i, v.Type())
		}
		if v.OverflowUint(u) {
			return fmt.Errorf("%w: %d overflows %s", ErrType, u, v.Type())
		}
		v.SetUint(u)
	case reflect.Float32, reflect.Float64:
		if signed {
			v.SetFloat(float64(i))
		} else {
			v.SetFloat(float64(u))
		}
	case reflect.Interface:
		if signed {
			v.Set(reflect.ValueOf(i))
		} else {
			v.Set(reflect.ValueOf(u))
		}
	default:
		return fmt.Errorf("%w: integer into %s", ErrType, v.Type())
	}
	return nil
}

func setFloat(v reflect.Value, f float64) error {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		v.SetFloat(f)
	case reflect.Interface:
		v.Set(reflect.ValueOf(f))
	default:
		return fmt.Errorf("%w: float into %s", ErrType, v.Type())
	}
	return nil
}

func setString(v reflect.Value, s string) error {
	switch {
	case v.Kind() == reflect.String:
		v.SetString(s)
	case v.Kind() == reflect.Interface:
		v.Set(reflect.ValueOf(s))
	case isBytes(v.Type()):
		v.SetBytes([]byte(s))
	default:
		return fmt.Errorf("%w: string into %s", ErrType, v.Type())
	}
	return nil
}

func setBytes(v reflect.Value, b []byte) error {
	b = append([]byte(nil), b...)
	switch {
	case isBytes(v.Type()):
		v.SetBytes(b)
	case v.Kind() == reflect.Interface:
		v.Set(reflect.ValueOf(b))
	default:
		return fmt.Errorf("%w: opaque data into %s", ErrType, v.Type())
	}
	return nil
}

func isBytes(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
}
