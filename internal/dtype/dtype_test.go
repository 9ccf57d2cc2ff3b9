package dtype

import (
	"bytes"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/robert-malhotra/imslink/internal/binary"
	"github.com/robert-malhotra/imslink/internal/message"
)

var (
	u8  = message.NewFixedPointDatatype(1, false, message.OrderLE)
	i16 = message.NewFixedPointDatatype(2, true, message.OrderLE)
	u32 = message.NewFixedPointDatatype(4, false, message.OrderLE)
	f64 = message.NewFloatDatatype(8, message.OrderLE)
)

func TestGoType(t *testing.T) {
	enum := &message.Datatype{Class: message.ClassEnum, Size: 1, BaseType: u8}
	pair := message.NewCompoundDatatype(12, []message.CompoundMember{
		{Name: "x", ByteOffset: 0, Type: u32},
		{Name: "2nd value", ByteOffset: 4, Type: f64},
	})
	tests := []struct {
		name string
		dt   *message.Datatype
		want reflect.Type
	}{
		{"int16", i16, reflect.TypeOf(int16(0))},
		{"uint32", u32, reflect.TypeOf(uint32(0))},
		{"float32", message.NewFloatDatatype(4, message.OrderLE), reflect.TypeOf(float32(0))},
		{"string", message.NewStringDatatype(8, message.PadNullPad, message.CharsetASCII), reflect.TypeOf("")},
		{"vlen string", message.NewVarLenStringDatatype(message.CharsetUTF8), reflect.TypeOf("")},
		{"enum", enum, reflect.TypeOf(uint8(0))},
		{"array", message.NewArrayDatatype([]uint32{2, 3}, i16), reflect.TypeOf([6]int16{})},
		{"opaque", &message.Datatype{Class: message.ClassOpaque, Size: 4}, reflect.TypeOf([]byte(nil))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GoType(tt.dt)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	st, err := GoType(pair)
	if err != nil {
		t.Fatal(err)
	}
	if st.Kind() != reflect.Struct || st.Field(0).Name != "X" || st.Field(1).Name != "F12nd_value" {
		t.Errorf("compound: %v", st)
	}
	if tag := st.Field(1).Tag.Get("h5"); tag != "2nd value" {
		t.Errorf("tag: %q", tag)
	}

	if _, err := GoType(message.NewFixedPointDatatype(3, false, message.OrderLE)); !errors.Is(err, ErrUnsupported) {
		t.Errorf("3 byte integer: got %v", err)
	}
}

func TestDecodeNumbers(t *testing.T) {
	data := []byte{0xff, 0xff, 0x02, 0x00, 0x00, 0x80}
	var ints []int16
	if err := Decode(i16, data, 3, &ints, nil); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ints, []int16{-1, 2, math.MinInt16}) {
		t.Errorf("int16: %v", ints)
	}

	var wide []float64
	if err := Decode(i16, data, 3, &wide, nil); err != nil {
		t.Fatal(err)
	}
	if wide[0] != -1 || wide[2] != math.MinInt16 {
		t.Errorf("int16 as float64: %v", wide)
	}

	var unsigned []uint16
	if err := Decode(i16, data, 3, &unsigned, nil); !errors.Is(err, ErrType) {
		t.Errorf("negative into uint16: got %v", err)
	}

	var small []int8
	if err := Decode(u32, []byte{200, 0, 0, 0}, 1, &small, nil); !errors.Is(err, ErrType) {
		t.Errorf("200 into int8: got %v", err)
	}

	be := message.NewFixedPointDatatype(4, false, message.OrderBE)
	var one uint32
	if err := Decode(be, []byte{0, 0, 1, 2}, 1, &one, nil); err != nil {
		t.Fatal(err)
	}
	if one != 0x102 {
		t.Errorf("big endian: got 0x%x", one)
	}

	b := make([]byte, 8)
	for i := range b {
		b[i] = byte(math.Float64bits(2.5) >> (8 * i))
	}
	var any1 any
	if err := Decode(f64, b, 1, &any1, nil); err != nil {
		t.Fatal(err)
	}
	if any1 != 2.5 {
		t.Errorf("float64 into interface: %v", any1)
	}
}

func TestDecodeStrings(t *testing.T) {
	tests := []struct {
		pad  message.StringPadding
		data string
		want string
	}{
		{message.PadNullTerm, "ab\x00cd", "ab"},
		{message.PadNullPad, "abc\x00\x00", "abc"},
		{message.PadSpacePad, "ab   ", "ab"},
	}
	for _, tt := range tests {
		dt := message.NewStringDatatype(5, tt.pad, message.CharsetASCII)
		var s string
		if err := Decode(dt, []byte(tt.data), 1, &s, nil); err != nil {
			t.Fatal(err)
		}
		if s != tt.want {
			t.Errorf("padding %d: got %q, want %q", tt.pad, s, tt.want)
		}
	}
}

func TestText(t *testing.T) {
	// One character per element, as Imaris writes attributes.
	char := message.NewStringDatatype(1, message.PadNullTerm, message.CharsetASCII)
	got, err := Text(char, []byte("5.1.0"), 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "5.1.0" {
		t.Errorf("char array: %q", got)
	}

	got, err = Text(u8, []byte("abc\x00x"), 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "abc" {
		t.Errorf("byte array: %q", got)
	}

	if _, err := Text(f64, make([]byte, 8), 1, nil); !errors.Is(err, ErrType) {
		t.Errorf("float as text: got %v", err)
	}
}

func TestDecodeCompound(t *testing.T) {
	dt := message.NewCompoundDatatype(12, []message.CompoundMember{
		{Name: "id", ByteOffset: 0, Type: u32},
		{Name: "scale", ByteOffset: 4, Type: f64},
	})
	data := make([]byte, 12)
	data[0] = 7
	for i := 0; i < 8; i++ {
		data[4+i] = byte(math.Float64bits(0.5) >> (8 * i))
	}

	type rec struct {
		ID    int `h5:"id"`
		Scale float32
		Other string
	}
	var r rec
	if err := Decode(dt, data, 1, &r, nil); err != nil {
		t.Fatal(err)
	}
	if r.ID != 7 || r.Scale != 0.5 || r.Other != "" {
		t.Errorf("struct: %+v", r)
	}

	vals, err := Values(dt, data, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	m := vals.([]map[string]any)[0]
	if m["id"] != uint64(7) || m["scale"] != 0.5 {
		t.Errorf("map: %v", m)
	}
}

func TestDecodeEnumAndArray(t *testing.T) {
	enum := &message.Datatype{
		Class:    message.ClassEnum,
		Size:     1,
		BaseType: u8,
		Enum:     []message.EnumValue{{Name: "OFF", Value: []byte{0}}, {Name: "ON", Value: []byte{1}}},
	}
	var names []string
	if err := Decode(enum, []byte{1, 0}, 2, &names, nil); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(names, []string{"ON", "OFF"}) {
		t.Errorf("enum names: %v", names)
	}
	var codes []int
	if err := Decode(enum, []byte{1, 0}, 2, &codes, nil); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(codes, []int{1, 0}) {
		t.Errorf("enum codes: %v", codes)
	}

	arr := message.NewArrayDatatype([]uint32{3}, u8)
	var rows [][3]uint8
	if err := Decode(arr, []byte{1, 2, 3, 4, 5, 6}, 2, &rows, nil); err != nil {
		t.Fatal(err)
	}
	if rows[1] != [3]uint8{4, 5, 6} {
		t.Errorf("arrays: %v", rows)
	}
	v, err := Values(arr, []byte{1, 2, 3}, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(v, [][]uint64{{1, 2, 3}}) {
		t.Errorf("natural arrays: %v", v)
	}
}

type file struct{ b []byte }

func (f *file) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(f.b) {
		f.b = append(f.b, make([]byte, end-len(f.b))...)
	}
	return copy(f.b[off:], p), nil
}

func (f *file) ReadAt(p []byte, off int64) (int, error) {
	return bytes.NewReader(f.b).ReadAt(p, off)
}

func TestDecodeVarLen(t *testing.T) {
	f := &file{}
	w := binary.NewWriter(f, binary.DefaultConfig()).At(256)
	w.WriteBytes([]byte("GCOL"))
	w.WriteUint8(1)
	w.WriteZeros(3)
	w.WriteLength(16 + 32 + 24 + 16)
	for i, obj := range []string{"Channel 0", "\x01\x00\x02\x00"} {
		w.WriteUint16(uint16(i + 1))
		w.WriteUint16(1)
		w.WriteZeros(4)
		w.WriteLength(uint64(len(obj)))
		w.WriteBytes([]byte(obj))
		w.WriteZeros(-len(obj) & 7)
	}
	w.WriteZeros(16)

	elem := func(count uint32, idx uint32) []byte {
		b := []byte{byte(count), 0, 0, 0}
		b = append(b, 0, 1, 0, 0, 0, 0, 0, 0)
		return append(b, byte(idx), 0, 0, 0)
	}
	h := NewHeap(binary.NewReader(f, binary.DefaultConfig()))

	var s string
	if err := Decode(message.NewVarLenStringDatatype(message.CharsetASCII), elem(9, 1), 1, &s, h); err != nil {
		t.Fatal(err)
	}
	if s != "Channel 0" {
		t.Errorf("vlen string: %q", s)
	}

	seq := &message.Datatype{Class: message.ClassVarLen, Size: 16, BaseType: message.NewFixedPointDatatype(2, false, message.OrderLE)}
	var nested [][]uint16
	if err := Decode(seq, elem(2, 2), 1, &nested, h); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(nested, [][]uint16{{1, 2}}) {
		t.Errorf("vlen sequence: %v", nested)
	}

	if err := Decode(message.NewVarLenStringDatatype(message.CharsetASCII), elem(9, 1), 1, &s, nil); !errors.Is(err, ErrUnsupported) {
		t.Errorf("no heap: got %v", err)
	}
}

func TestInferAndEncode(t *testing.T) {
	tests := []struct {
		name  string
		value any
		class message.DatatypeClass
		size  uint32
		dims  []uint64
		data  []byte
	}{
		{"uint32 scalar", uint32(7), message.ClassFixedPoint, 4, nil, []byte{7, 0, 0, 0}},
		{"int8 slice", []int8{-1, 2}, message.ClassFixedPoint, 1, []uint64{2}, []byte{0xff, 2}},
		{"bytes", []byte{1, 2, 3}, message.ClassFixedPoint, 1, []uint64{3}, []byte{1, 2, 3}},
		{"2d", [][]uint16{{1, 2}, {3, 4}, {5, 6}}, message.ClassFixedPoint, 2, []uint64{3, 2}, []byte{1, 0, 2, 0, 3, 0, 4, 0, 5, 0, 6, 0}},
		{"strings", []string{"a", "bcd"}, message.ClassString, 4, []uint64{2}, []byte("a\x00\x00\x00bcd\x00")},
		{"string", "", message.ClassString, 1, nil, []byte{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt, dims, err := Infer(tt.value)
			if err != nil {
				t.Fatal(err)
			}
			if dt.Class != tt.class || dt.Size != tt.size || !reflect.DeepEqual(dims, tt.dims) {
				t.Errorf("got class %d size %d dims %v", dt.Class, dt.Size, dims)
			}
			data, err := Encode(dt, tt.value)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(data, tt.data) {
				t.Errorf("data: got %v, want %v", data, tt.data)
			}
		})
	}

	floats := []float32{1.5, -2}
	dt, _, _ := Infer(floats)
	data, err := Encode(dt, floats)
	if err != nil {
		t.Fatal(err)
	}
	var back []float32
	if err := Decode(dt, data, 2, &back, nil); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(back, floats) {
		t.Errorf("float32 round trip: %v", back)
	}
}

func TestEncodeErrors(t *testing.T) {
	if _, _, err := Infer([][]int{{1, 2}, {3}}); !errors.Is(err, ErrType) {
		t.Errorf("ragged: got %v", err)
	}
	if _, _, err := Infer(map[string]int{}); !errors.Is(err, ErrType) {
		t.Errorf("map: got %v", err)
	}
	if _, err := Encode(u8, 300); !errors.Is(err, ErrType) {
		t.Errorf("300 as uint8: got %v", err)
	}
	if _, err := Encode(i16, uint64(40000)); !errors.Is(err, ErrType) {
		t.Errorf("40000 as int16: got %v", err)
	}
	if _, err := Encode(message.NewStringDatatype(2, message.PadNullTerm, message.CharsetASCII), "ab"); !errors.Is(err, ErrType) {
		t.Errorf("string without room for its terminator: got %v", err)
	}
	if _, err := Encode(u8, "x"); !errors.Is(err, ErrType) {
		t.Errorf("string as integer: got %v", err)
	}
}
