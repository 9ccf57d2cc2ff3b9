package hdf5

import (
	"fmt"

	"github.com/robert-malhotra/imslink/internal/dtype"
	"github.com/robert-malhotra/imslink/internal/message"
)

// Attribute is a named value attached to a group or dataset.
type Attribute struct {
	msg  *message.Attribute
	heap *dtype.Heap
}

func findAttr(f *File, list []*message.Attribute, name string) *Attribute {
	for _, m := range list {
		if m.Name == name {
			return &Attribute{msg: m, heap: f.heap}
		}
	}
	return nil
}

func attrNames(list []*message.Attribute) []string {
	names := make([]string, 0, len(list))
	for _, m := range list {
		names = append(names, m.Name)
	}
	return names
}

func (a *Attribute) Name() string { return a.msg.Name }

// Datatype returns the stored element type.
func (a *Attribute) Datatype() *message.Datatype { return a.msg.Datatype }

// Shape returns the extent, nil for a scalar.
func (a *Attribute) Shape() []uint64 {
	if a.IsScalar() {
		return nil
	}
	return a.msg.Dataspace.Dimensions
}

func (a *Attribute) IsScalar() bool {
	return a.msg.Dataspace == nil || a.msg.Dataspace.IsScalar()
}

func (a *Attribute) NumElements() uint64 {
	if a.msg.Dataspace == nil {
		return 1
	}
	return a.msg.Dataspace.NumElements()
}

// IsString reports whether the attribute holds fixed or variable-length
// strings.
func (a *Attribute) IsString() bool {
	return a.msg.Datatype != nil && a.msg.Datatype.IsString()
}

// Read decodes the value into dest, a pointer to a slice, array, single
// value or interface.
func (a *Attribute) Read(dest any) error {
	if a.msg.Datatype == nil {
		return fmt.Errorf("attribute %q has no datatype", a.msg.Name)
	}
	if err := dtype.Decode(a.msg.Datatype, a.msg.Data, a.NumElements(), dest, a.heap); err != nil {
		return fmt.Errorf("attribute %q: %w", a.msg.Name, err)
	}
	return nil
}

// ReadText returns a string attribute as one string. Scalar strings,
// variable-length strings and the one character per element arrays
// Imaris writes all read as their text.
func (a *Attribute) ReadText() (string, error) {
	n := a.NumElements()
	if n == 0 || a.msg.Datatype == nil {
		return "", nil
	}
	s, err := dtype.Text(a.msg.Datatype, a.msg.Data, n, a.heap)
	if err != nil {
		return "", fmt.Errorf("attribute %q: %w", a.msg.Name, err)
	}
	return s, nil
}

// Float64 returns the first element of a numeric attribute.
func (a *Attribute) Float64() (float64, error) {
	var v []float64
	if err := a.Read(&v); err != nil {
		return 0, err
	}
	if len(v) == 0 {
		return 0, fmt.Errorf("attribute %q is empty", a.msg.Name)
	}
	return v[0], nil
}

// Int64 returns the first element of an integer attribute.
func (a *Attribute) Int64() (int64, error) {
	var v []int64
	if err := a.Read(&v); err != nil {
		return 0, err
	}
	if len(v) == 0 {
		return 0, fmt.Errorf("attribute %q is empty", a.msg.Name)
	}
	return v[0], nil
}

// Value decodes the attribute into its natural Go form: int64 or uint64,
// float64, string, the member name of an enum, map[string]any for a
// compound. Scalars give one value and simple dataspaces a slice.
func (a *Attribute) Value() (any, error) {
	if a.msg.Datatype == nil {
		return nil, fmt.Errorf("attribute %q has no datatype", a.msg.Name)
	}
	if a.IsScalar() {
		var v any
		err := a.Read(&v)
		return v, err
	}
	v, err := dtype.Values(a.msg.Datatype, a.msg.Data, a.NumElements(), a.heap)
	if err != nil {
		return nil, fmt.Errorf("attribute %q: %w", a.msg.Name, err)
	}
	return v, nil
}
