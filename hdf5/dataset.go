package hdf5

import (
	"fmt"
	"path"
	"reflect"

	"github.com/robert-malhotra/imslink/internal/dtype"
	"github.com/robert-malhotra/imslink/internal/layout"
	"github.com/robert-malhotra/imslink/internal/message"
	"github.com/robert-malhotra/imslink/internal/object"
)

// Dataset is a dataset of an open file.
type Dataset struct {
	file   *File
	path   string
	header *object.Header
	space  *message.Dataspace
	dt     *message.Datatype
	store  layout.Layout
}

func newDataset(f *File, p string, h *object.Header) (*Dataset, error) {
	d := &Dataset{file: f, path: p, header: h, space: h.Dataspace(), dt: h.Datatype()}
	if d.dt == nil {
		return nil, fmt.Errorf("dataset %s has no datatype", p)
	}
	store, err := layout.New(h.DataLayout(), d.space, d.dt, h.FilterPipeline(), f.r)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", p, err)
	}
	d.store = store
	return d, nil
}

func (d *Dataset) Name() string { return path.Base(d.path) }
func (d *Dataset) Path() string { return d.path }

// Shape returns the extent, nil for a scalar.
func (d *Dataset) Shape() []uint64 {
	if d.space.IsScalar() {
		return nil
	}
	return d.space.Dimensions
}

// Dims is Shape.
func (d *Dataset) Dims() []uint64 { return d.Shape() }

func (d *Dataset) Rank() int                   { return len(d.Shape()) }
func (d *Dataset) NumElements() uint64         { return d.space.NumElements() }
func (d *Dataset) IsScalar() bool              { return d.space.IsScalar() }
func (d *Dataset) ElemSize() int               { return int(d.dt.Size) }
func (d *Dataset) Datatype() *message.Datatype { return d.dt }

// GoType returns the Go type that holds one element exactly.
func (d *Dataset) GoType() (reflect.Type, error) { return dtype.GoType(d.dt) }

// ReadRaw returns the stored bytes of every element in row-major order.
func (d *Dataset) ReadRaw() ([]byte, error) {
	if d.file.closed {
		return nil, ErrClosed
	}
	raw, err := d.store.Read()
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", d.path, err)
	}
	return raw, nil
}

// Read decodes every element into dest, usually a pointer to a slice.
func (d *Dataset) Read(dest any) error {
	raw, err := d.ReadRaw()
	if err != nil {
		return err
	}
	if err := dtype.Decode(d.dt, raw, d.NumElements(), dest, d.file.heap); err != nil {
		return fmt.Errorf("dataset %s: %w", d.path, err)
	}
	return nil
}

// ReadSlice decodes the box of count elements per axis starting at start.
func (d *Dataset) ReadSlice(start, count []uint64, dest any) error {
	if d.file.closed {
		return ErrClosed
	}
	if len(start) != d.Rank() || len(count) != d.Rank() {
		return fmt.Errorf("dataset %s: selection of rank %d, want %d", d.path, len(start), d.Rank())
	}
	raw, err := d.store.ReadSlice(start, count)
	if err != nil {
		return fmt.Errorf("dataset %s: %w", d.path, err)
	}
	n := uint64(1)
	for _, c := range count {
		n *= c
	}
	return dtype.Decode(d.dt, raw, n, dest, d.file.heap)
}

func (d *Dataset) Attrs() []string { return attrNames(d.header.Attributes()) }

// Attr returns the named attribute, or nil.
func (d *Dataset) Attr(name string) *Attribute {
	return findAttr(d.file, d.header.Attributes(), name)
}

func (d *Dataset) HasAttr(name string) bool { return d.Attr(name) != nil }
