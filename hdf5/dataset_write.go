package hdf5

import (
	"fmt"
	"math"

	"github.com/robert-malhotra/imslink/internal/dtype"
	"github.com/robert-malhotra/imslink/internal/filter"
	"github.com/robert-malhotra/imslink/internal/layout"
	"github.com/robert-malhotra/imslink/internal/message"
	"github.com/robert-malhotra/imslink/internal/object"
)

// CreateDataset stores data, a number, string or nested slices of them,
// as a new dataset of g. The datatype and extent follow the Go value; a
// bare value becomes a scalar. The contents are written at once and only
// the link waits for the group to be committed.
func (g *Group) CreateDataset(name string, data any, opts ...DatasetOption) (*Dataset, error) {
	if err := g.writable(); err != nil {
		return nil, err
	}
	dt, dims, err := dtype.Infer(data)
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", name, err)
	}
	raw, err := dtype.Encode(dt, data)
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", name, err)
	}
	return g.writeDataset(name, dims, dt, raw, nil, opts)
}

// CreateDatasetWithType reserves a zero-filled contiguous dataset of the
// given extent and type, to be filled later with Dataset.Write.
func (g *Group) CreateDatasetWithType(name string, dims []uint64, dt *message.Datatype, opts ...DatasetOption) (*Dataset, error) {
	if err := g.writable(); err != nil {
		return nil, err
	}
	var o datasetOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.chunks != nil || len(o.filters) > 0 {
		return nil, fmt.Errorf("%w: deferred writes to chunked datasets", ErrUnsupported)
	}
	n := uint64(1)
	for _, d := range dims {
		n *= d
	}
	return g.writeDataset(name, dims, dt, make([]byte, dtype.Size(dt, n)), nil, opts)
}

// writeDataset stores raw, the encoded elements, and the dataset header,
// and links the dataset from g.
func (g *Group) writeDataset(name string, dims []uint64, dt *message.Datatype, raw []byte, attrs []*message.Attribute, opts []DatasetOption) (*Dataset, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if g.link(name) != nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, g.childPath(name))
	}
	var o datasetOptions
	for _, opt := range opts {
		opt(&o)
	}
	for _, a := range o.attrs {
		msg, err := newAttribute(a.name, a.value)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, msg)
	}

	var space *message.Dataspace
	if dims == nil {
		if o.chunks != nil {
			return nil, fmt.Errorf("%w: a scalar cannot be chunked", ErrInvalidOptions)
		}
		space = message.NewScalarDataspace()
	} else {
		space = message.NewDataspace(dims, o.maxDims)
	}

	f := g.file
	owner := g.childPath(name)
	fp := o.pipeline(dt.Size)
	var dl *message.DataLayout
	switch {
	case o.chunks != nil:
		chunk := make([]uint32, len(o.chunks))
		for i, c := range o.chunks {
			if c > math.MaxUint32 {
				return nil, fmt.Errorf("%w: chunk dimension %d", ErrInvalidOptions, c)
			}
			chunk[i] = uint32(c)
		}
		var p *filter.Pipeline
		if fp != nil {
			var err error
			if p, err = filter.NewPipeline(fp); err != nil {
				return nil, err
			}
		}
		cw, err := layout.NewChunkWriter(f.w, dims, chunk, dt.Size, p, f.space.Func(owner))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
		}
		if dl, err = cw.Write(raw); err != nil {
			return nil, fmt.Errorf("dataset %s: %w", owner, err)
		}
	case fp != nil:
		return nil, fmt.Errorf("%w: filters need chunked storage", ErrInvalidOptions)
	default:
		addr := f.space.Alloc(uint64(len(raw)), owner)
		if err := f.w.At(int64(addr)).WriteBytes(raw); err != nil {
			return nil, fmt.Errorf("dataset %s: %w", owner, err)
		}
		dl = message.NewContiguousLayout(addr, uint64(len(raw)))
	}

	b, err := object.Encode(f.w.Config(), object.NewDatasetHeader(space, dt, dl, fp, attrs), 0)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", owner, err)
	}
	addr := f.space.Alloc(uint64(len(b)), owner)
	if err := f.w.At(int64(addr)).WriteBytes(b); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", owner, err)
	}
	if err := g.addLink(message.NewHardLink(name, addr)); err != nil {
		return nil, err
	}

	obj, err := f.object(addr, owner)
	if err != nil {
		return nil, err
	}
	return obj.(*Dataset), nil
}

// Write replaces the contents of a contiguous dataset of a writable file.
// The encoded value must fill the storage exactly.
func (d *Dataset) Write(data any) error {
	switch {
	case d.file.closed:
		return ErrClosed
	case !d.file.writable():
		return ErrReadOnly
	}
	dl := d.header.DataLayout()
	if dl == nil || dl.Class != message.LayoutContiguous {
		return fmt.Errorf("%w: writing dataset %s without contiguous storage", ErrUnsupported, d.path)
	}
	raw, err := dtype.Encode(d.dt, data)
	if err != nil {
		return fmt.Errorf("dataset %s: %w", d.path, err)
	}
	if uint64(len(raw)) != dl.Size {
		return fmt.Errorf("dataset %s: %d bytes for storage of %d", d.path, len(raw), dl.Size)
	}
	return d.file.w.At(int64(dl.Address)).WriteBytes(raw)
}
