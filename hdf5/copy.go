package hdf5

import (
	"fmt"

	"github.com/robert-malhotra/imslink/internal/dtype"
	"github.com/robert-malhotra/imslink/internal/message"
)

// CopyGroup copies src, from any open file, to a path relative to g.
// Groups on the way are made; the last component must not exist.
// Attributes, subgroups and datasets are copied deeply. Soft and external
// links are copied as stored. Datasets are stored contiguously and
// variable-length strings become fixed-length ones.
func (g *Group) CopyGroup(src *Group, rel string) (*Group, error) {
	if err := g.writable(); err != nil {
		return nil, err
	}
	if src.file.closed {
		return nil, ErrClosed
	}
	parent, name, err := g.parentOf(rel)
	if err != nil {
		return nil, err
	}
	dst, err := parent.CreateGroup(name)
	if err != nil {
		return nil, err
	}
	if err := dst.fill(src); err != nil {
		return nil, fmt.Errorf("copying %s to %s: %w", src.path, dst.path, err)
	}
	return dst, nil
}

func (g *Group) fill(src *Group) error {
	for _, a := range src.attributes() {
		cp, err := copyAttr(a, src.file.heap)
		if err != nil {
			return err
		}
		g.putAttr(cp)
	}

	ms, err := src.members()
	if err != nil {
		return err
	}
	for _, m := range ms {
		switch m.Type {
		case SoftLink:
			err = g.addLink(message.NewSoftLink(m.Name, m.SoftPath))
		case ExternalLink:
			err = g.addLink(message.NewExternalLink(m.Name, m.File, m.Path))
		default:
			err = g.copyMember(src, m.Name)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (g *Group) copyMember(src *Group, name string) error {
	obj, err := src.open(name)
	if err != nil {
		return err
	}
	switch o := obj.(type) {
	case *Group:
		sub, err := g.CreateGroup(name)
		if err != nil {
			return err
		}
		return sub.fill(o)
	case *Dataset:
		if err := copyable(o.dt); err != nil {
			return fmt.Errorf("dataset %s: %w", o.path, err)
		}
		raw, err := o.ReadRaw()
		if err != nil {
			return err
		}
		var attrs []*message.Attribute
		for _, a := range o.header.Attributes() {
			cp, err := copyAttr(a, o.file.heap)
			if err != nil {
				return err
			}
			attrs = append(attrs, cp)
		}
		_, err = g.writeDataset(name, o.Shape(), o.dt, raw, attrs, nil)
		return err
	}
	return nil
}

// copyAttr rebuilds an attribute for writing. Data past the elements, the
// alignment padding of old messages, is dropped.
func copyAttr(a *message.Attribute, h *dtype.Heap) (*message.Attribute, error) {
	if a.Datatype == nil {
		return nil, fmt.Errorf("attribute %q has no datatype", a.Name)
	}
	space := message.NewScalarDataspace()
	if ds := a.Dataspace; ds != nil && !ds.IsScalar() {
		if ds.IsNull() {
			space = message.NewNullDataspace()
		} else {
			space = message.NewDataspace(append([]uint64(nil), ds.Dimensions...), nil)
		}
	}
	n := space.NumElements()

	if a.Datatype.Class == message.ClassVarLen && a.Datatype.IsVarLenString {
		var s []string
		if err := dtype.Decode(a.Datatype, a.Data, n, &s, h); err != nil {
			return nil, fmt.Errorf("attribute %q: %w", a.Name, err)
		}
		var value any = s
		if space.IsScalar() && len(s) == 1 {
			value = s[0]
		}
		cp, err := newAttribute(a.Name, value)
		if err != nil {
			return nil, err
		}
		cp.Dataspace = space
		return cp, nil
	}

	if err := copyable(a.Datatype); err != nil {
		return nil, fmt.Errorf("attribute %q: %w", a.Name, err)
	}
	size := dtype.Size(a.Datatype, n)
	if uint64(len(a.Data)) < size {
		return nil, fmt.Errorf("attribute %q: %d of %d bytes", a.Name, len(a.Data), size)
	}
	return message.NewAttribute(a.Name, a.Datatype, space, append([]byte(nil), a.Data[:size]...)), nil
}

// copyable rejects types whose elements point into the source file.
func copyable(dt *message.Datatype) error {
	switch dt.Class {
	case message.ClassFixedPoint, message.ClassFloatPoint, message.ClassString,
		message.ClassBitfield, message.ClassOpaque, message.ClassEnum:
		return nil
	case message.ClassArray:
		if dt.BaseType == nil {
			return fmt.Errorf("%w: array without base type", ErrUnsupported)
		}
		return copyable(dt.BaseType)
	case message.ClassCompound:
		for _, m := range dt.Members {
			if err := copyable(m.Type); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: copying datatype class %d", ErrUnsupported, dt.Class)
}
