package hdf5

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/robert-malhotra/imslink/internal/alloc"
	"github.com/robert-malhotra/imslink/internal/binary"
	"github.com/robert-malhotra/imslink/internal/dtype"
	"github.com/robert-malhotra/imslink/internal/object"
	"github.com/robert-malhotra/imslink/internal/superblock"
)

// File is an open HDF5 file. A File is not safe for concurrent use.
type File struct {
	path   string
	osf    *os.File
	r      *binary.Reader
	sb     *superblock.Superblock
	root   *Group
	heap   *dtype.Heap
	closed bool

	// linked caches the files reached through external links, by the
	// name stored in the link.
	linked map[string]*File

	// Set only for files made with Create.
	w     *binary.Writer
	space *alloc.Allocator
}

// Open opens an existing file read-only.
func Open(path string) (*File, error) {
	osf, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	sb, err := superblock.Read(osf)
	if err != nil {
		osf.Close()
		if errors.Is(err, superblock.ErrNotHDF5) {
			return nil, fmt.Errorf("%w: %s", ErrNotHDF5, path)
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	f := &File{path: path, osf: osf, sb: sb}
	f.r = binary.NewReader(osf, sb.ReaderConfig())
	f.heap = dtype.NewHeap(f.r)
	root, err := f.object(sb.RootGroupAddress, "/")
	if err == nil {
		var ok bool
		if f.root, ok = root.(*Group); !ok {
			err = ErrNotGroup
		}
	}
	if err != nil {
		osf.Close()
		return nil, fmt.Errorf("%s: root group: %w", path, err)
	}
	return f, nil
}

// Close releases the file and every file opened through its external
// links. A writable file is flushed first.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	var err error
	if f.writable() {
		err = f.Flush()
	}
	f.closed = true
	for _, ext := range f.linked {
		ext.Close()
	}
	f.linked = nil
	if cerr := f.osf.Close(); err == nil {
		err = cerr
	}
	return err
}

func (f *File) Root() *Group   { return f.root }
func (f *File) Path() string   { return f.path }
func (f *File) Version() int   { return int(f.sb.Version) }
func (f *File) writable() bool { return f.w != nil }

// OpenGroup opens the group at an absolute or root relative path.
func (f *File) OpenGroup(p string) (*Group, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenGroup(p)
}

// OpenDataset opens the dataset at an absolute or root relative path.
func (f *File) OpenDataset(p string) (*Dataset, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenDataset(p)
}

// Attr returns the attribute addressed by an attribute path such as
// "/DataSetInfo/Image@ExtMax0".
func (f *File) Attr(attrPath string) (*Attribute, error) {
	if f.closed {
		return nil, ErrClosed
	}
	objPath, name, err := ParseAttrPath(attrPath)
	if err != nil {
		return nil, err
	}
	obj, err := f.root.open(objPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", objPath, err)
	}
	var a *Attribute
	switch o := obj.(type) {
	case *Group:
		a = o.Attr(name)
	case *Dataset:
		a = o.Attr(name)
	}
	if a == nil {
		return nil, fmt.Errorf("%w: attribute %s", ErrNotFound, attrPath)
	}
	return a, nil
}

// object reads the header at addr and returns a *Group or *Dataset named
// p.
func (f *File) object(addr uint64, p string) (any, error) {
	h, err := object.Read(f.r, addr)
	if err != nil {
		return nil, err
	}
	if h.IsDataset() {
		return newDataset(f, p, h)
	}
	return &Group{file: f, path: p, header: h}, nil
}

// external returns the file named by an external link, opened relative to
// the directory of f.
func (f *File) external(name string) (*File, error) {
	if ext, ok := f.linked[name]; ok {
		return ext, nil
	}
	p := name
	if !filepath.IsAbs(p) {
		p = filepath.Join(filepath.Dir(f.path), name)
	}
	ext, err := Open(p)
	if err != nil {
		return nil, fmt.Errorf("external file %q: %w", name, err)
	}
	if f.linked == nil {
		f.linked = make(map[string]*File)
	}
	f.linked[name] = ext
	return ext, nil
}
