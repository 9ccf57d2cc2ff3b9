package hdf5

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/robert-malhotra/imslink/internal/alloc"
	binpkg "github.com/robert-malhotra/imslink/internal/binary"
	"github.com/robert-malhotra/imslink/internal/dtype"
	"github.com/robert-malhotra/imslink/internal/superblock"
)

// Create makes a new file at path, truncating any existing one, with a
// version 3 superblock and version 2 object headers.
//
// Groups and their attributes stay in memory until Flush or Close. Dataset
// contents are written as soon as the dataset is created.
func Create(path string, opts ...FileOption) (*File, error) {
	o := fileOptions{offsetSize: 8, lengthSize: 8}
	for _, opt := range opts {
		opt(&o)
	}

	osf, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	cfg := binpkg.Config{ByteOrder: binary.LittleEndian, OffsetSize: o.offsetSize, LengthSize: o.lengthSize}
	sb := superblock.NewSuperblock()
	sb.OffsetSize, sb.LengthSize = uint8(o.offsetSize), uint8(o.lengthSize)

	f := &File{
		path:  path,
		osf:   osf,
		sb:    sb,
		r:     binpkg.NewReader(osf, cfg),
		w:     binpkg.NewWriter(osf, cfg),
		space: alloc.New(uint64(sb.Size())),
	}
	f.heap = dtype.NewHeap(f.r)
	f.root = &Group{file: f, path: "/", w: newGroupState()}

	// Readers may look at the file before the first Flush.
	if err := f.Flush(); err != nil {
		osf.Close()
		os.Remove(path)
		return nil, err
	}
	return f, nil
}

// Flush writes every changed group and the superblock, and syncs the file.
func (f *File) Flush() error {
	if f.closed {
		return ErrClosed
	}
	if !f.writable() {
		return nil
	}
	if err := f.root.commit(); err != nil {
		return err
	}

	f.sb.RootGroupAddress = f.root.addr
	f.sb.EOFAddress = f.space.End()
	if _, err := f.sb.Write(f.w.At(0)); err != nil {
		return fmt.Errorf("writing superblock: %w", err)
	}
	// Headers rewritten at a new address may leave free space at the tail.
	if err := f.osf.Truncate(int64(f.sb.EOFAddress)); err != nil {
		return err
	}
	return f.osf.Sync()
}

// IsWritable reports whether f was made with Create.
func (f *File) IsWritable() bool { return f.writable() }

// SpaceStats reports how the file space of a writable file was used.
func (f *File) SpaceStats() alloc.Stats {
	if f.space == nil {
		return alloc.Stats{}
	}
	return f.space.Stats()
}
