// Package superblock finds and parses the superblock of an HDF5 file and
// writes the version 3 superblock new files start with. Imaris writers
// produce version 0 superblocks, so both generations are read.
package superblock

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	binpkg "github.com/robert-malhotra/imslink/internal/binary"
)

// Signature opens every superblock.
var Signature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

// A user block pushes the superblock to the next power of two from 512.
var searchOffsets = []int64{0, 512, 1024, 2048}

var (
	ErrNotHDF5            = errors.New("not an HDF5 file: signature not found")
	ErrUnsupportedVersion = errors.New("unsupported superblock version")
	ErrInvalidSuperblock  = errors.New("invalid superblock structure")
)

// Superblock holds what the rest of the package needs from the superblock.
type Superblock struct {
	Version    uint8
	OffsetSize uint8
	LengthSize uint8

	FileConsistencyFlags uint8

	BaseAddress                uint64
	SuperblockExtensionAddress uint64
	EOFAddress                 uint64
	RootGroupAddress           uint64

	// Version 0 and 1 only. The B-tree and heap addresses come from the
	// root symbol table entry's scratch pad and are zero when it caches
	// nothing.
	GroupLeafNodeK            uint16
	GroupInternalNodeK        uint16
	IndexedStorageK           uint16
	RootGroupBTreeAddress     uint64
	RootGroupLocalHeapAddress uint64

	ByteOrder  binary.ByteOrder
	FileOffset int64
}

// Read finds the signature at one of the permitted offsets and parses the
// superblock that follows it.
func Read(r io.ReaderAt) (*Superblock, error) {
	head := make([]byte, len(Signature)+1)
	for _, off := range searchOffsets {
		n, err := r.ReadAt(head, off)
		if n < len(Signature) {
			if err == nil || err == io.EOF {
				continue
			}
			return nil, err
		}
		if !bytes.Equal(head[:len(Signature)], Signature) {
			continue
		}
		if n < len(head) {
			return nil, fmt.Errorf("%w: truncated after signature", ErrInvalidSuperblock)
		}

		var sb *Superblock
		switch version := head[len(Signature)]; version {
		case 0, 1:
			sb, err = readV0(r, off, version)
		case 2, 3:
			sb, err = readV2(r, off)
		default:
			return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
		}
		if err != nil {
			return nil, err
		}
		sb.FileOffset = off
		sb.ByteOrder = binary.LittleEndian
		return sb, nil
	}
	return nil, ErrNotHDF5
}

// ReaderConfig is the binary configuration for reading the rest of the file.
func (sb *Superblock) ReaderConfig() binpkg.Config {
	return binpkg.Config{
		ByteOrder:  sb.ByteOrder,
		OffsetSize: int(sb.OffsetSize),
		LengthSize: int(sb.LengthSize),
	}
}

func validSize(n uint8) bool { return n == 2 || n == 4 || n == 8 }

// sized returns a reader at pos using the superblock's field widths.
func (sb *Superblock) sized(r io.ReaderAt, pos int64) (*binpkg.Reader, error) {
	if !validSize(sb.OffsetSize) || !validSize(sb.LengthSize) {
		return nil, fmt.Errorf("%w: offset size %d, length size %d", ErrInvalidSuperblock, sb.OffsetSize, sb.LengthSize)
	}
	return binpkg.NewReader(r, binpkg.Config{
		ByteOrder:  binary.LittleEndian,
		OffsetSize: int(sb.OffsetSize),
		LengthSize: int(sb.LengthSize),
	}).At(pos), nil
}

// readV0 parses versions 0 and 1: sizes and B-tree K values, four
// addresses, then the root group's symbol table entry.
func readV0(r io.ReaderAt, off int64, version uint8) (*Superblock, error) {
	fixed := 16
	if version == 1 {
		fixed += 4
	}
	hdr := make([]byte, fixed)
	if _, err := r.ReadAt(hdr, off+8); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSuperblock, err)
	}

	sb := &Superblock{
		Version:            version,
		OffsetSize:         hdr[5],
		LengthSize:         hdr[6],
		GroupLeafNodeK:     binary.LittleEndian.Uint16(hdr[8:]),
		GroupInternalNodeK: binary.LittleEndian.Uint16(hdr[10:]),
	}
	if version == 1 {
		sb.IndexedStorageK = binary.LittleEndian.Uint16(hdr[16:])
	}

	rd, err := sb.sized(r, off+8+int64(fixed))
	if err != nil {
		return nil, err
	}
	var freeSpace, driverInfo, linkName uint64
	var cacheType uint32
	for _, f := range []interface{}{
		&sb.BaseAddress, &freeSpace, &sb.EOFAddress, &driverInfo,
		&linkName, &sb.RootGroupAddress, &cacheType,
	} {
		switch p := f.(type) {
		case *uint64:
			*p, err = rd.ReadOffset()
		case *uint32:
			*p, err = rd.ReadUint32()
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSuperblock, err)
		}
	}

	// Cache type 1 means the scratch pad holds the group's B-tree and
	// local heap.
	if cacheType == 1 {
		rd.Skip(4)
		if sb.RootGroupBTreeAddress, err = rd.ReadOffset(); err == nil {
			sb.RootGroupLocalHeapAddress, err = rd.ReadOffset()
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSuperblock, err)
		}
	}
	return sb, nil
}

// readV2 parses versions 2 and 3, which differ only in the consistency
// flags they allow, and verifies the checksum.
func readV2(r io.ReaderAt, off int64) (*Superblock, error) {
	hdr := make([]byte, 4)
	if _, err := r.ReadAt(hdr, off+8); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSuperblock, err)
	}
	sb := &Superblock{
		Version:              hdr[0],
		OffsetSize:           hdr[1],
		LengthSize:           hdr[2],
		FileConsistencyFlags: hdr[3],
	}

	rd, err := sb.sized(r, off+12)
	if err != nil {
		return nil, err
	}
	for _, p := range []*uint64{&sb.BaseAddress, &sb.SuperblockExtensionAddress, &sb.EOFAddress, &sb.RootGroupAddress} {
		if *p, err = rd.ReadOffset(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSuperblock, err)
		}
	}
	end := rd.Pos()
	stored, err := rd.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSuperblock, err)
	}

	body := make([]byte, end-off)
	if _, err := r.ReadAt(body, off); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSuperblock, err)
	}
	if binpkg.Lookup3Checksum(body) != stored {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidSuperblock)
	}
	return sb, nil
}
