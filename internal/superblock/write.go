package superblock

import (
	binpkg "github.com/robert-malhotra/imslink/internal/binary"
)

// NewSuperblock returns a version 3 superblock with 8 byte offsets and
// lengths. The root and EOF addresses are filled in when the file closes.
func NewSuperblock() *Superblock {
	return &Superblock{Version: 3, OffsetSize: 8, LengthSize: 8}
}

// Size is the encoded size of a version 2 or 3 superblock.
func (sb *Superblock) Size() int {
	o := int(sb.OffsetSize)
	if o == 0 {
		o = 8
	}
	return len(Signature) + 4 + 4*o + 4
}

// fixedBuffer is an io.WriterAt over a preallocated slice.
type fixedBuffer []byte

func (b fixedBuffer) WriteAt(p []byte, off int64) (int, error) {
	return copy(b[off:], p), nil
}

// Write encodes the superblock, with its checksum, at w's position and
// returns the number of bytes written. Versions below 2 are written as 2.
func (sb *Superblock) Write(w *binpkg.Writer) (int64, error) {
	buf := make(fixedBuffer, 12+4*w.OffsetSize()+4)
	bw := binpkg.NewWriter(buf, binpkg.Config{
		ByteOrder:  w.ByteOrder(),
		OffsetSize: w.OffsetSize(),
		LengthSize: w.LengthSize(),
	})

	version := sb.Version
	if version < 2 {
		version = 2
	}
	ext := sb.SuperblockExtensionAddress
	if ext == 0 {
		ext = bw.UndefinedOffset()
	}

	bw.WriteBytes(Signature)
	for _, b := range []uint8{version, sb.OffsetSize, sb.LengthSize, sb.FileConsistencyFlags} {
		bw.WriteUint8(b)
	}
	for _, addr := range []uint64{sb.BaseAddress, ext, sb.EOFAddress, sb.RootGroupAddress} {
		bw.WriteOffset(addr)
	}
	bw.WriteUint32(binpkg.Lookup3Checksum(buf[:bw.Pos()]))

	if err := w.WriteBytes(buf); err != nil {
		return 0, err
	}
	return int64(len(buf)), nil
}
