// Package binary reads and writes the fixed and variable width integers
// and checksums of the HDF5 format. Offsets (file addresses) and lengths
// have the widths the superblock declares, 2, 4 or 8 bytes.
package binary

import (
	"encoding/binary"
	"io"
)

// Config sets the byte order and the widths of offsets and lengths.
type Config struct {
	ByteOrder  binary.ByteOrder
	OffsetSize int
	LengthSize int
}

// DefaultConfig is little endian with 8 byte offsets and lengths, what the
// superblock is read with and what new files are written with.
func DefaultConfig() Config {
	return Config{ByteOrder: binary.LittleEndian, OffsetSize: 8, LengthSize: 8}
}

// allOnes is the undefined value of an n byte field.
func allOnes(n int) uint64 {
	if n >= 8 {
		return ^uint64(0)
	}
	return 1<<(8*uint(n)) - 1
}

func (c Config) decode(buf []byte) uint64 {
	switch len(buf) {
	case 1:
		return uint64(buf[0])
	case 2:
		return uint64(c.ByteOrder.Uint16(buf))
	case 4:
		return uint64(c.ByteOrder.Uint32(buf))
	case 8:
		return c.ByteOrder.Uint64(buf)
	}
	// Odd widths only occur in little endian structures such as chunk
	// sizes in fixed array entries.
	var v uint64
	for i := len(buf) - 1; i >= 0; i-- {
		v = v<<8 | uint64(buf[i])
	}
	return v
}

func (c Config) encode(buf []byte, v uint64) {
	switch len(buf) {
	case 1:
		buf[0] = byte(v)
	case 2:
		c.ByteOrder.PutUint16(buf, uint16(v))
	case 4:
		c.ByteOrder.PutUint32(buf, uint32(v))
	case 8:
		c.ByteOrder.PutUint64(buf, v)
	default:
		for i := range buf {
			buf[i] = byte(v >> (8 * uint(i)))
		}
	}
}

// Reader decodes values from an io.ReaderAt, advancing its own position.
// Readers made with At share the source but not the position.
type Reader struct {
	src io.ReaderAt
	cfg Config
	pos int64
}

func NewReader(r io.ReaderAt, cfg Config) *Reader {
	return &Reader{src: r, cfg: cfg}
}

// At returns a reader over the same source positioned at offset.
func (r *Reader) At(offset int64) *Reader {
	c := *r
	c.pos = offset
	return &c
}

func (r *Reader) Pos() int64 { return r.pos }

func (r *Reader) Skip(n int64) { r.pos += n }

// Align moves forward to the next multiple of alignment.
func (r *Reader) Align(alignment int64) {
	if alignment <= 1 {
		return
	}
	if rem := r.pos % alignment; rem != 0 {
		r.pos += alignment - rem
	}
}

// Peek reads n bytes without moving.
func (r *Reader) Peek(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	got, err := r.src.ReadAt(buf, r.pos)
	if got == n {
		return buf, nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return nil, err
}

// ReadBytes reads exactly n bytes. A short read is io.ErrUnexpectedEOF.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	buf, err := r.Peek(n)
	if err != nil {
		return nil, err
	}
	r.pos += int64(n)
	return buf, nil
}

// ReadUintN reads an n byte unsigned integer.
func (r *Reader) ReadUintN(n int) (uint64, error) {
	buf, err := r.ReadBytes(n)
	if err != nil {
		return 0, err
	}
	return r.cfg.decode(buf), nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	v, err := r.ReadUintN(1)
	return uint8(v), err
}

func (r *Reader) ReadUint16() (uint16, error) {
	v, err := r.ReadUintN(2)
	return uint16(v), err
}

func (r *Reader) ReadUint32() (uint32, error) {
	v, err := r.ReadUintN(4)
	return uint32(v), err
}

func (r *Reader) ReadUint64() (uint64, error) {
	return r.ReadUintN(8)
}

// ReadOffset reads a file address.
func (r *Reader) ReadOffset() (uint64, error) {
	return r.ReadUintN(r.cfg.OffsetSize)
}

// ReadLength reads a size or count field.
func (r *Reader) ReadLength() (uint64, error) {
	return r.ReadUintN(r.cfg.LengthSize)
}

// IsUndefinedOffset reports whether addr is the all ones "no address"
// value at this reader's offset width.
func (r *Reader) IsUndefinedOffset(addr uint64) bool {
	return addr == allOnes(r.cfg.OffsetSize)
}

func (r *Reader) Config() Config { return r.cfg }

func (r *Reader) OffsetSize() int { return r.cfg.OffsetSize }

func (r *Reader) LengthSize() int { return r.cfg.LengthSize }

func (r *Reader) ByteOrder() binary.ByteOrder { return r.cfg.ByteOrder }
