// Package object reads version 1 and 2 object headers, following
// continuation blocks, and encodes version 2 headers for new groups and
// datasets.
package object

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/imslink/internal/binary"
	"github.com/robert-malhotra/imslink/internal/message"
)

var (
	ErrInvalidHeader      = errors.New("invalid object header")
	ErrUnsupportedVersion = errors.New("unsupported object header version")
	ErrChecksumMismatch   = errors.New("object header checksum mismatch")
)

const (
	signature             = "OHDR"
	continuationSignature = "OCHK"

	// maxBlocks bounds the continuation chain so a cycle cannot loop.
	maxBlocks = 4096
)

// Version 2 header flags.
const (
	flagSizeWidth   = 0x03
	flagTrackOrder  = 0x04
	flagPhaseChange = 0x10
	flagTimes       = 0x20
)

// Header is a parsed object header.
type Header struct {
	Version  uint8
	Address  uint64
	Flags    uint8
	RefCount uint32
	// ModTime is the modification time in seconds since the epoch when the
	// header stores times.
	ModTime uint32

	// Messages holds the decoded messages of every block in file order.
	// Continuation and NIL messages are consumed while reading.
	Messages []message.Message
	// Skipped records messages that failed to decode. Such a message is
	// left out of Messages and does not fail the header.
	Skipped []error
}

// Read parses the object header at address.
func Read(r *binary.Reader, address uint64) (*Header, error) {
	hr := r.At(int64(address))
	peek, err := hr.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("object header at 0x%x: %w", address, err)
	}

	h := &Header{Address: address}
	var next []*message.Continuation
	switch {
	case string(peek) == signature:
		next, err = h.readV2(hr)
	case peek[0] == 1:
		next, err = h.readV1(hr)
	default:
		return nil, fmt.Errorf("%w: no header at 0x%x", ErrInvalidHeader, address)
	}
	if err != nil {
		return nil, fmt.Errorf("object header at 0x%x: %w", address, err)
	}

	for i := 0; i < len(next); i++ {
		if i == maxBlocks {
			return nil, fmt.Errorf("object header at 0x%x: more than %d continuation blocks", address, maxBlocks)
		}
		more, err := h.readContinuation(r, next[i])
		if err != nil {
			return nil, fmt.Errorf("object header at 0x%x: continuation at 0x%x: %w", address, next[i].Offset, err)
		}
		next = append(next, more...)
	}
	return h, nil
}

// Version 1 prefix: version, reserved, message count u16, reference count
// u32, header size u32, then four bytes of padding.
func (h *Header) readV1(r *binary.Reader) ([]*message.Continuation, error) {
	prefix, err := r.ReadBytes(16)
	if err != nil {
		return nil, err
	}
	bo := r.ByteOrder()
	h.Version = 1
	h.RefCount = bo.Uint32(prefix[4:])
	size := bo.Uint32(prefix[8:])
	block, err := r.ReadBytes(int(size))
	if err != nil {
		return nil, err
	}
	return h.decodeBlock(r, block)
}

func (h *Header) readV2(r *binary.Reader) ([]*message.Continuation, error) {
	start := r.Pos()
	r.Skip(4)
	version, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != 2 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	h.Version = 2
	if h.Flags, err = r.ReadUint8(); err != nil {
		return nil, err
	}
	if h.Flags&flagTimes != 0 {
		times, err := r.ReadBytes(16)
		if err != nil {
			return nil, err
		}
		h.ModTime = r.ByteOrder().Uint32(times[4:])
	}
	if h.Flags&flagPhaseChange != 0 {
		r.Skip(4)
	}
	size, err := r.ReadUintN(1 << (h.Flags & flagSizeWidth))
	if err != nil {
		return nil, err
	}

	// The checksum covers everything from the signature to the end of the
	// first block.
	end := r.Pos() + int64(size)
	whole, err := r.At(start).ReadBytes(int(end - start + 4))
	if err != nil {
		return nil, err
	}
	if err := verify(whole); err != nil {
		return nil, err
	}
	return h.decodeBlock(r, whole[r.Pos()-start:len(whole)-4])
}

// readContinuation decodes one continuation block. Version 2 blocks carry
// a signature and a checksum.
func (h *Header) readContinuation(r *binary.Reader, c *message.Continuation) ([]*message.Continuation, error) {
	block, err := r.At(int64(c.Offset)).ReadBytes(int(c.Length))
	if err != nil {
		return nil, err
	}
	if h.Version == 1 {
		return h.decodeBlock(r, block)
	}
	if len(block) < 8 || string(block[:4]) != continuationSignature {
		return nil, fmt.Errorf("%w: bad continuation signature", ErrInvalidHeader)
	}
	if err := verify(block); err != nil {
		return nil, err
	}
	return h.decodeBlock(r, block[4:len(block)-4])
}

// verify checks the trailing lookup3 checksum of b.
func verify(b []byte) error {
	n := len(b) - 4
	stored := uint32(b[n]) | uint32(b[n+1])<<8 | uint32(b[n+2])<<16 | uint32(b[n+3])<<24
	if sum := binary.Lookup3Checksum(b[:n]); sum != stored {
		return fmt.Errorf("%w: stored 0x%08x, computed 0x%08x", ErrChecksumMismatch, stored, sum)
	}
	return nil
}

// decodeBlock parses the message records in block and returns the
// continuation blocks they point to. A tail too short for a record header
// is a gap and is ignored.
func (h *Header) decodeBlock(r *binary.Reader, block []byte) ([]*message.Continuation, error) {
	var next []*message.Continuation
	for {
		typ, flags, data, rest, ok, err := h.record(block)
		if err != nil {
			return nil, err
		}
		if !ok {
			return next, nil
		}
		block = rest

		switch typ {
		case message.TypeNIL:
			continue
		case message.TypeContinuation:
			c, err := message.ParseContinuation(data, r)
			if err != nil {
				return nil, err
			}
			next = append(next, c)
			continue
		}
		msg, err := message.Parse(typ, data, flags, r)
		if err != nil {
			h.Skipped = append(h.Skipped, err)
			continue
		}
		h.Messages = append(h.Messages, msg)
	}
}

// record splits the first message record off b. Version 1 records are a
// type u16, size u16, flags and three reserved bytes, with the body padded
// to eight bytes. Version 2 records are a type byte, size u16 and flags,
// then a creation order u16 when the header tracks it. ok is false when b
// holds no further record.
func (h *Header) record(b []byte) (typ message.Type, flags uint8, data, rest []byte, ok bool, err error) {
	n := 4
	switch {
	case h.Version == 1:
		n = 8
	case h.Flags&flagTrackOrder != 0:
		n = 6
	}
	if len(b) < n {
		return 0, 0, nil, nil, false, nil
	}
	var size int
	if h.Version == 1 {
		typ = message.Type(uint16(b[0]) | uint16(b[1])<<8)
		size = int(uint16(b[2]) | uint16(b[3])<<8)
		flags = b[4]
	} else {
		typ = message.Type(b[0])
		size = int(uint16(b[1]) | uint16(b[2])<<8)
		flags = b[3]
	}
	if n+size > len(b) {
		return 0, 0, nil, nil, false, fmt.Errorf("%w: message type 0x%02x of %d bytes overruns its block", ErrInvalidHeader, uint16(typ), size)
	}
	data = b[n : n+size]
	end := n + size
	if h.Version == 1 {
		end = min((end+7)&^7, len(b))
	}
	return typ, flags, data, b[end:], true, nil
}

// Find returns the first message of type typ, or nil.
func (h *Header) Find(typ message.Type) message.Message {
	for _, m := range h.Messages {
		if m.Type() == typ {
			return m
		}
	}
	return nil
}

// FindAll returns every message of type typ in order.
func (h *Header) FindAll(typ message.Type) []message.Message {
	var out []message.Message
	for _, m := range h.Messages {
		if m.Type() == typ {
			out = append(out, m)
		}
	}
	return out
}

// IsDataset reports whether the header describes a dataset, which is any
// object with a dataspace and a layout.
func (h *Header) IsDataset() bool {
	return h.Find(message.TypeDataspace) != nil && h.Find(message.TypeDataLayout) != nil
}

func (h *Header) Dataspace() *message.Dataspace {
	m, _ := h.Find(message.TypeDataspace).(*message.Dataspace)
	return m
}

func (h *Header) Datatype() *message.Datatype {
	m, _ := h.Find(message.TypeDatatype).(*message.Datatype)
	return m
}

func (h *Header) DataLayout() *message.DataLayout {
	m, _ := h.Find(message.TypeDataLayout).(*message.DataLayout)
	return m
}

func (h *Header) FilterPipeline() *message.FilterPipeline {
	m, _ := h.Find(message.TypeFilterPipeline).(*message.FilterPipeline)
	return m
}

func (h *Header) SymbolTable() *message.SymbolTable {
	m, _ := h.Find(message.TypeSymbolTable).(*message.SymbolTable)
	return m
}

// Attributes returns the attribute messages in storage order.
func (h *Header) Attributes() []*message.Attribute {
	var out []*message.Attribute
	for _, m := range h.FindAll(message.TypeAttribute) {
		out = append(out, m.(*message.Attribute))
	}
	return out
}

// Links returns the link messages of a new style group in storage order.
func (h *Header) Links() []*message.Link {
	var out []*message.Link
	for _, m := range h.FindAll(message.TypeLink) {
		out = append(out, m.(*message.Link))
	}
	return out
}
