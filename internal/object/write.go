package object

import (
	"fmt"

	"github.com/robert-malhotra/imslink/internal/binary"
	"github.com/robert-malhotra/imslink/internal/message"
)

// MinGroupChunk is the smallest message block given to a group header. The
// HDF5 library can then add a few links in place without a continuation.
const MinGroupChunk = 120

// maxMessageSize is the largest body a version 2 record can describe.
const maxMessageSize = 0xffff

// Encode lays out a version 2 object header holding msgs in order. The
// message block is padded with a NIL message to at least minChunk bytes.
// Addresses inside msgs do not change the size, so a header may be encoded
// once to size its allocation and again once the addresses are known.
func Encode(cfg binary.Config, msgs []message.Message, minChunk int) ([]byte, error) {
	buf := &buffer{}
	w := binary.NewWriter(buf, cfg)

	var body int
	sizes := make([]int, len(msgs))
	for i, m := range msgs {
		s, ok := m.(message.Serializable)
		if !ok {
			return nil, fmt.Errorf("message type 0x%02x cannot be written", uint16(m.Type()))
		}
		sizes[i] = s.SerializedSize(w)
		if sizes[i] > maxMessageSize {
			return nil, fmt.Errorf("message type 0x%02x of %d bytes exceeds %d", uint16(m.Type()), sizes[i], maxMessageSize)
		}
		body += 4 + sizes[i]
	}
	chunk := max(body, minChunk)
	pad := chunk - body
	if pad > 0 && pad < 4 {
		// A NIL record needs at least its own four byte header.
		pad = 4
		chunk = body + pad
	}
	width := sizeWidth(uint64(chunk))

	w.WriteBytes([]byte(signature))
	w.WriteUint8(2)
	w.WriteUint8(flagBits(width))
	w.WriteUintN(uint64(chunk), width)
	for i, m := range msgs {
		w.WriteUint8(uint8(m.Type()))
		w.WriteUint16(uint16(sizes[i]))
		w.WriteUint8(0)
		if err := m.(message.Serializable).Serialize(w); err != nil {
			return nil, err
		}
	}
	if pad > 0 {
		w.WriteUint8(uint8(message.TypeNIL))
		w.WriteUint16(uint16(pad - 4))
		w.WriteUint8(0)
		w.WriteZeros(pad - 4)
	}
	w.WriteUint32(binary.Lookup3Checksum(buf.b))
	return buf.b, nil
}

// Size is the encoded size of a header holding msgs.
func Size(cfg binary.Config, msgs []message.Message, minChunk int) (int, error) {
	b, err := Encode(cfg, msgs, minChunk)
	return len(b), err
}

// Write encodes the header and writes it at w's position.
func Write(w *binary.Writer, msgs []message.Message, minChunk int) (int64, error) {
	b, err := Encode(w.Config(), msgs, minChunk)
	if err != nil {
		return 0, err
	}
	if err := w.WriteBytes(b); err != nil {
		return 0, err
	}
	return int64(len(b)), nil
}

// sizeWidth is the width of the chunk size field, 1, 2, 4 or 8 bytes.
func sizeWidth(v uint64) int {
	switch {
	case v <= 0xff:
		return 1
	case v <= 0xffff:
		return 2
	case v <= 0xffffffff:
		return 4
	}
	return 8
}

func flagBits(width int) uint8 {
	switch width {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	}
	return 3
}

// NewGroupHeader returns the messages of a new style group with compact
// links. The HDF5 library expects link info and group info first.
func NewGroupHeader(links []*message.Link, attrs []*message.Attribute) []message.Message {
	msgs := []message.Message{message.NewLinkInfo(), message.NewGroupInfo()}
	for _, l := range links {
		msgs = append(msgs, l)
	}
	for _, a := range attrs {
		msgs = append(msgs, a)
	}
	return msgs
}

// NewDatasetHeader returns the messages of a dataset. fp may be nil.
func NewDatasetHeader(space *message.Dataspace, dt *message.Datatype, layout *message.DataLayout, fp *message.FilterPipeline, attrs []*message.Attribute) []message.Message {
	msgs := []message.Message{space, dt}
	if fp != nil && len(fp.Filters) > 0 {
		msgs = append(msgs, fp)
	}
	msgs = append(msgs, layout)
	for _, a := range attrs {
		msgs = append(msgs, a)
	}
	return msgs
}

// buffer is a growable in-memory io.WriterAt.
type buffer struct{ b []byte }

func (m *buffer) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(m.b) {
		m.b = append(m.b, make([]byte, end-len(m.b))...)
	}
	return copy(m.b[off:], p), nil
}
