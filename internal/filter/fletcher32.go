package filter

import (
	"encoding/binary"
	"fmt"

	binpkg "github.com/robert-malhotra/imslink/internal/binary"
	"github.com/robert-malhotra/imslink/internal/message"
)

// Fletcher32 appends a little-endian Fletcher-32 checksum to each chunk
// and verifies it on the way back.
type Fletcher32 struct{}

func NewFletcher32(clientData []uint32) *Fletcher32 {
	return &Fletcher32{}
}

func (f *Fletcher32) ID() uint16 { return message.FilterFletcher32 }

func (f *Fletcher32) Encode(input []byte) ([]byte, error) {
	out := make([]byte, len(input)+4)
	copy(out, input)
	binary.LittleEndian.PutUint32(out[len(input):], binpkg.Fletcher32(input))
	return out, nil
}

func (f *Fletcher32) Decode(input []byte) ([]byte, error) {
	if len(input) < 4 {
		return nil, fmt.Errorf("fletcher32: input too short for checksum")
	}
	data := input[:len(input)-4]
	stored := binary.LittleEndian.Uint32(input[len(input)-4:])
	if computed := binpkg.Fletcher32(data); stored != computed {
		return nil, fmt.Errorf("fletcher32: checksum mismatch (stored=0x%08x, computed=0x%08x)", stored, computed)
	}
	return data, nil
}
