// Package filter implements the HDF5 chunk filters used by Imaris files:
// deflate, byte shuffle and the Fletcher-32 checksum.
package filter

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/imslink/internal/message"
)

// ErrUnsupported is returned for a required filter this package lacks.
var ErrUnsupported = errors.New("unsupported filter")

// Filter is one stage of a chunk filter pipeline. Encode produces the
// stored form of a chunk and Decode reverses it.
type Filter interface {
	ID() uint16
	Encode(chunk []byte) ([]byte, error)
	Decode(stored []byte) ([]byte, error)
}

// New returns the filter described by info. A missing optional filter
// gives nil and no error.
func New(info message.FilterInfo) (Filter, error) {
	switch info.ID {
	case message.FilterDeflate:
		return NewDeflate(info.ClientData), nil
	case message.FilterShuffle:
		return NewShuffle(info.ClientData), nil
	case message.FilterFletcher32:
		return NewFletcher32(info.ClientData), nil
	}
	if info.IsOptional() {
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, name(info.ID))
}

func name(id uint16) string {
	switch id {
	case message.FilterSZIP:
		return "SZIP"
	case message.FilterNBit:
		return "N-bit"
	case message.FilterScaleOffset:
		return "scale-offset"
	}
	return fmt.Sprintf("ID %d", id)
}
