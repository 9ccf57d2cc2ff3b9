package filter

import (
	"github.com/robert-malhotra/imslink/internal/message"
)

// Shuffle groups byte k of every element together, which helps deflate on
// multi-byte voxel types. Its client data holds the element size.
type Shuffle struct {
	elemSize int
}

func NewShuffle(clientData []uint32) *Shuffle {
	elemSize := 1
	if len(clientData) > 0 && clientData[0] > 0 {
		elemSize = int(clientData[0])
	}
	return &Shuffle{elemSize: elemSize}
}

func (f *Shuffle) ID() uint16 { return message.FilterShuffle }

// Encode turns [e0b0 e0b1 e1b0 e1b1 ...] into [e0b0 e1b0 ... e0b1 e1b1 ...].
// Trailing bytes that do not fill an element are kept in place.
func (f *Shuffle) Encode(input []byte) ([]byte, error) {
	return f.permute(input, true), nil
}

func (f *Shuffle) Decode(input []byte) ([]byte, error) {
	return f.permute(input, false), nil
}

func (f *Shuffle) permute(input []byte, shuffle bool) []byte {
	n := len(input) / f.elemSize
	if f.elemSize <= 1 || n == 0 {
		return input
	}
	output := make([]byte, len(input))
	for i := 0; i < n; i++ {
		for j := 0; j < f.elemSize; j++ {
			element, grouped := i*f.elemSize+j, j*n+i
			if shuffle {
				output[grouped] = input[element]
			} else {
				output[element] = input[grouped]
			}
		}
	}
	copy(output[n*f.elemSize:], input[n*f.elemSize:])
	return output
}
