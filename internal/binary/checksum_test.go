package binary

import "testing"

func TestLookup3Checksum(t *testing.T) {
	tests := []struct {
		input string
		want  uint32
	}{
		{"", 0xdeadbeef},
		{"Four score and seven years ago", 0x17770551},
	}
	for _, tt := range tests {
		if got := Lookup3Checksum([]byte(tt.input)); got != tt.want {
			t.Errorf("Lookup3Checksum(%q) = 0x%08x, want 0x%08x", tt.input, got, tt.want)
		}
	}

	// Every length from 0 to 24 exercises a different tail.
	seen := make(map[uint32]int)
	for n := 0; n <= 24; n++ {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(i)
		}
		seen[Lookup3Checksum(data)] = n
	}
	if len(seen) != 25 {
		t.Errorf("got %d distinct checksums for 25 lengths", len(seen))
	}
}

// fletcherReference sums without intermediate folding and reduces once.
func fletcherReference(data []byte) uint32 {
	reduce := func(v uint64) uint32 {
		if v == 0 {
			return 0
		}
		return uint32((v-1)%65535 + 1)
	}
	var sum1, sum2 uint64
	for i := 0; i < len(data); i += 2 {
		w := uint64(data[i]) << 8
		if i+1 < len(data) {
			w |= uint64(data[i+1])
		}
		sum1 += w
		sum2 += sum1
	}
	return reduce(sum2)<<16 | reduce(sum1)
}

func TestFletcher32(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  uint32
	}{
		{"empty", nil, 0},
		{"one word", []byte{0x01, 0x02}, 0x01020102},
		{"odd", []byte{0x01, 0x02, 0x03}, 0x05040402},
		{"all ones", []byte{0xff, 0xff}, 0xffffffff},
	}
	for _, tt := range tests {
		if got := Fletcher32(tt.input); got != tt.want {
			t.Errorf("%s: Fletcher32 = 0x%08x, want 0x%08x", tt.name, got, tt.want)
		}
	}

	// Long inputs cross the 360 word folding blocks.
	for _, n := range []int{719, 720, 721, 5000, 65537} {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(i*31 + i>>8)
		}
		if got, want := Fletcher32(data), fletcherReference(data); got != want {
			t.Errorf("%d bytes: Fletcher32 = 0x%08x, reference 0x%08x", n, got, want)
		}
	}
}
