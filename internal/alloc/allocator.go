// Package alloc hands out file space to the writer. Space comes from the
// first freed block that fits, otherwise from the end of the file; a freed
// block that reaches the end of the file shrinks it instead.
package alloc

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

// Block is a span of file space. Owner names what a live block holds.
type Block struct {
	Addr  uint64
	Size  uint64
	Owner string
}

func (b Block) end() uint64 { return b.Addr + b.Size }

// Stats counts allocator activity.
type Stats struct {
	Allocs  uint64
	Bytes   uint64 // allocated in total
	Freed   uint64
	Reused  uint64 // served from freed blocks
	Largest uint64
}

type Allocator struct {
	mu    sync.Mutex
	base  uint64
	eof   uint64
	live  map[uint64]Block
	free  []Block // by address, never adjacent
	stats Stats
}

// New returns an allocator whose first block starts at base, the end of
// the superblock.
func New(base uint64) *Allocator {
	return &Allocator{base: base, eof: base, live: make(map[uint64]Block)}
}

// Alloc reserves size bytes for owner and returns their address. A zero
// size reserves nothing and returns the end of the file.
func (a *Allocator) Alloc(size uint64, owner string) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if size == 0 {
		return a.eof
	}

	addr := a.eof
	if i := slices.IndexFunc(a.free, func(b Block) bool { return b.Size >= size }); i >= 0 {
		addr = a.free[i].Addr
		if a.free[i].Size == size {
			a.free = slices.Delete(a.free, i, i+1)
		} else {
			a.free[i].Addr += size
			a.free[i].Size -= size
		}
		a.stats.Reused += size
	} else {
		a.eof += size
	}

	a.live[addr] = Block{Addr: addr, Size: size, Owner: owner}
	a.stats.Allocs++
	a.stats.Bytes += size
	a.stats.Largest = max(a.stats.Largest, size)
	return addr
}

// Free releases a live block. addr and size must match an allocation.
func (a *Allocator) Free(addr, size uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.live[addr]
	switch {
	case !ok:
		return fmt.Errorf("alloc: free of unallocated address 0x%x", addr)
	case b.Size != size:
		return fmt.Errorf("alloc: free of 0x%x with size %d, allocated %d", addr, size, b.Size)
	}
	delete(a.live, addr)
	a.stats.Freed += size

	i, _ := slices.BinarySearchFunc(a.free, addr, func(b Block, addr uint64) int { return cmp.Compare(b.Addr, addr) })
	a.free = slices.Insert(a.free, i, Block{Addr: addr, Size: size})
	if i+1 < len(a.free) && a.free[i].end() == a.free[i+1].Addr {
		a.free[i].Size += a.free[i+1].Size
		a.free = slices.Delete(a.free, i+1, i+2)
	}
	if i > 0 && a.free[i-1].end() == a.free[i].Addr {
		a.free[i-1].Size += a.free[i].Size
		a.free = slices.Delete(a.free, i, i+1)
	}
	if n := len(a.free); n > 0 && a.free[n-1].end() == a.eof {
		a.eof = a.free[n-1].Addr
		a.free = a.free[:n-1]
	}
	return nil
}

// End is the address one past the last allocated byte.
func (a *Allocator) End() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.eof
}

func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Live returns the live blocks by address.
func (a *Allocator) Live() []Block {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Block, 0, len(a.live))
	for _, b := range a.live {
		out = append(out, b)
	}
	slices.SortFunc(out, func(x, y Block) int { return cmp.Compare(x.Addr, y.Addr) })
	return out
}

// FreeList returns the free blocks by address.
func (a *Allocator) FreeList() []Block {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.free)
}

// Check verifies that live and free blocks lie between the base and the
// end of the file and do not overlap.
func (a *Allocator) Check() error {
	blocks := append(a.Live(), a.FreeList()...)
	slices.SortFunc(blocks, func(x, y Block) int { return cmp.Compare(x.Addr, y.Addr) })
	end := a.End()
	for i, b := range blocks {
		if b.Addr < a.base || b.end() > end {
			return fmt.Errorf("alloc: block [0x%x, 0x%x) outside [0x%x, 0x%x)", b.Addr, b.end(), a.base, end)
		}
		if i > 0 && blocks[i-1].end() > b.Addr {
			return fmt.Errorf("alloc: blocks at 0x%x and 0x%x overlap", blocks[i-1].Addr, b.Addr)
		}
	}
	return nil
}

// Func adapts the allocator to the allocation callback of the chunk
// writer, tagging every block with owner.
func (a *Allocator) Func(owner string) func(size int64) uint64 {
	return func(size int64) uint64 {
		return a.Alloc(uint64(max(size, 0)), owner)
	}
}
