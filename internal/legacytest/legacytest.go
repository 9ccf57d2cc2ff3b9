// Package legacytest writes small HDF5 files in the layout Imaris and
// other HDF5 1.8 writers produce: a version 0 superblock, version 1 object
// headers and symbol table groups whose member names live in local heaps.
// The hdf5 package only writes the newer layout, so tests build old style
// tiles with this package.
package legacytest

import (
	"os"
	"sort"
	"strings"

	"github.com/robert-malhotra/imslink/internal/binary"
)

// Group is a group to write: char-array attributes and subgroups.
type Group struct {
	Attrs  []Attr
	Groups map[string]*Group
}

// Attr is a string attribute stored one character per element.
type Attr struct {
	Name  string
	Value string
}

// NewGroup returns an empty group.
func NewGroup() *Group { return &Group{Groups: make(map[string]*Group)} }

// Require returns the group at the slash separated path below g, making
// the groups on the way.
func (g *Group) Require(p string) *Group {
	cur := g
	for _, name := range strings.Split(strings.Trim(p, "/"), "/") {
		if name == "" {
			continue
		}
		next, ok := cur.Groups[name]
		if !ok {
			next = NewGroup()
			cur.Groups[name] = next
		}
		cur = next
	}
	return cur
}

// SetText adds or replaces a char-array attribute.
func (g *Group) SetText(name, value string) *Group {
	for i := range g.Attrs {
		if g.Attrs[i].Name == name {
			g.Attrs[i].Value = value
			return g
		}
	}
	g.Attrs = append(g.Attrs, Attr{Name: name, Value: value})
	return g
}

// Option adjusts how a tree is encoded.
type Option func(*file)

// RootInSuperblockOnly leaves the symbol table message out of the root
// group's header, so its members are found only through the B-tree and
// heap addresses cached in the superblock.
func RootInSuperblockOnly() Option {
	return func(f *file) { f.bareRoot = true }
}

// Write stores the tree rooted at root as a new file at path.
func Write(path string, root *Group, opts ...Option) error {
	return os.WriteFile(path, Bytes(root, opts...), 0o644)
}

// Field sizes with 8 byte offsets and lengths.
const (
	superblockSize = 96
	heapHeaderSize = 32
	symbolSize     = 40
	treeSize       = 48

	typeAttribute   = 0x0C
	typeSymbolTable = 0x11
)

// Bytes encodes the tree rooted at root.
func Bytes(root *Group, opts ...Option) []byte {
	f := &file{}
	for _, opt := range opts {
		opt(f)
	}
	f.alloc(superblockSize)
	header, tree, heap := f.group(root, true)

	w := f.at(0)
	w.WriteBytes([]byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'})
	// Versions of the superblock, free space, root entry, a reserved byte
	// and the shared header version, then offset and length sizes.
	w.WriteBytes([]byte{0, 0, 0, 0, 0, 8, 8, 0})
	w.WriteUint16(4)
	w.WriteUint16(16)
	w.WriteUint32(0)
	w.WriteOffset(0)
	w.WriteUndefinedOffset()
	w.WriteOffset(uint64(len(f.b)))
	w.WriteUndefinedOffset()
	// Root symbol table entry caching the group's B-tree and heap.
	w.WriteOffset(0)
	w.WriteOffset(header)
	w.WriteUint32(1)
	w.WriteZeros(4)
	w.WriteOffset(tree)
	w.WriteOffset(heap)
	return f.b
}

// file is a growable buffer. Writes to it cannot fail, so encoders ignore
// the writer's errors.
type file struct {
	b        []byte
	bareRoot bool
}

func (f *file) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(f.b) {
		f.b = append(f.b, make([]byte, end-len(f.b))...)
	}
	return copy(f.b[off:], p), nil
}

func (f *file) at(addr uint64) *binary.Writer {
	return binary.NewWriter(f, binary.DefaultConfig()).At(int64(addr))
}

// alloc reserves n bytes at the next eight byte boundary.
func (f *file) alloc(n int) uint64 {
	addr := pad8(len(f.b))
	f.b = append(f.b, make([]byte, addr+n-len(f.b))...)
	return uint64(addr)
}

func pad8(n int) int { return (n + 7) &^ 7 }

// group writes g and its subgroups and returns the addresses of its object
// header, B-tree and local heap.
func (f *file) group(g *Group, root bool) (header, tree, heap uint64) {
	names := make([]string, 0, len(g.Groups))
	for name := range g.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	addrs := make([]uint64, len(names))
	for i, name := range names {
		addrs[i], _, _ = f.group(g.Groups[name], false)
	}

	// Heap offset 0 is the empty name.
	seg := []byte{0}
	offs := make([]uint64, len(names))
	for i, name := range names {
		offs[i] = uint64(len(seg))
		seg = append(append(seg, name...), 0)
	}
	seg = append(seg, make([]byte, pad8(len(seg))-len(seg))...)
	heap = f.alloc(heapHeaderSize + len(seg))
	w := f.at(heap)
	w.WriteBytes([]byte("HEAP"))
	w.WriteZeros(4)
	w.WriteLength(uint64(len(seg)))
	w.WriteLength(w.UndefinedLength())
	w.WriteOffset(heap + heapHeaderSize)
	w.WriteBytes(seg)

	var snod uint64
	if len(names) > 0 {
		snod = f.alloc(8 + symbolSize*len(names))
		w = f.at(snod)
		w.WriteBytes([]byte("SNOD"))
		w.WriteUint8(1)
		w.WriteUint8(0)
		w.WriteUint16(uint16(len(names)))
		for i := range names {
			w.WriteOffset(offs[i])
			w.WriteOffset(addrs[i])
			w.WriteZeros(24)
		}
	}

	// A single leaf; its keys bracket the names of the symbol node.
	tree = f.alloc(treeSize)
	w = f.at(tree)
	w.WriteBytes([]byte("TREE"))
	w.WriteUint8(0)
	w.WriteUint8(0)
	used := uint16(0)
	if len(names) > 0 {
		used = 1
	}
	w.WriteUint16(used)
	w.WriteUndefinedOffset()
	w.WriteUndefinedOffset()
	w.WriteLength(0)
	if used > 0 {
		w.WriteOffset(snod)
		w.WriteLength(offs[len(offs)-1])
	}

	var msgs []message
	if !root || !f.bareRoot {
		msgs = append(msgs, message{typeSymbolTable, f.encode(func(w *binary.Writer) {
			w.WriteOffset(tree)
			w.WriteOffset(heap)
		})})
	}
	for _, a := range g.Attrs {
		msgs = append(msgs, message{typeAttribute, f.attribute(a)})
	}
	return f.header(msgs), tree, heap
}

type message struct {
	typ  uint16
	body []byte
}

// header writes a version 1 object header holding msgs.
func (f *file) header(msgs []message) uint64 {
	size := 0
	for _, m := range msgs {
		size += 8 + pad8(len(m.body))
	}
	addr := f.alloc(16 + size)
	w := f.at(addr)
	w.WriteUint8(1)
	w.WriteUint8(0)
	w.WriteUint16(uint16(len(msgs)))
	w.WriteUint32(1)
	w.WriteUint32(uint32(size))
	w.WriteZeros(4)
	for _, m := range msgs {
		n := pad8(len(m.body))
		w.WriteUint16(m.typ)
		w.WriteUint16(uint16(n))
		w.WriteZeros(4)
		w.WriteBytes(m.body)
		w.WriteZeros(n - len(m.body))
	}
	return addr
}

// attribute encodes a version 1 attribute message: a string type of one
// character and a one dimensional version 1 dataspace.
func (f *file) attribute(a Attr) []byte {
	name := len(a.Name) + 1
	return f.encode(func(w *binary.Writer) {
		w.WriteUint8(1)
		w.WriteUint8(0)
		w.WriteUint16(uint16(name))
		w.WriteUint16(8)
		w.WriteUint16(16)
		w.WriteBytes([]byte(a.Name))
		w.WriteZeros(pad8(name) - len(a.Name))
		// Version 1 string class, null terminated ASCII, size 1.
		w.WriteBytes([]byte{0x13, 0, 0, 0})
		w.WriteUint32(1)
		w.WriteBytes([]byte{1, 1, 0})
		w.WriteZeros(5)
		w.WriteLength(uint64(len(a.Value)))
		w.WriteBytes([]byte(a.Value))
	})
}

// encode runs fn against a scratch buffer and returns what it wrote.
func (f *file) encode(fn func(w *binary.Writer)) []byte {
	scratch := &file{}
	fn(scratch.at(0))
	return scratch.b
}
