package hdf5

import (
	"fmt"
	"path"

	"github.com/robert-malhotra/imslink/internal/btree"
	"github.com/robert-malhotra/imslink/internal/heap"
	"github.com/robert-malhotra/imslink/internal/message"
	"github.com/robert-malhotra/imslink/internal/object"
)

// Group is a group of an open file.
type Group struct {
	file   *File
	path   string
	header *object.Header
	addr   uint64

	// w holds the contents of a group of a writable file. The header is
	// nil for such groups.
	w *groupState

	// loaded caches the members of a read-only group.
	loaded []member
}

// member is one link of a group, with the object address of a hard link.
type member struct {
	LinkInfo
	addr uint64
}

func (g *Group) Path() string { return g.path }

// Name is the last component of the path, or "/" for the root.
func (g *Group) Name() string {
	if g.path == "/" {
		return "/"
	}
	return path.Base(g.path)
}

func (g *Group) childPath(name string) string {
	return path.Join(g.path, name)
}

// OpenGroup opens the group at a path relative to g.
func (g *Group) OpenGroup(rel string) (*Group, error) {
	obj, err := g.open(rel)
	if err != nil {
		return nil, err
	}
	sub, ok := obj.(*Group)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotGroup, g.childPath(rel))
	}
	return sub, nil
}

// OpenDataset opens the dataset at a path relative to g.
func (g *Group) OpenDataset(rel string) (*Dataset, error) {
	obj, err := g.open(rel)
	if err != nil {
		return nil, err
	}
	ds, ok := obj.(*Dataset)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotDataset, g.childPath(rel))
	}
	return ds, nil
}

// Links returns the members of g in storage order, as stored. Links are
// not followed and external files are not opened.
func (g *Group) Links() ([]LinkInfo, error) {
	ms, err := g.members()
	if err != nil {
		return nil, err
	}
	infos := make([]LinkInfo, len(ms))
	for i, m := range ms {
		infos[i] = m.LinkInfo
	}
	return infos, nil
}

// Members returns the member names of g in storage order.
func (g *Group) Members() ([]string, error) {
	ms, err := g.members()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(ms))
	for i, m := range ms {
		names[i] = m.Name
	}
	return names, nil
}

func (g *Group) member(name string) (member, error) {
	ms, err := g.members()
	if err != nil {
		return member{}, err
	}
	for _, m := range ms {
		if m.Name == name {
			return m, nil
		}
	}
	return member{}, ErrNotFound
}

// members lists the links of g. New style groups store link messages in
// the header; old style groups keep a symbol table, a B-tree of symbol
// nodes whose names live in a local heap.
func (g *Group) members() ([]member, error) {
	if g.w != nil {
		ms := make([]member, len(g.w.links))
		for i, l := range g.w.links {
			ms[i] = member{LinkInfo: linkInfo(l), addr: l.ObjectAddress}
		}
		return ms, nil
	}
	if g.loaded != nil {
		return g.loaded, nil
	}

	ms := []member{}
	for _, l := range g.header.Links() {
		ms = append(ms, member{LinkInfo: linkInfo(l), addr: l.ObjectAddress})
	}
	if st := g.symbolTable(); st != nil && len(ms) == 0 {
		names, err := heap.ReadLocalHeap(g.file.r, st.LocalHeapAddress)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", g.path, err)
		}
		syms, err := btree.ReadSymbols(g.file.r, st.BTreeAddress, names)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", g.path, err)
		}
		for _, s := range syms {
			m := member{LinkInfo: LinkInfo{Name: s.Name, Type: HardLink}, addr: s.Address}
			if s.IsSoftLink() {
				m.Type, m.SoftPath = SoftLink, s.Target
			}
			ms = append(ms, m)
		}
	}
	g.loaded = ms
	return ms, nil
}

// symbolTable returns the symbol table of an old style group. A root group
// without one may still have its table cached in the superblock.
func (g *Group) symbolTable() *message.SymbolTable {
	if st := g.header.SymbolTable(); st != nil {
		return st
	}
	sb := g.file.sb
	if g.header.Address == sb.RootGroupAddress && sb.RootGroupBTreeAddress != 0 {
		return &message.SymbolTable{
			BTreeAddress:     sb.RootGroupBTreeAddress,
			LocalHeapAddress: sb.RootGroupLocalHeapAddress,
		}
	}
	return nil
}

func (g *Group) attributes() []*message.Attribute {
	if g.w != nil {
		return g.w.attrs
	}
	return g.header.Attributes()
}

// Attrs returns the attribute names of g in storage order.
func (g *Group) Attrs() []string { return attrNames(g.attributes()) }

// Attr returns the named attribute, or nil.
func (g *Group) Attr(name string) *Attribute { return findAttr(g.file, g.attributes(), name) }

func (g *Group) HasAttr(name string) bool { return g.Attr(name) != nil }
