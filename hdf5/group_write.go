package hdf5

import (
	"fmt"
	"strings"

	"github.com/robert-malhotra/imslink/internal/dtype"
	"github.com/robert-malhotra/imslink/internal/message"
	"github.com/robert-malhotra/imslink/internal/object"
)

// groupState is a group of a writable file. Groups are written bottom-up
// by commit, so a group can still change after its children were made.
type groupState struct {
	links    []*message.Link
	attrs    []*message.Attribute
	children map[string]*Group // groups made in this session, by link name
	dirty    bool

	// size of the header on disk, 0 before the first commit
	written uint64
}

func newGroupState() *groupState {
	return &groupState{children: make(map[string]*Group), dirty: true}
}

func (g *Group) writable() error {
	switch {
	case g.file.closed:
		return ErrClosed
	case g.w == nil:
		return ErrReadOnly
	}
	return nil
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return fmt.Errorf("%w: link name %q", ErrInvalidPath, name)
	}
	return nil
}

func (g *Group) link(name string) *message.Link {
	for _, l := range g.w.links {
		if l.Name == name {
			return l
		}
	}
	return nil
}

func (g *Group) addLink(l *message.Link) error {
	if err := checkName(l.Name); err != nil {
		return err
	}
	if g.link(l.Name) != nil {
		return fmt.Errorf("%w: %s", ErrExists, g.childPath(l.Name))
	}
	g.w.links = append(g.w.links, l)
	g.w.dirty = true
	return nil
}

// CreateGroup adds an empty subgroup. name is one path component; see
// RequireGroup for paths.
func (g *Group) CreateGroup(name string) (*Group, error) {
	if err := g.writable(); err != nil {
		return nil, err
	}
	// The address is filled in by commit.
	if err := g.addLink(message.NewHardLink(name, 0)); err != nil {
		return nil, err
	}
	child := &Group{file: g.file, path: g.childPath(name), w: newGroupState()}
	g.w.children[name] = child
	return child, nil
}

// RequireGroup returns the group at a path relative to g, making the
// groups that are missing.
func (g *Group) RequireGroup(rel string) (*Group, error) {
	if err := g.writable(); err != nil {
		return nil, err
	}
	cur := g
	for _, name := range SplitPath(rel) {
		if child, ok := cur.w.children[name]; ok {
			cur = child
			continue
		}
		if cur.link(name) != nil {
			return nil, fmt.Errorf("%w: %s", ErrNotGroup, cur.childPath(name))
		}
		child, err := cur.CreateGroup(name)
		if err != nil {
			return nil, err
		}
		cur = child
	}
	return cur, nil
}

// parentOf returns the group that holds the last component of rel,
// making the groups before it.
func (g *Group) parentOf(rel string) (*Group, string, error) {
	parts := SplitPath(rel)
	if len(parts) == 0 {
		return nil, "", fmt.Errorf("%w: empty link path", ErrInvalidPath)
	}
	parent, err := g.RequireGroup(strings.Join(parts[:len(parts)-1], "/"))
	if err != nil {
		return nil, "", err
	}
	return parent, parts[len(parts)-1], nil
}

// CreateExternalLink links rel, a path relative to g, to the object at
// targetPath in targetFile. targetFile is stored as given and resolved
// against the directory of the linking file when followed.
func (g *Group) CreateExternalLink(rel, targetFile, targetPath string) error {
	if err := g.writable(); err != nil {
		return err
	}
	if targetFile == "" {
		return fmt.Errorf("%w: external link %s has no file", ErrInvalidPath, rel)
	}
	parent, name, err := g.parentOf(rel)
	if err != nil {
		return err
	}
	return parent.addLink(message.NewExternalLink(name, targetFile, CleanPath(targetPath)))
}

// CreateSoftLink links rel, a path relative to g, to the absolute path
// target of the same file.
func (g *Group) CreateSoftLink(rel, target string) error {
	if err := g.writable(); err != nil {
		return err
	}
	parent, name, err := g.parentOf(rel)
	if err != nil {
		return err
	}
	return parent.addLink(message.NewSoftLink(name, CleanPath(target)))
}

// SetAttr sets an attribute from a number, a string, or slices of them.
// Strings are stored as null-terminated fixed-length strings.
func (g *Group) SetAttr(name string, value any) error {
	if err := g.writable(); err != nil {
		return err
	}
	a, err := newAttribute(name, value)
	if err != nil {
		return err
	}
	g.putAttr(a)
	return nil
}

// SetCharArrayAttr sets a string attribute stored as an array of one
// character strings, the encoding Imaris reads.
func (g *Group) SetCharArrayAttr(name, value string) error {
	if err := g.writable(); err != nil {
		return err
	}
	for i := 0; i < len(value); i++ {
		if value[i] > 0x7f {
			return fmt.Errorf("attribute %q: byte %d is not ASCII", name, i)
		}
	}
	dt := message.NewStringDatatype(1, message.PadNullTerm, message.CharsetASCII)
	space := message.NewDataspace([]uint64{uint64(len(value))}, nil)
	g.putAttr(message.NewAttribute(name, dt, space, []byte(value)))
	return nil
}

// DeleteAttr removes an attribute, or returns ErrNotFound.
func (g *Group) DeleteAttr(name string) error {
	if err := g.writable(); err != nil {
		return err
	}
	for i, a := range g.w.attrs {
		if a.Name == name {
			g.w.attrs = append(g.w.attrs[:i], g.w.attrs[i+1:]...)
			g.w.dirty = true
			return nil
		}
	}
	return fmt.Errorf("%w: attribute %s", ErrNotFound, JoinAttrPath(g.path, name))
}

// putAttr replaces the attribute of the same name in place, keeping the
// order attributes were first set in.
func (g *Group) putAttr(a *message.Attribute) {
	g.w.dirty = true
	for i, old := range g.w.attrs {
		if old.Name == a.Name {
			g.w.attrs[i] = a
			return
		}
	}
	g.w.attrs = append(g.w.attrs, a)
}

func newAttribute(name string, value any) (*message.Attribute, error) {
	dt, dims, err := dtype.Infer(value)
	if err != nil {
		return nil, fmt.Errorf("attribute %q: %w", name, err)
	}
	data, err := dtype.Encode(dt, value)
	if err != nil {
		return nil, fmt.Errorf("attribute %q: %w", name, err)
	}
	space := message.NewScalarDataspace()
	if dims != nil {
		space = message.NewDataspace(dims, nil)
	}
	return message.NewAttribute(name, dt, space, data), nil
}

// commit writes g and its changed descendants. Children go first so their
// addresses are known when g's links are encoded. An unchanged group
// keeps its header.
func (g *Group) commit() error {
	st := g.w
	for _, l := range st.links {
		child, ok := st.children[l.Name]
		if !ok {
			continue
		}
		if err := child.commit(); err != nil {
			return err
		}
		if l.ObjectAddress != child.addr {
			l.ObjectAddress = child.addr
			st.dirty = true
		}
	}
	if !st.dirty {
		return nil
	}

	msgs := object.NewGroupHeader(st.links, st.attrs)
	cfg := g.file.w.Config()
	b, err := object.Encode(cfg, msgs, object.MinGroupChunk)
	if err != nil {
		return fmt.Errorf("group %s: %w", g.path, err)
	}
	if st.written > 0 {
		if err := g.file.space.Free(g.addr, st.written); err != nil {
			return fmt.Errorf("group %s: %w", g.path, err)
		}
	}
	addr := g.file.space.Alloc(uint64(len(b)), g.path)
	if err := g.file.w.At(int64(addr)).WriteBytes(b); err != nil {
		return fmt.Errorf("group %s: %w", g.path, err)
	}
	g.addr = addr
	st.written = uint64(len(b))
	st.dirty = false
	return nil
}
