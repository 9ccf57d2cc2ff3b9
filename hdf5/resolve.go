package hdf5

import (
	"fmt"
	"path"
)

// trail records the soft and external links followed while resolving one
// path, so cycles and runaway chains end in an error.
type trail map[string]bool

func (t trail) visit(key string) error {
	if len(t) >= MaxLinkDepth {
		return ErrLinkDepth
	}
	if t[key] {
		return fmt.Errorf("%w through %s", ErrLinkCycle, key)
	}
	t[key] = true
	return nil
}

// target is where a link leads: an object header in some file, or a group
// of a writable file that has not been written yet.
type target struct {
	file    *File
	addr    uint64
	pending *Group
}

// open returns the *Group or *Dataset at t, named p unless it is pending.
func (t target) open(p string) (any, error) {
	if t.pending != nil {
		return t.pending, nil
	}
	return t.file.object(t.addr, p)
}

// open resolves a path relative to g, following links of every kind, and
// returns a *Group or *Dataset. Opened objects are named by the path they
// were reached through.
func (g *Group) open(rel string) (any, error) {
	if g.file.closed {
		return nil, ErrClosed
	}
	parts := SplitPath(rel)
	var obj any = g
	tr := trail{}
	for i, name := range parts {
		cur, ok := obj.(*Group)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotGroup, path.Join(parts[:i]...))
		}
		t, err := cur.follow(name, tr)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cur.childPath(name), err)
		}
		if obj, err = t.open(cur.childPath(name)); err != nil {
			return nil, fmt.Errorf("%s: %w", cur.childPath(name), err)
		}
	}
	return obj, nil
}

// follow resolves the member name of g to its target.
func (g *Group) follow(name string, tr trail) (target, error) {
	m, err := g.member(name)
	if err != nil {
		return target{}, err
	}
	switch m.Type {
	case HardLink:
		if g.w != nil {
			if child, ok := g.w.children[name]; ok {
				return target{pending: child}, nil
			}
		}
		return target{file: g.file, addr: m.addr}, nil
	case SoftLink:
		if err := tr.visit(g.file.path + ":" + m.SoftPath); err != nil {
			return target{}, err
		}
		return g.file.locate(m.SoftPath, tr)
	case ExternalLink:
		if err := tr.visit(m.File + ":" + m.Path); err != nil {
			return target{}, err
		}
		ext, err := g.file.external(m.File)
		if err != nil {
			return target{}, err
		}
		t, err := ext.locate(m.Path, tr)
		if err != nil {
			return target{}, fmt.Errorf("%s in %s: %w", m.Path, m.File, err)
		}
		return t, nil
	}
	return target{}, fmt.Errorf("%w: link type %d", ErrUnsupported, m.Type)
}

// locate resolves an absolute path of f without opening its last object.
func (f *File) locate(p string, tr trail) (target, error) {
	parts := SplitPath(p)
	cur := f.root
	var t target
	if f.writable() {
		t = target{pending: cur}
	} else {
		t = target{file: f, addr: f.sb.RootGroupAddress}
	}
	for i, name := range parts {
		if i > 0 {
			at := "/" + path.Join(parts[:i]...)
			obj, err := t.open(at)
			if err != nil {
				return target{}, err
			}
			g, ok := obj.(*Group)
			if !ok {
				return target{}, fmt.Errorf("%w: %s", ErrNotGroup, at)
			}
			cur = g
		}
		var err error
		if t, err = cur.follow(name, tr); err != nil {
			return target{}, fmt.Errorf("%s: %w", name, err)
		}
	}
	return t, nil
}
