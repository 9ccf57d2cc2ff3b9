package hdf5

import (
	"errors"
	"path"
)

// Entry is one object met by Walk. The starting group has a zero Link.
// Soft and external links are reported without being followed, so both
// Group and Dataset are nil for them.
type Entry struct {
	Path  string
	Depth int
	Link  LinkInfo

	Group   *Group
	Dataset *Dataset

	parent *Group
}

// IsLink reports whether the entry is a soft or external link.
func (e Entry) IsLink() bool {
	return e.Link.Type == SoftLink || e.Link.Type == ExternalLink
}

// Resolve follows the entry's link and returns the *Group or *Dataset it
// leads to, opening external files as needed.
func (e Entry) Resolve() (any, error) {
	if e.parent == nil {
		return e.Group, nil
	}
	return e.parent.open(e.Link.Name)
}

// WalkFunc is called for every entry. err is set when a hard linked member
// could not be opened, and the entry then carries only its path and link;
// or when the members of a group could not be listed, and the group is
// then reported again. Returning SkipGroup from a group skips its
// members; StopWalk ends the walk without an error.
type WalkFunc func(e Entry, err error) error

var (
	SkipGroup = errors.New("skip this group")
	StopWalk  = errors.New("stop walk")
)

// Walk visits g and everything hard linked below it, depth first in
// storage order.
func Walk(g *Group, fn WalkFunc) error {
	err := walk(Entry{Path: g.Path(), Group: g}, fn)
	if errors.Is(err, StopWalk) {
		return nil
	}
	return err
}

func walk(e Entry, fn WalkFunc) error {
	if err := fn(e, nil); err != nil {
		return skipped(err)
	}
	ms, err := e.Group.members()
	if err != nil {
		return skipped(fn(e, err))
	}
	for _, m := range ms {
		child := Entry{Path: path.Join(e.Path, m.Name), Depth: e.Depth + 1, Link: m.LinkInfo, parent: e.Group}
		if child.IsLink() {
			if err := skipped(fn(child, nil)); err != nil {
				return err
			}
			continue
		}
		obj, err := e.Group.open(m.Name)
		if sub, ok := obj.(*Group); ok {
			child.Group = sub
			err = walk(child, fn)
		} else {
			child.Dataset, _ = obj.(*Dataset)
			err = skipped(fn(child, err))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// skipped turns SkipGroup into a nil error.
func skipped(err error) error {
	if errors.Is(err, SkipGroup) {
		return nil
	}
	return err
}
