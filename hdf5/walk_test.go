package hdf5

import (
	"errors"
	"reflect"
	"testing"
)

func entryKind(e Entry) string {
	switch {
	case e.IsLink():
		return e.Link.Type.String()
	case e.Group != nil:
		return "group"
	case e.Dataset != nil:
		return "dataset"
	}
	return "?"
}

func TestWalk(t *testing.T) {
	f, err := Open(writeLinkFixture(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	var got []string
	depths := map[string]int{}
	err = Walk(f.Root(), func(e Entry, err error) error {
		if err != nil {
			t.Errorf("%s: %v", e.Path, err)
			return nil
		}
		got = append(got, e.Path+" "+entryKind(e))
		depths[e.Path] = e.Depth
		return nil
	})
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}

	want := []string{
		"/ group",
		"/data dataset",
		"/info group",
		"/info/Image group",
		"/alias soft",
		"/self soft",
		"/loop_a soft",
		"/loop_b soft",
		"/dangling soft",
		"/top soft",
		"/via_ext soft",
		"/ext external",
		"/extgroup external",
		"/gone external",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Walk order:\n got %v\nwant %v", got, want)
	}
	if depths["/"] != 0 || depths["/info"] != 1 || depths["/info/Image"] != 2 {
		t.Errorf("depths: %v", depths)
	}
}

func TestWalkSkipAndStop(t *testing.T) {
	f, err := Open(writeLinkFixture(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	var seen []string
	err = Walk(f.Root(), func(e Entry, err error) error {
		seen = append(seen, e.Path)
		if e.Path == "/info" {
			return SkipGroup
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	for _, p := range seen {
		if p == "/info/Image" {
			t.Error("SkipGroup did not skip /info members")
		}
	}

	count := 0
	err = Walk(f.Root(), func(e Entry, err error) error {
		count++
		if count == 2 {
			return StopWalk
		}
		return nil
	})
	if err != nil {
		t.Errorf("StopWalk should end the walk without error, got %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 entries before stopping, got %d", count)
	}

	boom := errors.New("boom")
	err = Walk(f.Root(), func(e Entry, err error) error {
		if e.Path == "/info/Image" {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("got %v, want callback error", err)
	}
}

func TestEntryResolve(t *testing.T) {
	f, err := Open(writeLinkFixture(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	resolved := map[string]error{}
	targets := map[string]any{}
	err = Walk(f.Root(), func(e Entry, err error) error {
		if e.IsLink() {
			obj, rerr := e.Resolve()
			resolved[e.Link.Name] = rerr
			targets[e.Link.Name] = obj
		}
		return err
	})
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}

	for _, name := range []string{"alias", "top", "via_ext", "ext", "extgroup"} {
		if resolved[name] != nil {
			t.Errorf("%s: unexpected error %v", name, resolved[name])
		}
	}
	for _, name := range []string{"self", "loop_a", "dangling", "gone"} {
		if resolved[name] == nil {
			t.Errorf("%s: expected resolution error", name)
		}
	}
	if _, ok := targets["ext"].(*Dataset); !ok {
		t.Errorf("ext: got %T, want *Dataset", targets["ext"])
	}
	if _, ok := targets["extgroup"].(*Group); !ok {
		t.Errorf("extgroup: got %T, want *Group", targets["extgroup"])
	}
}
