package hdf5

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestCreateAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.h5")
	f, err := Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !f.IsWritable() {
		t.Error("created file is not writable")
	}
	if f.Root() == nil || f.Root().Path() != "/" {
		t.Fatalf("bad root group %+v", f.Root())
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	f, err = Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	if f.Version() != 3 {
		t.Errorf("superblock version %d, want 3", f.Version())
	}
	if names, err := f.Root().Members(); err != nil || len(names) != 0 {
		t.Errorf("root of empty file: %v, %v", names, err)
	}
}

func TestCreateOffsetSizes(t *testing.T) {
	tests := []struct {
		opts        []FileOption
		off, length uint8
	}{
		{nil, 8, 8},
		{[]FileOption{WithOffsetSize(4), WithLengthSize(4)}, 4, 4},
		{[]FileOption{WithOffsetSize(4)}, 4, 8},
		// Unsupported widths keep the default.
		{[]FileOption{WithOffsetSize(2), WithLengthSize(16)}, 8, 8},
	}
	for i, tt := range tests {
		path := filepath.Join(t.TempDir(), "sizes.h5")
		f, err := Create(path, tt.opts...)
		if err != nil {
			t.Fatalf("%d: Create failed: %v", i, err)
		}
		if _, err := f.Root().CreateDataset("v", []int32{7, 8}); err != nil {
			t.Fatalf("%d: %v", i, err)
		}
		if err := f.Close(); err != nil {
			t.Fatal(err)
		}

		f, err = Open(path)
		if err != nil {
			t.Fatalf("%d: Open failed: %v", i, err)
		}
		if f.sb.OffsetSize != tt.off || f.sb.LengthSize != tt.length {
			t.Errorf("%d: sizes %d/%d, want %d/%d", i, f.sb.OffsetSize, f.sb.LengthSize, tt.off, tt.length)
		}
		var v []int32
		if ds, err := f.OpenDataset("v"); err != nil {
			t.Errorf("%d: %v", i, err)
		} else if err := ds.Read(&v); err != nil || !reflect.DeepEqual(v, []int32{7, 8}) {
			t.Errorf("%d: read %v, %v", i, v, err)
		}
		f.Close()
	}
}

func TestFlushKeepsFileValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flush.h5")
	f, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}
	first := []int32{1, 2, 3, 4, 5}
	if _, err := f.Root().CreateDataset("first", first); err != nil {
		t.Fatal(err)
	}
	if err := f.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	mid, err := Open(path)
	if err != nil {
		t.Fatalf("Open after Flush failed: %v", err)
	}
	names, err := mid.Root().Members()
	mid.Close()
	if err != nil || !reflect.DeepEqual(names, []string{"first"}) {
		t.Errorf("members after Flush: %v, %v", names, err)
	}

	grp, err := f.Root().CreateGroup("later")
	if err != nil {
		t.Fatal(err)
	}
	second := []float64{1.1, 2.2, 3.3}
	if _, err := grp.CreateDataset("second", second); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	f, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var a []int32
	var b []float64
	for p, dest := range map[string]any{"first": &a, "/later/second": &b} {
		ds, err := f.OpenDataset(p)
		if err != nil {
			t.Fatalf("OpenDataset %s: %v", p, err)
		}
		if err := ds.Read(dest); err != nil {
			t.Fatalf("Read %s: %v", p, err)
		}
	}
	if !reflect.DeepEqual(a, first) || !reflect.DeepEqual(b, second) {
		t.Errorf("got %v and %v", a, b)
	}
}

func TestFlushReusesHeaderSpace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reuse.h5")
	f, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	grp, err := f.Root().CreateGroup("grp")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if err := grp.SetAttr("counter", int32(i)); err != nil {
			t.Fatal(err)
		}
		if err := f.Flush(); err != nil {
			t.Fatalf("Flush %d: %v", i, err)
		}
	}

	st := f.SpaceStats()
	if st.Freed == 0 || st.Reused == 0 {
		t.Errorf("rewritten headers did not recycle space: %+v", st)
	}
	if err := f.space.Check(); err != nil {
		t.Error(err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if uint64(fi.Size()) != f.sb.EOFAddress {
		t.Errorf("file size %d, EOF address %d", fi.Size(), f.sb.EOFAddress)
	}
}

func TestClosedFile(t *testing.T) {
	f, err := Create(filepath.Join(t.TempDir(), "closed.h5"))
	if err != nil {
		t.Fatal(err)
	}
	root := f.Root()
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := f.Flush(); !errors.Is(err, ErrClosed) {
		t.Errorf("Flush: got %v, want ErrClosed", err)
	}
	if _, err := root.CreateGroup("late"); !errors.Is(err, ErrClosed) {
		t.Errorf("CreateGroup: got %v, want ErrClosed", err)
	}
	if err := root.SetAttr("late", 1); !errors.Is(err, ErrClosed) {
		t.Errorf("SetAttr: got %v, want ErrClosed", err)
	}
}

func TestReadOnlyRejectsWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ro.h5")
	f, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}
	f.Close()

	ro, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ro.Close()
	if ro.IsWritable() {
		t.Error("file from Open is writable")
	}
	if err := ro.Flush(); err != nil {
		t.Errorf("Flush of read-only file: %v", err)
	}

	root := ro.Root()
	errs := map[string]error{
		"SetAttr":            root.SetAttr("x", 1),
		"SetCharArrayAttr":   root.SetCharArrayAttr("x", "y"),
		"DeleteAttr":         root.DeleteAttr("x"),
		"CreateExternalLink": root.CreateExternalLink("x", "other.h5", "/"),
		"CreateSoftLink":     root.CreateSoftLink("x", "/y"),
	}
	_, errs["CreateGroup"] = root.CreateGroup("x")
	_, errs["RequireGroup"] = root.RequireGroup("x/y")
	_, errs["CreateDataset"] = root.CreateDataset("x", []int32{1})
	for name, err := range errs {
		if !errors.Is(err, ErrReadOnly) {
			t.Errorf("%s: got %v, want ErrReadOnly", name, err)
		}
	}
}
