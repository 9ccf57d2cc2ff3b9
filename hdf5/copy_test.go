package hdf5

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func TestCopyGroup(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "tile.ims")

	src, err := Create(srcPath)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	ch, err := src.Root().RequireGroup("DataSetInfo/Channel 0")
	if err != nil {
		t.Fatalf("RequireGroup failed: %v", err)
	}
	if err := ch.SetCharArrayAttr("Color", "1.000 0.000 0.000"); err != nil {
		t.Fatal(err)
	}
	if err := ch.SetAttr("Gain", []float64{1.5, 2.5}); err != nil {
		t.Fatal(err)
	}
	hist, err := ch.CreateGroup("Histogram")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := hist.CreateDataset("Counts", [][]uint16{{1, 2}, {3, 4}},
		WithAttribute("Bins", int32(2))); err != nil {
		t.Fatalf("CreateDataset failed: %v", err)
	}
	if err := ch.CreateSoftLink("Alias", "/DataSetInfo/Channel 0/Histogram"); err != nil {
		t.Fatal(err)
	}
	if err := ch.CreateExternalLink("Raw", "raw.ims", "/DataSet"); err != nil {
		t.Fatal(err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	src, err = Open(srcPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer src.Close()
	srcGroup, err := src.OpenGroup("DataSetInfo/Channel 0")
	if err != nil {
		t.Fatalf("OpenGroup failed: %v", err)
	}

	dstPath := filepath.Join(dir, "combined.ims")
	dst, err := Create(dstPath)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	copied, err := dst.Root().CopyGroup(srcGroup, "DataSetInfo3/Channel 0")
	if err != nil {
		t.Fatalf("CopyGroup failed: %v", err)
	}
	if copied.Path() != "/DataSetInfo3/Channel 0" {
		t.Errorf("copied path: got %q", copied.Path())
	}
	if _, err := dst.Root().CopyGroup(srcGroup, "DataSetInfo3/Channel 0"); !errors.Is(err, ErrExists) {
		t.Errorf("second CopyGroup: got %v, want ErrExists", err)
	}
	if _, err := src.Root().CopyGroup(srcGroup, "Again"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("CopyGroup into read-only file: got %v, want ErrReadOnly", err)
	}
	// The copy is independent of the source from here on.
	if err := copied.DeleteAttr("Gain"); err != nil {
		t.Fatalf("DeleteAttr failed: %v", err)
	}
	if err := dst.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	out, err := Open(dstPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer out.Close()

	g, err := out.OpenGroup("DataSetInfo3/Channel 0")
	if err != nil {
		t.Fatalf("OpenGroup failed: %v", err)
	}
	if got := g.Attrs(); !reflect.DeepEqual(got, []string{"Color"}) {
		t.Errorf("Attrs: got %v, want [Color]", got)
	}
	if s, err := g.Attr("Color").ReadText(); err != nil || s != "1.000 0.000 0.000" {
		t.Errorf("Color: got %q, %v", s, err)
	}

	links, err := g.Links()
	if err != nil {
		t.Fatalf("Links failed: %v", err)
	}
	want := []LinkInfo{
		{Name: "Histogram", Type: HardLink},
		{Name: "Alias", Type: SoftLink, SoftPath: "/DataSetInfo/Channel 0/Histogram"},
		{Name: "Raw", Type: ExternalLink, File: "raw.ims", Path: "/DataSet"},
	}
	if !reflect.DeepEqual(links, want) {
		t.Errorf("Links:\n got %+v\nwant %+v", links, want)
	}

	ds, err := g.OpenDataset("Histogram/Counts")
	if err != nil {
		t.Fatalf("OpenDataset failed: %v", err)
	}
	if !reflect.DeepEqual(ds.Shape(), []uint64{2, 2}) {
		t.Errorf("shape: got %v", ds.Shape())
	}
	var counts []uint16
	if err := ds.Read(&counts); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !reflect.DeepEqual(counts, []uint16{1, 2, 3, 4}) {
		t.Errorf("counts: got %v", counts)
	}
	if n, err := ds.Attr("Bins").Int64(); err != nil || n != 2 {
		t.Errorf("Bins: got %d, %v", n, err)
	}
}
