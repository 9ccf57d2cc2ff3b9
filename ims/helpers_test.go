package ims

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/imslink/hdf5"
)

// fakeTile describes a synthetic tile file.
type fakeTile struct {
	ext    Extent
	levels int

	// omit names a metadata subtree or extent attribute to leave out.
	omit string

	// recordingDate is dropped when false.
	noRecordingDate bool
}

// gridExtent places tile (x, y, z) at a 10 x 10 x 5 block of the grid.
func gridExtent(t Tile) Extent {
	min := [3]float64{10 * float64(t.X), 10 * float64(t.Y), 5 * float64(t.Z)}
	return Extent{Min: min, Max: [3]float64{min[0] + 10, min[1] + 10, min[2] + 5}}
}

// writeTile writes a small Imaris-shaped tile to dir.
func writeTile(t *testing.T, dir string, tile Tile, spec fakeTile) string {
	t.Helper()
	if spec.levels == 0 {
		spec.levels = 2
	}

	path := filepath.Join(dir, tile.FileName())
	f, err := hdf5.Create(path)
	require.NoError(t, err)
	root := f.Root()
	require.NoError(t, root.SetCharArrayAttr("ImarisVersion", "5.5.0"))

	for _, name := range metadataGroups {
		if name == spec.omit {
			continue
		}
		g, err := root.RequireGroup(InfoRoot + "/" + name)
		require.NoError(t, err)

		switch name {
		case groupChannel:
			require.NoError(t, g.SetCharArrayAttr("Name", tile.Channel))
			require.NoError(t, g.SetCharArrayAttr("Color", "0.0 1.0 0.0"))
			require.NoError(t, g.SetCharArrayAttr("ColorTable", "1.000 0.000 0.000 "))
			require.NoError(t, g.SetCharArrayAttr("ColorRange", "0.0 255.0"))
		case groupImage:
			for axis := 0; axis < 3; axis++ {
				for _, a := range []struct {
					name string
					v    float64
				}{
					{fmt.Sprintf("ExtMin%d", axis), spec.ext.Min[axis]},
					{fmt.Sprintf("ExtMax%d", axis), spec.ext.Max[axis]},
				} {
					if a.name == spec.omit {
						continue
					}
					require.NoError(t, g.SetCharArrayAttr(a.name, strconv.FormatFloat(a.v, 'f', -1, 64)))
				}
			}
			require.NoError(t, g.SetCharArrayAttr("Unit", "um"))
			if !spec.noRecordingDate {
				require.NoError(t, g.SetCharArrayAttr(attrRecordingDate, "2021-03-04 05:06:07.000"))
			}
		case groupImaris:
			require.NoError(t, g.SetCharArrayAttr("Version", "5.5"))
		case groupLog:
			require.NoError(t, g.SetCharArrayAttr("Entries", "1"))
			require.NoError(t, g.SetCharArrayAttr("Entry0", fmt.Sprintf("acquired %s", tile.FileName())))
		}
	}

	for level := 0; level < spec.levels; level++ {
		ch, err := root.RequireGroup(DataSetRoot + "/" + LevelPath(level))
		require.NoError(t, err)
		require.NoError(t, ch.SetCharArrayAttr("ImageSizeX", "2"))
		v := uint8(10*tile.Index + level)
		_, err = ch.CreateDataset("Data", [][][]uint8{{{v, v}, {v, v}}, {{v, v}, {v, v}}})
		require.NoError(t, err)
	}

	require.NoError(t, f.Close())
	return path
}

// writeGrid writes every tile of grid to dir with gridExtent extents.
func writeGrid(t *testing.T, dir string, grid Grid) {
	t.Helper()
	for _, tile := range grid.Tiles() {
		writeTile(t, dir, tile, fakeTile{ext: gridExtent(tile)})
	}
}

// baseConfig returns a base-colour configuration over dir.
func baseConfig(dir string, grid Grid) Config {
	var colors, ranges []float64
	for range grid.Channels {
		colors = append(colors, 1, 0, 0)
		ranges = append(ranges, 0, 1000)
	}
	return Config{
		Dir:    dir,
		Output: "combined.ims",
		Grid:   grid,
		Colors: colors,
		Ranges: ranges,
	}
}

// readAttr reads a string attribute of the object at path.
func readAttr(t *testing.T, f *hdf5.File, path, name string) string {
	t.Helper()
	attr, err := f.Attr(hdf5.JoinAttrPath(path, name))
	require.NoError(t, err)
	s, err := attr.ReadText()
	require.NoError(t, err)
	return s
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
