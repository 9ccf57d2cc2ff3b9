package ims

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/imslink/hdf5"
)

func TestPlaceholderMatchesBuildExtent(t *testing.T) {
	dir := t.TempDir()
	grid := Grid{XTiles: 2, YTiles: 2, ZTiles: 1, Channels: []string{"488"}}
	writeGrid(t, dir, grid)

	res, err := link(t, baseConfig(dir, grid))
	require.NoError(t, err)
	require.Equal(t, Extent{Max: [3]float64{20, 20, 5}}, res.Extent)

	f, err := hdf5.Open(res.Placeholder)
	require.NoError(t, err)
	defer f.Close()

	image, err := f.OpenGroup("DataSetInfo/Image")
	require.NoError(t, err)
	ext, err := readExtent(image)
	require.NoError(t, err)
	assert.Equal(t, res.Extent, ext)

	n, err := f.Root().Attr("NumberOfDataSets").Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// The placeholder carries the first channel's colour.
	assert.Equal(t, "1.0 0.0 0.0", readAttr(t, f, "DataSetInfo/Channel 0", "Color"))
	assert.Equal(t, "0.0 1000.0", readAttr(t, f, "DataSetInfo/Channel 0", "ColorRange"))
}

func TestWritePlaceholder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "placeholder.ims")
	ext := Extent{Min: [3]float64{-1.5, 0, 2}, Max: [3]float64{100.25, 50, 12}}
	require.NoError(t, WritePlaceholder(path, ext, PlaceholderOptions{Edge: 4, Value: 7}))

	f, err := hdf5.Open(path)
	require.NoError(t, err)
	defer f.Close()

	// Exactly one resolution level, time point and channel.
	for _, p := range []string{"DataSet", "DataSet/ResolutionLevel 0", "DataSet/ResolutionLevel 0/TimePoint 0"} {
		g, err := f.OpenGroup(p)
		require.NoError(t, err)
		members, err := g.Members()
		require.NoError(t, err)
		assert.Len(t, members, 1, p)
	}

	ds, err := f.OpenDataset("DataSet/ResolutionLevel 0/TimePoint 0/Channel 0/Data")
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 4, 4}, ds.Shape())
	var data []uint8
	require.NoError(t, ds.Read(&data))
	require.Len(t, data, 64)
	for _, v := range data {
		assert.Equal(t, uint8(7), v)
	}

	for _, axis := range []string{"X", "Y", "Z"} {
		assert.Equal(t, "4", readAttr(t, f, "DataSet/ResolutionLevel 0/TimePoint 0/Channel 0", "ImageSize"+axis))
		assert.Equal(t, "4", readAttr(t, f, "DataSetInfo/Image", axis))
	}
	assert.Equal(t, "-1.5", readAttr(t, f, "DataSetInfo/Image", "ExtMin0"))
	assert.Equal(t, "100.25", readAttr(t, f, "DataSetInfo/Image", "ExtMax0"))
	assert.Equal(t, "um", readAttr(t, f, "DataSetInfo/Image", "Unit"))
	assert.Equal(t, "5.5.0", readAttr(t, f, "/", "ImarisVersion"))
	assert.Equal(t, "5.5", readAttr(t, f, "DataSetInfo/ImarisDataSet", "Version"))
	assert.Equal(t, "1", readAttr(t, f, "DataSetInfo/ImarisDataSet", "NumberOfImages"))
	assert.Equal(t, "5.5", readAttr(t, f, "DataSetInfo/Imaris", "Version"))
	assert.Equal(t, "1", readAttr(t, f, "DataSetInfo/TimeInfo", "DatasetTimePoints"))
	assert.Equal(t, "1", readAttr(t, f, "DataSetInfo/TimeInfo", "FileTimePoints"))

	ch, err := f.OpenGroup("DataSetInfo/Channel 0")
	require.NoError(t, err)
	assert.False(t, ch.HasAttr("ColorMode"))
}

func TestCubeChunkEdge(t *testing.T) {
	for edge, want := range map[int]int{1: 1, 4: 4, 64: 64, 65: 64, 640: 64, 641: 65, 2000: 200} {
		assert.Equal(t, want, cubeChunkEdge(edge), "edge %d", edge)
	}
}

func TestWritePlaceholderMultiChunk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.ims")
	ext := Extent{Max: [3]float64{10, 10, 10}}
	require.NoError(t, WritePlaceholder(path, ext, PlaceholderOptions{Edge: 70}))

	f, err := hdf5.Open(path)
	require.NoError(t, err)
	defer f.Close()

	ds, err := f.OpenDataset("DataSet/ResolutionLevel 0/TimePoint 0/Channel 0/Data")
	require.NoError(t, err)
	assert.Equal(t, []uint64{70, 70, 70}, ds.Shape())
	var data []uint8
	require.NoError(t, ds.Read(&data))
	require.Len(t, data, 70*70*70)
	for i, v := range data {
		if v != 1 {
			t.Fatalf("voxel %d: got %d, want 1", i, v)
		}
	}

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Less(t, fi.Size(), int64(70*70*70/10), "cube should be stored compressed")
}

func TestWritePlaceholderDefaults(t *testing.T) {
	opts := PlaceholderOptions{}.withDefaults()
	assert.Equal(t, DefaultPlaceholderEdge, opts.Edge)
	assert.Equal(t, uint8(1), opts.Value)
	assert.Equal(t, DefaultFormatVersion, opts.Version.String())
}

func TestWritePlaceholderEmptyExtent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "placeholder.ims")
	err := WritePlaceholder(path, EmptyExtent(), PlaceholderOptions{})
	assert.ErrorIs(t, err, ErrConfig)
	assert.False(t, fileExists(path))
}

func TestWritePlaceholderEdgeBounds(t *testing.T) {
	ext := Extent{Max: [3]float64{1, 1, 1}}
	for _, edge := range []int{-1, MaxPlaceholderEdge + 1, 1 << 20} {
		path := filepath.Join(t.TempDir(), "placeholder.ims")
		err := WritePlaceholder(path, ext, PlaceholderOptions{Edge: edge})
		assert.ErrorIs(t, err, ErrConfig, "edge %d", edge)
		assert.False(t, fileExists(path), "edge %d", edge)
	}
}

func TestUniformCube(t *testing.T) {
	cube := uniformCube(3, 2)
	require.Len(t, cube, 3)
	for _, plane := range cube {
		require.Len(t, plane, 3)
		for _, row := range plane {
			assert.Equal(t, []uint8{2, 2, 2}, row)
		}
	}
}
