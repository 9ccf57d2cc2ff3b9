package ims

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTileFileName(t *testing.T) {
	tile := Tile{X: 1, Y: 23, Z: 456, Channel: "488"}
	assert.Equal(t, "tile_x_0001_y_0023_z_0456_ch_488.ims", tile.FileName())

	tile = Tile{X: 12345, Channel: "GFP"}
	assert.Equal(t, "tile_x_12345_y_0000_z_0000_ch_GFP.ims", tile.FileName())
}

func TestTileIndexedNames(t *testing.T) {
	tests := []struct {
		index       int
		dataset     string
		datasetInfo string
	}{
		{0, "DataSet", "DataSetInfo"},
		{1, "DataSet1", "DataSetInfo1"},
		{10, "DataSet10", "DataSetInfo10"},
	}
	for _, tt := range tests {
		tile := Tile{Index: tt.index}
		assert.Equal(t, tt.dataset, tile.DataSetName())
		assert.Equal(t, tt.datasetInfo, tile.InfoName())
	}
}

func TestGridOrder(t *testing.T) {
	grid := Grid{XTiles: 2, YTiles: 2, ZTiles: 2, Channels: []string{"488", "561"}}
	tiles := grid.Tiles()
	require.Len(t, tiles, grid.Count())
	require.Equal(t, 16, grid.Count())

	// x varies fastest, channel slowest.
	assert.Equal(t, Tile{X: 1, Channel: "488", Index: 1}, tiles[1])
	assert.Equal(t, Tile{Y: 1, Channel: "488", Index: 2}, tiles[2])
	assert.Equal(t, Tile{Z: 1, Channel: "488", Index: 4}, tiles[4])
	assert.Equal(t, Tile{Channel: "561", ChannelIndex: 1, Index: 8}, tiles[8])
	assert.Equal(t, Tile{X: 1, Y: 1, Z: 1, Channel: "561", ChannelIndex: 1, Index: 15}, tiles[15])
}

func TestGridBijection(t *testing.T) {
	grids := []Grid{
		{XTiles: 1, YTiles: 1, ZTiles: 1, Channels: []string{"488"}},
		{XTiles: 3, YTiles: 2, ZTiles: 1, Channels: []string{"488", "561", "640"}},
		{XTiles: 4, YTiles: 1, ZTiles: 5, Channels: []string{"a"}},
	}
	for _, grid := range grids {
		tiles := grid.Tiles()
		require.Len(t, tiles, grid.XTiles*grid.YTiles*grid.ZTiles*len(grid.Channels))

		files := make(map[string]bool)
		datasets := make(map[string]bool)
		infos := make(map[string]bool)
		for i, tile := range tiles {
			assert.Equal(t, i, tile.Index)
			assert.False(t, files[tile.FileName()], "duplicate file %s", tile.FileName())
			assert.False(t, datasets[tile.DataSetName()], "duplicate %s", tile.DataSetName())
			assert.False(t, infos[tile.InfoName()], "duplicate %s", tile.InfoName())
			files[tile.FileName()] = true
			datasets[tile.DataSetName()] = true
			infos[tile.InfoName()] = true
		}

		// Enumeration is reproducible from the grid alone.
		assert.Equal(t, tiles, grid.Tiles())
	}
}

func TestGridEmpty(t *testing.T) {
	assert.Empty(t, Grid{XTiles: 0, YTiles: 3, ZTiles: 3, Channels: []string{"488"}}.Tiles())
	assert.Empty(t, Grid{XTiles: 2, YTiles: 2, ZTiles: 2}.Tiles())
	assert.Equal(t, 0, Grid{XTiles: -1, YTiles: 2, ZTiles: 2, Channels: []string{"488"}}.Count())
}

func TestLevelPath(t *testing.T) {
	assert.Equal(t, "ResolutionLevel 3/TimePoint 0/Channel 0", LevelPath(3))

	tests := []struct {
		name  string
		level int
		ok    bool
	}{
		{"ResolutionLevel 0", 0, true},
		{"ResolutionLevel 12", 12, true},
		{"ResolutionLevel", 0, false},
		{"ResolutionLevel -1", 0, false},
		{"ResolutionLevel x", 0, false},
		{"Thumbnail", 0, false},
	}
	for _, tt := range tests {
		level, ok := parseLevel(tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
		assert.Equal(t, tt.level, level, tt.name)
	}
}
