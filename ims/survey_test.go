package ims

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSurvey(t *testing.T) {
	dir := t.TempDir()
	grid := Grid{XTiles: 3, YTiles: 2, ZTiles: 1, Channels: []string{"488"}}
	tiles := grid.Tiles()
	for _, tile := range tiles {
		spec := fakeTile{ext: gridExtent(tile), levels: 3}
		if tile.Index == 4 {
			spec.omit = "Log"
		}
		writeTile(t, dir, tile, spec)
	}
	require.NoError(t, os.Remove(filepath.Join(dir, tiles[5].FileName())))

	cfg := baseConfig(dir, grid)
	cfg.Workers = 2
	rep, err := Survey(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, rep.Tiles, 6)
	assert.False(t, rep.OK())

	problems := rep.Problems()
	require.Len(t, problems, 2)
	assert.Equal(t, 4, problems[0].Tile.Index)
	assert.ErrorIs(t, problems[0].Err, ErrMalformedTile)
	assert.Equal(t, 5, problems[1].Tile.Index)
	assert.ErrorIs(t, problems[1].Err, ErrMissingTile)

	for _, r := range rep.Tiles[:4] {
		assert.NoError(t, r.Err)
		assert.Equal(t, 3, r.Levels)
		assert.Equal(t, gridExtent(r.Tile), r.Extent)
	}

	// Union over the linkable tiles: x in [0, 30], y in [0, 20].
	assert.Equal(t, Extent{Max: [3]float64{30, 20, 5}}, rep.Extent)

	// Nothing is written.
	assert.False(t, fileExists(filepath.Join(dir, cfg.Output)))
}

func TestSurveyAllGood(t *testing.T) {
	dir := t.TempDir()
	grid := Grid{XTiles: 2, YTiles: 1, ZTiles: 2, Channels: []string{"488", "640"}}
	writeGrid(t, dir, grid)

	rep, err := Survey(context.Background(), baseConfig(dir, grid))
	require.NoError(t, err)
	assert.True(t, rep.OK())
	assert.Len(t, rep.Tiles, 8)
}

func TestSurveyConfigError(t *testing.T) {
	grid := Grid{XTiles: -1, YTiles: 1, ZTiles: 1, Channels: []string{"488"}}
	_, err := Survey(context.Background(), baseConfig(t.TempDir(), grid))
	assert.ErrorIs(t, err, ErrConfig)
}
