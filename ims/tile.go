// Package ims links per-tile Imaris files into one combined container.
//
// Each tile file holds one (x, y, z) block of one channel. The combined
// container references the tiles' pixel data through HDF5 external links
// and carries a renumbered copy of every tile's metadata, so viewers can
// open the whole acquisition as one dataset without any pixels being
// copied. A small placeholder container declaring the overall extent is
// written alongside.
package ims

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// TileExt is the file extension of tile and output containers.
	TileExt = ".ims"

	// DataSetRoot and InfoRoot are the pixel-data and metadata roots every
	// tile exposes. Inside the combined container they carry the tile index.
	DataSetRoot = "DataSet"
	InfoRoot    = "DataSetInfo"

	levelPrefix = "ResolutionLevel "
)

// Tile is one (x, y, z, channel) position of the grid. Tiles are only
// produced by Grid.Tiles, which assigns Index in iteration order.
type Tile struct {
	X, Y, Z int

	Channel      string
	ChannelIndex int

	// Index is the position of the tile in iteration order and selects its
	// names inside the combined container.
	Index int
}

// FileName returns the canonical tile file name,
// tile_x_XXXX_y_YYYY_z_ZZZZ_ch_<channel>.ims.
func (t Tile) FileName() string {
	return fmt.Sprintf("tile_x_%04d_y_%04d_z_%04d_ch_%s%s", t.X, t.Y, t.Z, t.Channel, TileExt)
}

// DataSetName returns the name of the tile's pixel-reference group in the
// combined container: DataSet for index 0, DataSet<n> otherwise.
func (t Tile) DataSetName() string {
	return indexedName(DataSetRoot, t.Index)
}

// InfoName returns the name of the tile's metadata group in the combined
// container: DataSetInfo for index 0, DataSetInfo<n> otherwise.
func (t Tile) InfoName() string {
	return indexedName(InfoRoot, t.Index)
}

func (t Tile) String() string {
	return fmt.Sprintf("tile %d (x=%d y=%d z=%d ch=%s)", t.Index, t.X, t.Y, t.Z, t.Channel)
}

func indexedName(root string, index int) string {
	if index == 0 {
		return root
	}
	return root + strconv.Itoa(index)
}

// LevelPath returns the path of a resolution level's pixel array relative to
// a DataSet root.
func LevelPath(level int) string {
	return fmt.Sprintf("%s%d/TimePoint 0/Channel 0", levelPrefix, level)
}

// parseLevel returns N for a member named "ResolutionLevel N".
func parseLevel(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, levelPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Grid describes the tiles of one acquisition.
type Grid struct {
	XTiles, YTiles, ZTiles int
	Channels               []string
}

// Count returns the number of tiles in the grid.
func (g Grid) Count() int {
	if g.XTiles <= 0 || g.YTiles <= 0 || g.ZTiles <= 0 {
		return 0
	}
	return g.XTiles * g.YTiles * g.ZTiles * len(g.Channels)
}

// Tiles enumerates the grid channel-major, then z, then y, with x varying
// fastest, numbering tiles from 0.
func (g Grid) Tiles() []Tile {
	tiles := make([]Tile, 0, g.Count())
	if g.Count() == 0 {
		return tiles
	}
	index := 0
	for c, ch := range g.Channels {
		for z := 0; z < g.ZTiles; z++ {
			for y := 0; y < g.YTiles; y++ {
				for x := 0; x < g.XTiles; x++ {
					tiles = append(tiles, Tile{
						X: x, Y: y, Z: z,
						Channel:      ch,
						ChannelIndex: c,
						Index:        index,
					})
					index++
				}
			}
		}
	}
	return tiles
}
