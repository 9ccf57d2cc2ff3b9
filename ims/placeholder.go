package ims

import (
	"fmt"
	"strconv"

	"github.com/blang/semver"

	"github.com/robert-malhotra/imslink/hdf5"
)

const (
	// DefaultPlaceholderEdge is the edge length of the placeholder cube.
	DefaultPlaceholderEdge = 64

	// MaxPlaceholderEdge bounds the cube, which is built in memory.
	MaxPlaceholderEdge = 512

	// placeholderChunkEdge is the preferred chunk edge of the cube. Larger
	// cubes get larger chunks so at most maxChunksPerAxis^3 are indexed.
	placeholderChunkEdge = 64
	maxChunksPerAxis     = 10
	placeholderDeflate   = 2

	placeholderCreator   = "imslink"
	placeholderTimePoint = "2000-01-01 00:00:00.000"
)

// PlaceholderOptions configures WritePlaceholder.
type PlaceholderOptions struct {
	// Name is the file name of the placeholder inside the tile directory.
	// Defaults to <output stem>_placeholder.ims when used through a Linker.
	Name string

	// Edge is the cube edge length in voxels; 0 selects
	// DefaultPlaceholderEdge.
	Edge int

	// Value fills the cube; 0 selects 1 so the volume is visible.
	Value uint8

	// Version is written as ImarisVersion; the zero value selects
	// DefaultFormatVersion.
	Version semver.Version

	// Color is applied to the placeholder's channel when set.
	Color *ColorSpec
}

// checkEdge accepts 0, which selects the default, up to MaxPlaceholderEdge.
func checkEdge(edge int) error {
	switch {
	case edge < 0:
		return fmt.Errorf("%w: negative placeholder edge %d", ErrConfig, edge)
	case edge > MaxPlaceholderEdge:
		return fmt.Errorf("%w: placeholder edge %d is above %d", ErrConfig, edge, MaxPlaceholderEdge)
	}
	return nil
}

func (o PlaceholderOptions) withDefaults() PlaceholderOptions {
	if o.Edge == 0 {
		o.Edge = DefaultPlaceholderEdge
	}
	if o.Value == 0 {
		o.Value = 1
	}
	if o.Version.Equals(semver.Version{}) {
		o.Version = semver.MustParse(DefaultFormatVersion)
	}
	return o
}

// WritePlaceholder writes a container holding a single uniform cube whose
// declared extent is ext. It has one resolution level, one time point and
// one channel.
func WritePlaceholder(path string, ext Extent, opts PlaceholderOptions) error {
	opts = opts.withDefaults()
	if err := checkEdge(opts.Edge); err != nil {
		return err
	}
	if ext.IsEmpty() {
		return fmt.Errorf("%w: placeholder extent %s is empty", ErrConfig, ext)
	}

	f, err := hdf5.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := buildPlaceholder(f.Root(), ext, opts); err != nil {
		return fmt.Errorf("placeholder %s: %w", path, err)
	}
	return f.Close()
}

func buildPlaceholder(root *hdf5.Group, ext Extent, opts PlaceholderOptions) error {
	if err := writeRootAttrs(root, opts.Version, 1); err != nil {
		return err
	}
	edge := strconv.Itoa(opts.Edge)

	channel, err := root.RequireGroup(DataSetRoot + "/" + LevelPath(0))
	if err != nil {
		return err
	}
	if err := writeStrings(channel,
		"ImageSizeX", edge,
		"ImageSizeY", edge,
		"ImageSizeZ", edge,
	); err != nil {
		return err
	}
	c := uint64(cubeChunkEdge(opts.Edge))
	if _, err := channel.CreateDataset("Data", uniformCube(opts.Edge, opts.Value),
		hdf5.WithChunks(c, c, c),
		hdf5.WithDeflate(placeholderDeflate),
	); err != nil {
		return fmt.Errorf("writing cube: %w", err)
	}

	info, err := root.RequireGroup(InfoRoot)
	if err != nil {
		return err
	}

	image, err := info.CreateGroup(groupImage)
	if err != nil {
		return err
	}
	if err := writeStrings(image,
		"Name", "placeholder",
		"X", edge,
		"Y", edge,
		"Z", edge,
		"Unit", "um",
	); err != nil {
		return err
	}
	if err := writeExtent(image, ext); err != nil {
		return err
	}

	majorMinor := fmt.Sprintf("%d.%d", opts.Version.Major, opts.Version.Minor)
	dataset, err := info.CreateGroup(groupImaris)
	if err != nil {
		return err
	}
	if err := writeStrings(dataset,
		"Creator", placeholderCreator,
		"NumberOfImages", "1",
		"Version", majorMinor,
	); err != nil {
		return err
	}

	imaris, err := info.CreateGroup("Imaris")
	if err != nil {
		return err
	}
	if err := writeStrings(imaris,
		"Version", majorMinor,
		"ThumbnailMode", "thumbnailMIP",
	); err != nil {
		return err
	}

	ch, err := info.CreateGroup(groupChannel)
	if err != nil {
		return err
	}
	if err := writeString(ch, "Name", "placeholder"); err != nil {
		return err
	}
	if opts.Color != nil {
		if err := opts.Color.Apply(ch); err != nil {
			return err
		}
	}

	timeInfo, err := info.CreateGroup("TimeInfo")
	if err != nil {
		return err
	}
	return writeStrings(timeInfo,
		"DatasetTimePoints", "1",
		"FileTimePoints", "1",
		"TimePoint1", placeholderTimePoint,
	)
}

// cubeChunkEdge picks the chunk edge for an edge^3 cube, stored deflated
// like Imaris stores voxel data.
func cubeChunkEdge(edge int) int {
	c := placeholderChunkEdge
	if edge < c {
		return edge
	}
	if need := (edge + maxChunksPerAxis - 1) / maxChunksPerAxis; need > c {
		c = need
	}
	return c
}

// uniformCube returns an edge^3 volume indexed [z][y][x].
func uniformCube(edge int, value uint8) [][][]uint8 {
	plane := make([]uint8, edge*edge*edge)
	for i := range plane {
		plane[i] = value
	}
	cube := make([][][]uint8, edge)
	for z := range cube {
		cube[z] = make([][]uint8, edge)
		for y := range cube[z] {
			off := (z*edge + y) * edge
			cube[z][y] = plane[off : off+edge : off+edge]
		}
	}
	return cube
}
