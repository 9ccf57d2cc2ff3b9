package ims

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/blang/semver"

	"github.com/robert-malhotra/imslink/hdf5"
	"github.com/robert-malhotra/imslink/internal/logging"
)

// DefaultFormatVersion is the ImarisVersion written when none is configured.
const DefaultFormatVersion = "5.5.0"

// Root attribute names and values shared by the combined and placeholder
// containers.
const (
	attrDataSetDir       = "DataSetDirectoryName"
	attrDataSetInfoDir   = "DataSetInfoDirectoryName"
	attrImarisDataSet    = "ImarisDataSet"
	attrImarisVersion    = "ImarisVersion"
	attrNumberOfDataSets = "NumberOfDataSets"
	attrThumbnailDir     = "ThumbnailDirectoryName"

	thumbnailDir = "Thumbnail"
)

// Config describes one build. Dir holds the tiles and receives both
// outputs; Output and Placeholder.Name are bare file names inside it.
type Config struct {
	Dir    string
	Output string
	Grid   Grid

	// Exactly one of Colors (RGB per channel) and Table must be set.
	Colors []float64
	Table  *LookupTable
	Ranges []float64

	// FormatVersion is written as ImarisVersion. Defaults to
	// DefaultFormatVersion.
	FormatVersion string

	Placeholder PlaceholderOptions

	// Workers bounds the concurrency of Survey.
	Workers int

	// Preflight makes Link survey every tile before creating any output
	// and fail on the first tile, in grid order, that cannot be linked.
	Preflight bool
}

// Validate checks the configuration without touching the file system.
func (c *Config) Validate() error {
	if c.Grid.XTiles < 0 || c.Grid.YTiles < 0 || c.Grid.ZTiles < 0 {
		return fmt.Errorf("%w: negative tile count (%d, %d, %d)", ErrConfig,
			c.Grid.XTiles, c.Grid.YTiles, c.Grid.ZTiles)
	}
	if len(c.Grid.Channels) == 0 {
		return fmt.Errorf("%w: no channels", ErrConfig)
	}
	seen := make(map[string]bool, len(c.Grid.Channels))
	for _, ch := range c.Grid.Channels {
		if ch == "" || strings.ContainsAny(ch, `/\`) {
			return fmt.Errorf("%w: invalid channel name %q", ErrConfig, ch)
		}
		if seen[ch] {
			return fmt.Errorf("%w: duplicate channel %q", ErrConfig, ch)
		}
		seen[ch] = true
	}
	if c.Grid.Count() == 0 {
		return fmt.Errorf("%w: grid %dx%dx%d has no tiles", ErrConfig,
			c.Grid.XTiles, c.Grid.YTiles, c.Grid.ZTiles)
	}

	if _, err := NewColorPolicy(len(c.Grid.Channels), c.Colors, c.Ranges, c.Table); err != nil {
		return err
	}
	if _, err := c.formatVersion(); err != nil {
		return err
	}

	output, err := checkOutputName("output", c.Output)
	if err != nil {
		return err
	}
	placeholder, err := checkOutputName("placeholder", c.placeholderName())
	if err != nil {
		return err
	}
	if output == placeholder {
		return fmt.Errorf("%w: output and placeholder are both %q", ErrConfig, output)
	}
	for _, t := range c.Grid.Tiles() {
		if name := t.FileName(); name == output || name == placeholder {
			return fmt.Errorf("%w: %q is the name of a tile", ErrConfig, name)
		}
	}

	if err := checkEdge(c.Placeholder.Edge); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: negative worker count %d", ErrConfig, c.Workers)
	}
	return nil
}

func checkOutputName(what, name string) (string, error) {
	switch {
	case name == "":
		return "", fmt.Errorf("%w: empty %s name", ErrConfig, what)
	case filepath.Base(name) != name || strings.ContainsAny(name, `/\`) || name == "." || name == "..":
		return "", fmt.Errorf("%w: %s %q must be a file name without directory", ErrConfig, what, name)
	}
	return name, nil
}

func (c *Config) formatVersion() (semver.Version, error) {
	s := c.FormatVersion
	if s == "" {
		s = DefaultFormatVersion
	}
	v, err := semver.Parse(s)
	if err != nil {
		return semver.Version{}, fmt.Errorf("%w: format version %q: %w", ErrConfig, s, err)
	}
	return v, nil
}

// placeholderName returns the configured placeholder name, defaulting to
// <output stem>_placeholder.ims.
func (c *Config) placeholderName() string {
	if c.Placeholder.Name != "" {
		return c.Placeholder.Name
	}
	return strings.TrimSuffix(c.Output, TileExt) + "_placeholder" + TileExt
}

// checkDir verifies the tile directory holds at least one container.
func (c *Config) checkDir() error {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: directory %s does not exist", ErrConfig, c.Dir)
		}
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), TileExt) {
			return nil
		}
	}
	return fmt.Errorf("%w: no %s files in %s", ErrConfig, TileExt, c.Dir)
}

// Result summarizes a finished build.
type Result struct {
	Output      string
	Placeholder string

	Tiles int
	// Links is the number of external links created, one per tile and
	// resolution level.
	Links  int
	Extent Extent
}

// Linker builds combined containers.
type Linker struct {
	cfg     Config
	colors  *ColorPolicy
	version semver.Version
}

// NewLinker validates cfg and returns a linker for it.
func NewLinker(cfg Config) (*Linker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	colors, err := NewColorPolicy(len(cfg.Grid.Channels), cfg.Colors, cfg.Ranges, cfg.Table)
	if err != nil {
		return nil, err
	}
	version, err := cfg.formatVersion()
	if err != nil {
		return nil, err
	}
	return &Linker{cfg: cfg, colors: colors, version: version}, nil
}

// Link builds the combined container and then the placeholder. Tiles are
// processed one at a time in grid order; the first error aborts the build
// and leaves any partial output in place. With Preflight set, a bad tile
// is reported before anything is written.
func (l *Linker) Link(ctx context.Context) (*Result, error) {
	if err := l.cfg.checkDir(); err != nil {
		return nil, err
	}
	if l.cfg.Preflight {
		if err := l.preflight(ctx); err != nil {
			return nil, err
		}
	}

	tlog := logging.NewTimeLog()
	res := &Result{
		Output:      filepath.Join(l.cfg.Dir, l.cfg.Output),
		Placeholder: filepath.Join(l.cfg.Dir, l.cfg.placeholderName()),
	}
	tiles := l.cfg.Grid.Tiles()

	out, err := hdf5.Create(res.Output)
	if err != nil {
		return nil, err
	}
	// Close is idempotent, so this only matters on error paths.
	defer out.Close()

	root := out.Root()
	if err := writeRootAttrs(root, l.version, len(tiles)); err != nil {
		return nil, err
	}
	logging.Infof("Linking %d tiles into %s\n", len(tiles), res.Output)

	ext := EmptyExtent()
	for _, t := range tiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tileExt, levels, err := l.linkTile(root, t)
		if err != nil {
			return nil, err
		}
		ext = ext.Union(tileExt)
		res.Links += levels
		res.Tiles++
		logging.Debugf("Linked %s: %d resolution levels, extent %s\n", t, levels, tileExt)
	}

	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("closing %s: %w", res.Output, err)
	}
	res.Extent = ext
	tlog.Infof("Wrote %s (%d tiles, %d links, extent %s)", res.Output, res.Tiles, res.Links, ext)

	opts := l.cfg.Placeholder
	opts.Version = l.version
	first := l.colors.For(0)
	opts.Color = &first
	if err := WritePlaceholder(res.Placeholder, ext, opts); err != nil {
		return nil, err
	}
	logging.Infof("Wrote placeholder %s\n", res.Placeholder)
	return res, nil
}

// preflight surveys the grid and returns the error of the first tile that
// cannot be linked.
func (l *Linker) preflight(ctx context.Context) error {
	rep, err := Survey(ctx, l.cfg)
	if err != nil {
		return err
	}
	if bad := rep.Problems(); len(bad) > 0 {
		logging.Infof("Preflight found %d of %d tiles unusable\n", len(bad), len(rep.Tiles))
		return bad[0].Err
	}
	logging.Debugf("Preflight passed for %d tiles\n", len(rep.Tiles))
	return nil
}

// linkTile copies one tile's metadata into root and links its pixel data.
// It returns the tile's declared extent and number of resolution levels.
func (l *Linker) linkTile(root *hdf5.Group, t Tile) (Extent, int, error) {
	name := t.FileName()
	src, err := hdf5.Open(filepath.Join(l.cfg.Dir, name))
	if err != nil {
		return Extent{}, 0, fmt.Errorf("%w: %s: %w", ErrMissingTile, name, err)
	}
	defer src.Close()

	info, err := copyMetadata(root, src, t)
	if err != nil {
		return Extent{}, 0, err
	}

	image, err := info.OpenGroup(groupImage)
	if err != nil {
		return Extent{}, 0, err
	}
	ext, err := readExtent(image)
	if err != nil {
		return Extent{}, 0, fmt.Errorf("%s: %w", name, err)
	}

	channel, err := info.OpenGroup(groupChannel)
	if err != nil {
		return Extent{}, 0, err
	}
	if err := l.colors.For(t.ChannelIndex).Apply(channel); err != nil {
		return Extent{}, 0, fmt.Errorf("%s: %w", name, err)
	}

	levels, err := resolutionLevels(src)
	if err != nil {
		return Extent{}, 0, fmt.Errorf("%s: %w", name, err)
	}
	ds, err := root.RequireGroup(t.DataSetName())
	if err != nil {
		return Extent{}, 0, err
	}
	target := "./" + name
	for _, level := range levels {
		p := LevelPath(level)
		if err := ds.CreateExternalLink(p, target, "/"+DataSetRoot+"/"+p); err != nil {
			return Extent{}, 0, fmt.Errorf("linking %s level %d: %w", name, level, err)
		}
	}
	return ext, len(levels), nil
}

// resolutionLevels lists the resolution levels under a tile's DataSet root
// in ascending order.
func resolutionLevels(src *hdf5.File) ([]int, error) {
	g, err := src.OpenGroup(DataSetRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: no %s group: %w", ErrMalformedTile, DataSetRoot, err)
	}
	members, err := g.Members()
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %w", ErrMalformedTile, DataSetRoot, err)
	}
	var levels []int
	for _, m := range members {
		if n, ok := parseLevel(m); ok {
			levels = append(levels, n)
		}
	}
	if len(levels) == 0 {
		return nil, fmt.Errorf("%w: %s has no resolution levels", ErrMalformedTile, DataSetRoot)
	}
	sort.Ints(levels)
	return levels, nil
}

// writeRootAttrs writes the root schema shared by both containers.
func writeRootAttrs(root *hdf5.Group, version semver.Version, datasets int) error {
	if err := writeStrings(root,
		attrDataSetDir, DataSetRoot,
		attrDataSetInfoDir, InfoRoot,
		attrImarisDataSet, attrImarisDataSet,
		attrImarisVersion, version.String(),
	); err != nil {
		return err
	}
	if err := writeUint32(root, attrNumberOfDataSets, uint32(datasets)); err != nil {
		return err
	}
	return writeString(root, attrThumbnailDir, thumbnailDir)
}
