// Package config loads imslink run configurations from TOML or YAML files
// and turns them into validated ims.Config values.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/imslink/ims"
	"github.com/robert-malhotra/imslink/internal/logging"
)

// Defaults for a run without a configuration file.
var (
	DefaultColor      = []float64{0, 1, 1}
	DefaultColorRange = []float64{0, 1000}
)

// File is the on-disk run configuration.
//
//	dir = "/data/run42"
//	output = "combined.ims"
//	channels = ["488", "561"]
//	color_range = [0, 1000]
//
//	[tiles]
//	x = 4
//	y = 3
//	z = 1
//
//	[table]
//	location = "luts/fire.csv"
type File struct {
	Dir    string `toml:"dir" yaml:"dir"`
	Output string `toml:"output" yaml:"output"`

	Tiles    Tiles    `toml:"tiles" yaml:"tiles"`
	Channels []string `toml:"channels" yaml:"channels"`

	// Colors holds one RGB triple per channel, or a single triple used for
	// every channel. It is exclusive with Table.
	Colors []float64 `toml:"colors" yaml:"colors"`

	// ColorRange holds one (min, max) pair per channel, or a single pair
	// used for every channel.
	ColorRange []float64 `toml:"color_range" yaml:"color_range"`

	Table Table `toml:"table" yaml:"table"`

	FormatVersion string      `toml:"format_version" yaml:"format_version"`
	Placeholder   Placeholder `toml:"placeholder" yaml:"placeholder"`

	// Preflight checks every tile before any output is written.
	Preflight bool `toml:"preflight" yaml:"preflight"`

	// Workers bounds concurrent tile reads during a preflight check.
	Workers int `toml:"workers" yaml:"workers"`

	LogLevel string            `toml:"log_level" yaml:"log_level"`
	Logging  logging.LogConfig `toml:"logging" yaml:"logging"`
}

type Tiles struct {
	X int `toml:"x" yaml:"x"`
	Y int `toml:"y" yaml:"y"`
	Z int `toml:"z" yaml:"z"`
}

// Table locates a colour lookup table: a local path or a blob URL.
type Table struct {
	Location string  `toml:"location" yaml:"location"`
	Max      float64 `toml:"max" yaml:"max"`
}

type Placeholder struct {
	Name  string `toml:"name" yaml:"name"`
	Edge  int    `toml:"edge" yaml:"edge"`
	Value uint8  `toml:"value" yaml:"value"`
}

// Default returns the configuration used when no file is given.
func Default() *File {
	return &File{
		Dir:           ".",
		Output:        "test.ims",
		Tiles:         Tiles{X: 1, Y: 1, Z: 1},
		Channels:      []string{"488"},
		ColorRange:    append([]float64(nil), DefaultColorRange...),
		FormatVersion: ims.DefaultFormatVersion,
		LogLevel:      "info",
	}
}

// Load reads a configuration file on top of the defaults. The format
// follows the extension: .toml, .yaml or .yml. Relative directory, table
// and log paths are taken relative to the file's directory.
func Load(path string) (*File, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), c); err != nil {
			return nil, fmt.Errorf("could not decode TOML config %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("could not decode YAML config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("config %s: unknown format %q", path, ext)
	}

	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	c.Dir = absolute(c.Dir, base)
	if c.Table.Location != "" && !strings.Contains(c.Table.Location, "://") {
		c.Table.Location = absolute(c.Table.Location, base)
	}
	if c.Logging.Logfile != "" {
		c.Logging.Logfile = absolute(c.Logging.Logfile, base)
	}
	return c, nil
}

func absolute(p, base string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// Resolve loads the lookup table, if any, and returns the build
// configuration. Single colour triples and range pairs are repeated for
// every channel; without a table the colour defaults to DefaultColor.
func (c *File) Resolve(ctx context.Context) (ims.Config, error) {
	cfg := ims.Config{
		Dir:    c.Dir,
		Output: c.Output,
		Grid: ims.Grid{
			XTiles:   c.Tiles.X,
			YTiles:   c.Tiles.Y,
			ZTiles:   c.Tiles.Z,
			Channels: c.Channels,
		},
		Ranges:        broadcast(c.ColorRange, 2, len(c.Channels)),
		FormatVersion: c.FormatVersion,
		Placeholder: ims.PlaceholderOptions{
			Name:  c.Placeholder.Name,
			Edge:  c.Placeholder.Edge,
			Value: c.Placeholder.Value,
		},
		Workers:   c.Workers,
		Preflight: c.Preflight,
	}

	colors := c.Colors
	if c.Table.Location != "" {
		if len(colors) > 0 {
			return ims.Config{}, fmt.Errorf("%w: both colors and a lookup table are configured", ims.ErrConfig)
		}
		table, err := ims.LoadLookupTable(ctx, c.Table.Location, c.Table.Max)
		if err != nil {
			return ims.Config{}, err
		}
		cfg.Table = table
	} else {
		if len(colors) == 0 {
			colors = DefaultColor
		}
		cfg.Colors = broadcast(colors, 3, len(c.Channels))
	}

	if err := cfg.Validate(); err != nil {
		return ims.Config{}, err
	}
	return cfg, nil
}

// broadcast repeats a single group of width values n times. Other lengths
// are returned unchanged for validation to judge.
func broadcast(vs []float64, width, n int) []float64 {
	if len(vs) != width || n <= 1 {
		return vs
	}
	out := make([]float64, 0, width*n)
	for i := 0; i < n; i++ {
		out = append(out, vs...)
	}
	return out
}

// Mode returns the configured log level.
func (c *File) Mode() (logging.ModeFlag, error) {
	if c.LogLevel == "" {
		return logging.InfoMode, nil
	}
	m, ok := logging.ParseMode(c.LogLevel)
	if !ok {
		return m, fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return m, nil
}
