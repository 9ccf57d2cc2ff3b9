// Command imslink combines per-tile Imaris files into one container that
// references the tiles through external links, plus a small placeholder
// container declaring the overall extent.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"

	"github.com/robert-malhotra/imslink/ims"
	"github.com/robert-malhotra/imslink/internal/config"
	"github.com/robert-malhotra/imslink/internal/logging"
)

var (
	showHelp   = flag.Bool("help", false, "")
	configFile = flag.String("config", "", "")

	dir      = flag.String("dir", "", "")
	output   = flag.String("output", "", "")
	xTiles   = flag.Int("x", 0, "")
	yTiles   = flag.Int("y", 0, "")
	zTiles   = flag.Int("z", 0, "")
	channels = flag.String("channels", "", "")
	colors   = flag.String("colors", "", "")
	ranges   = flag.String("range", "", "")
	table    = flag.String("table", "", "")
	tableMax = flag.Float64("table-max", 0, "")

	formatVersion = flag.String("format-version", "", "")
	placeholder   = flag.String("placeholder", "", "")
	edge          = flag.Int("edge", 0, "")

	check     = flag.Bool("check", false, "")
	preflight = flag.Bool("preflight", false, "")
	workers   = flag.Int("workers", 0, "")
	verbose   = flag.Bool("verbose", false, "")
	logfile   = flag.String("logfile", "", "")
)

const helpMessage = `
imslink links Imaris tile files into one combined container

Usage: imslink [options]

      -config         =string   TOML or YAML run configuration; flags override it.
      -dir            =string   Directory holding the tiles and receiving the outputs.
      -output         =string   Combined container file name (default test.ims).
      -x, -y, -z      =number   Number of tiles along each axis (default 1).
      -channels       =list     Comma separated channel names (default 488).
      -colors         =list     RGB per channel in [0,1], or one triple for all.
      -range          =list     Colour range per channel, or one pair for all (default 0,1000).
      -table          =string   Lookup table path or blob URL, instead of -colors.
      -table-max      =number   Declared maximum of the table values (default 255).
      -format-version =string   ImarisVersion to write (default 5.5.0).
      -placeholder    =string   Placeholder file name (default <output>_placeholder.ims).
      -edge           =number   Placeholder cube edge in voxels (default 64).
      -check          (flag)    Only check that every tile can be linked.
      -preflight      (flag)    Check every tile before writing any output.
      -workers        =number   Concurrent tile reads for -check and -preflight.
      -logfile        =string   Write the log to a rotating file.
      -verbose        (flag)    Log every tile.
  -h, -help           (flag)    Show help message
`

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = func() { fmt.Print(helpMessage) }
	flag.Parse()

	if *showHelp || flag.NArg() > 0 {
		flag.Usage()
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	logging.Shutdown()
	if err != nil {
		fmt.Fprintf(os.Stderr, "imslink: %v\n", err)
		if errors.Is(err, ims.ErrConfig) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	c := config.Default()
	if *configFile != "" {
		var err error
		if c, err = config.Load(*configFile); err != nil {
			return err
		}
	}
	if err := applyFlags(c); err != nil {
		return err
	}

	mode, err := c.Mode()
	if err != nil {
		return err
	}
	if *verbose {
		mode = logging.DebugMode
	}
	logging.SetLogMode(mode)
	c.Logging.SetLogger()

	cfg, err := c.Resolve(ctx)
	if err != nil {
		return err
	}

	if *check {
		return runCheck(ctx, cfg)
	}

	linker, err := ims.NewLinker(cfg)
	if err != nil {
		return err
	}
	res, err := linker.Link(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Linked %d tiles (%d resolution-level links)\n", res.Tiles, res.Links)
	fmt.Printf("Extent: %s\n", res.Extent)
	fmt.Printf("Combined:    %s (%s)\n", res.Output, fileSize(res.Output))
	fmt.Printf("Placeholder: %s (%s)\n", res.Placeholder, fileSize(res.Placeholder))
	fmt.Printf("Referenced tile data: %s\n", humanize.Bytes(tileBytes(cfg)))
	return nil
}

func runCheck(ctx context.Context, cfg ims.Config) error {
	rep, err := ims.Survey(ctx, cfg)
	if err != nil {
		return err
	}
	for _, p := range rep.Problems() {
		fmt.Printf("%s: %v\n", p.Tile, p.Err)
	}
	good := len(rep.Tiles) - len(rep.Problems())
	fmt.Printf("%d of %d tiles can be linked (%s on disk)\n", good, len(rep.Tiles), humanize.Bytes(tileBytes(cfg)))
	if !rep.Extent.IsEmpty() {
		fmt.Printf("Extent: %s\n", rep.Extent)
	}
	if !rep.OK() {
		return fmt.Errorf("%d tiles cannot be linked", len(rep.Problems()))
	}
	return nil
}

// applyFlags overrides file values with the flags given on the command line.
func applyFlags(c *config.File) error {
	var err error
	flag.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "dir":
			c.Dir = *dir
		case "output":
			c.Output = *output
		case "x":
			c.Tiles.X = *xTiles
		case "y":
			c.Tiles.Y = *yTiles
		case "z":
			c.Tiles.Z = *zTiles
		case "channels":
			c.Channels = splitList(*channels)
		case "colors":
			c.Colors, err = parseFloats("colors", *colors)
		case "range":
			c.ColorRange, err = parseFloats("range", *ranges)
		case "table":
			c.Table.Location = *table
		case "table-max":
			c.Table.Max = *tableMax
		case "format-version":
			c.FormatVersion = *formatVersion
		case "placeholder":
			c.Placeholder.Name = *placeholder
		case "edge":
			c.Placeholder.Edge = *edge
		case "preflight":
			c.Preflight = *preflight
		case "workers":
			c.Workers = *workers
		case "logfile":
			c.Logging.Logfile = *logfile
		}
	})
	return err
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseFloats(name, s string) ([]float64, error) {
	var vs []float64
	for _, part := range splitList(s) {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: -%s: %q is not a number", ims.ErrConfig, name, part)
		}
		vs = append(vs, v)
	}
	return vs, nil
}

func fileSize(path string) string {
	fi, err := os.Stat(path)
	if err != nil {
		return "?"
	}
	return humanize.Bytes(uint64(fi.Size()))
}

// tileBytes sums the sizes of the tiles present on disk.
func tileBytes(cfg ims.Config) uint64 {
	var total uint64
	for _, t := range cfg.Grid.Tiles() {
		if fi, err := os.Stat(filepath.Join(cfg.Dir, t.FileName())); err == nil {
			total += uint64(fi.Size())
		}
	}
	return total
}
