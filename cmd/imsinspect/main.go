// Command imsinspect prints the tree of an Imaris or other HDF5 container:
// groups, datasets, attributes and links. External links are listed
// without being followed unless -resolve is given.
package main

import (
	"flag"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/robert-malhotra/imslink/hdf5"
)

var (
	showHelp = flag.Bool("help", false, "")
	attrs    = flag.Bool("attrs", false, "")
	resolve  = flag.Bool("resolve", false, "")
	maxDepth = flag.Int("depth", 20, "")
)

const helpMessage = `
imsinspect prints the structure of an Imaris/HDF5 container

Usage: imsinspect [options] <file.ims>

      -attrs    (flag)    Print attribute values, not only names.
      -resolve  (flag)    Follow external links and report dangling ones.
      -depth    =number   Maximum group depth to descend (default 20).
  -h, -help     (flag)    Show help message
`

type stats struct {
	groups, datasets, external, dangling int
}

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = func() { fmt.Print(helpMessage) }
	flag.Parse()

	if *showHelp || flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	os.Exit(run(flag.Arg(0)))
}

// run prints the tree of filename and returns the exit code: 1 when the
// file cannot be read or has dangling external links.
func run(filename string) int {
	f, err := hdf5.Open(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "imsinspect: %v\n", err)
		return 1
	}
	defer f.Close()

	fmt.Printf("%s: superblock version %d\n\n", filename, f.Version())

	var st stats
	err = hdf5.Walk(f.Root(), func(e hdf5.Entry, err error) error {
		return inspect(e, err, &st)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "imsinspect: %v\n", err)
		return 1
	}

	fmt.Printf("\n%d groups, %d datasets, %d external links", st.groups, st.datasets, st.external)
	if *resolve {
		fmt.Printf(", %d dangling", st.dangling)
	}
	fmt.Println()
	if st.dangling > 0 {
		return 1
	}
	return 0
}

func inspect(e hdf5.Entry, err error, st *stats) error {
	indent := strings.Repeat("  ", e.Depth)
	name := path.Base(e.Path)
	if err != nil {
		fmt.Printf("%s%s: ERROR %v\n", indent, name, err)
		return nil
	}

	switch {
	case e.Link.Type == hdf5.ExternalLink:
		st.external++
		fmt.Printf("%s%s -> %s:%s\n", indent, name, e.Link.File, e.Link.Path)
		if *resolve {
			if _, err := e.Resolve(); err != nil {
				st.dangling++
				fmt.Printf("%s  DANGLING: %v\n", indent, err)
			}
		}
	case e.Link.Type == hdf5.SoftLink:
		fmt.Printf("%s%s -> %s\n", indent, name, e.Link.SoftPath)
	case e.Group != nil:
		st.groups++
		fmt.Printf("%s%s/\n", indent, strings.TrimSuffix(name, "/"))
		printAttrs(e.Group.Attrs(), e.Group.Attr, indent+"  ")
		if e.Depth >= *maxDepth {
			fmt.Printf("%s  [max depth reached]\n", indent)
			return hdf5.SkipGroup
		}
	case e.Dataset != nil:
		st.datasets++
		ds := e.Dataset
		size := ds.NumElements() * uint64(ds.ElemSize())
		fmt.Printf("%s%s %v (%s)\n", indent, name, ds.Shape(), humanize.Bytes(size))
		printAttrs(ds.Attrs(), ds.Attr, indent+"  ")
	}
	return nil
}

func printAttrs(names []string, get func(string) *hdf5.Attribute, indent string) {
	if len(names) == 0 {
		return
	}
	if !*attrs {
		fmt.Printf("%s@ %v\n", indent, names)
		return
	}
	for _, name := range names {
		a := get(name)
		if a == nil {
			continue
		}
		if a.IsString() {
			s, err := a.ReadText()
			if err == nil {
				fmt.Printf("%s@%s = %q\n", indent, name, s)
				continue
			}
		}
		v, err := a.Value()
		if err != nil {
			fmt.Printf("%s@%s: ERROR %v\n", indent, name, err)
			continue
		}
		fmt.Printf("%s@%s = %v\n", indent, name, v)
	}
}
