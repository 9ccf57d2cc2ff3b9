package ims

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/robert-malhotra/imslink/hdf5"
	"gonum.org/v1/gonum/mat"
)

// ColorMode selects how a channel is rendered.
type ColorMode int

const (
	// BaseColor renders a channel with one RGB tuple.
	BaseColor ColorMode = iota
	// TableColor renders a channel through an RGB lookup table.
	TableColor
)

func (m ColorMode) String() string {
	switch m {
	case BaseColor:
		return "BaseColor"
	case TableColor:
		return "TableColor"
	default:
		return fmt.Sprintf("ColorMode(%d)", int(m))
	}
}

// Channel attribute names.
const (
	attrColor            = "Color"
	attrColorMode        = "ColorMode"
	attrColorRange       = "ColorRange"
	attrColorTable       = "ColorTable"
	attrColorTableLength = "ColorTableLength"
	attrColorOpacity     = "ColorOpacity"
)

// ColorSpec is the rendering of one channel. Mode selects which of RGB or
// Table is meaningful; Range applies in both modes.
type ColorSpec struct {
	Mode ColorMode

	RGB [3]float64

	// Table rows are normalized to [0, 1].
	Table   *mat.Dense
	Opacity float64

	Range [2]float64
}

// Apply writes the colour onto a channel metadata group, removing the
// attributes of the other mode.
func (s ColorSpec) Apply(g *hdf5.Group) error {
	switch s.Mode {
	case BaseColor:
		if err := writeStrings(g,
			attrColor, formatFloats("%.1f", s.RGB[:]),
			attrColorMode, BaseColor.String(),
		); err != nil {
			return err
		}
		for _, name := range []string{attrColorTable, attrColorTableLength} {
			if err := deleteAttr(g, name); err != nil {
				return err
			}
		}

	case TableColor:
		if s.Table == nil {
			return fmt.Errorf("%w: table colour without a table", ErrConfig)
		}
		rows, _ := s.Table.Dims()
		if err := writeStrings(g,
			attrColorMode, TableColor.String(),
			attrColorTable, encodeTable(s.Table),
			attrColorTableLength, strconv.Itoa(rows),
			attrColorOpacity, fmt.Sprintf("%.3f", s.Opacity),
		); err != nil {
			return err
		}
		if err := deleteAttr(g, attrColor); err != nil {
			return err
		}

	default:
		return fmt.Errorf("%w: unknown colour mode %d", ErrConfig, int(s.Mode))
	}

	return writeString(g, attrColorRange, formatFloats("%.1f", s.Range[:]))
}

func formatFloats(verb string, vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = fmt.Sprintf(verb, v)
	}
	return strings.Join(parts, " ")
}

// encodeTable flattens rows row-major, three decimals per value, each
// value followed by one space.
func encodeTable(t *mat.Dense) string {
	var b strings.Builder
	r, c := t.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			fmt.Fprintf(&b, "%.3f ", t.At(i, j))
		}
	}
	return b.String()
}

// ColorPolicy holds the colour of every configured channel.
type ColorPolicy struct {
	specs []ColorSpec
}

// NewColorPolicy builds the per-channel colours. Exactly one of colors
// (three components per channel, each in [0, 1]) and table must be given;
// ranges holds a (min, max) pair per channel.
func NewColorPolicy(channels int, colors, ranges []float64, table *LookupTable) (*ColorPolicy, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("%w: no channels", ErrConfig)
	}
	hasColors := len(colors) > 0
	hasTable := table != nil
	switch {
	case hasColors && hasTable:
		return nil, fmt.Errorf("%w: both a channel colour list and a lookup table given", ErrConfig)
	case !hasColors && !hasTable:
		return nil, fmt.Errorf("%w: neither a channel colour list nor a lookup table given", ErrConfig)
	}
	if len(ranges) != 2*channels {
		return nil, fmt.Errorf("%w: %d colour range values for %d channels, want %d", ErrConfig, len(ranges), channels, 2*channels)
	}

	p := &ColorPolicy{specs: make([]ColorSpec, channels)}
	if hasColors {
		if len(colors) != 3*channels {
			return nil, fmt.Errorf("%w: %d colour values for %d channels, want %d", ErrConfig, len(colors), channels, 3*channels)
		}
		for i, v := range colors {
			if !(v >= 0 && v <= 1) {
				return nil, fmt.Errorf("%w: colour component %g of channel %d outside [0, 1]", ErrConfig, v, i/3)
			}
		}
		for c := range p.specs {
			p.specs[c] = ColorSpec{Mode: BaseColor, RGB: [3]float64(colors[3*c : 3*c+3])}
		}
	} else {
		if err := table.Validate(); err != nil {
			return nil, err
		}
		rows := table.Normalized()
		for c := range p.specs {
			p.specs[c] = ColorSpec{Mode: TableColor, Table: rows, Opacity: 1}
		}
	}
	for c := range p.specs {
		p.specs[c].Range = [2]float64(ranges[2*c : 2*c+2])
	}
	return p, nil
}

// For returns the colour of the channel at ordinal c.
func (p *ColorPolicy) For(c int) ColorSpec {
	return p.specs[c]
}

// Channels returns the number of channels the policy covers.
func (p *ColorPolicy) Channels() int {
	return len(p.specs)
}
