package ims

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/robert-malhotra/imslink/hdf5"
)

// writeString sets a string attribute in the Imaris encoding, replacing any
// previous value.
func writeString(g *hdf5.Group, name, value string) error {
	if err := g.SetCharArrayAttr(name, value); err != nil {
		return fmt.Errorf("writing %s@%s: %w", g.Path(), name, err)
	}
	return nil
}

// writeStrings sets several string attributes in order.
func writeStrings(g *hdf5.Group, kv ...string) error {
	if len(kv)%2 != 0 {
		return fmt.Errorf("writeStrings: odd number of arguments")
	}
	for i := 0; i < len(kv); i += 2 {
		if err := writeString(g, kv[i], kv[i+1]); err != nil {
			return err
		}
	}
	return nil
}

// writeUint32 sets a scalar unsigned 32-bit attribute.
func writeUint32(g *hdf5.Group, name string, value uint32) error {
	if err := g.SetAttr(name, value); err != nil {
		return fmt.Errorf("writing %s@%s: %w", g.Path(), name, err)
	}
	return nil
}

// deleteAttr removes an attribute, tolerating its absence.
func deleteAttr(g *hdf5.Group, name string) error {
	err := g.DeleteAttr(name)
	if err == nil || errors.Is(err, hdf5.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("deleting %s@%s: %w", g.Path(), name, err)
}

// readText returns a string attribute, or ok=false when it is absent.
func readText(g *hdf5.Group, name string) (string, bool, error) {
	attr := g.Attr(name)
	if attr == nil {
		return "", false, nil
	}
	s, err := attr.ReadText()
	if err != nil {
		return "", true, fmt.Errorf("reading %s@%s: %w", g.Path(), name, err)
	}
	return s, true, nil
}

// readNumber returns a numeric attribute stored either as Imaris text or
// as a numeric scalar.
func readNumber(g *hdf5.Group, name string) (float64, bool, error) {
	attr := g.Attr(name)
	if attr == nil {
		return 0, false, nil
	}
	if attr.IsString() {
		s, err := attr.ReadText()
		if err != nil {
			return 0, true, fmt.Errorf("reading %s@%s: %w", g.Path(), name, err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, true, fmt.Errorf("%s@%s: %q is not a number", g.Path(), name, s)
		}
		return v, true, nil
	}
	v, err := attr.Float64()
	if err != nil {
		return 0, true, fmt.Errorf("reading %s@%s: %w", g.Path(), name, err)
	}
	return v, true, nil
}
