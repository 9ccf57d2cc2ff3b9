package ims

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/robert-malhotra/imslink/hdf5"
)

// Metadata subtrees copied from every tile's DataSetInfo.
const (
	groupChannel = "Channel 0"
	groupImage   = "Image"
	groupImaris  = "ImarisDataSet"
	groupLog     = "Log"
)

var metadataGroups = []string{groupChannel, groupImage, groupImaris, groupLog}

// attrRecordingDate is dropped from copied metadata since it describes one
// tile's acquisition, not the combined dataset.
const attrRecordingDate = "RecordingDate"

// copyMetadata copies the tile's metadata subtrees to the tile's indexed
// info group under root, strips the recording date and returns the new
// info group.
func copyMetadata(root *hdf5.Group, src *hdf5.File, t Tile) (*hdf5.Group, error) {
	info, err := root.RequireGroup(t.InfoName())
	if err != nil {
		return nil, err
	}
	for _, name := range metadataGroups {
		sg, err := src.OpenGroup(InfoRoot + "/" + name)
		if err != nil {
			if errors.Is(err, hdf5.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s: no %s/%s", ErrMalformedTile, t.FileName(), InfoRoot, name)
			}
			return nil, fmt.Errorf("%w: %s: opening %s/%s: %w", ErrMalformedTile, t.FileName(), InfoRoot, name, err)
		}
		if _, err := info.CopyGroup(sg, name); err != nil {
			return nil, fmt.Errorf("%s: %w", t.FileName(), err)
		}
	}

	image, err := info.OpenGroup(groupImage)
	if err != nil {
		return nil, err
	}
	if err := deleteAttr(image, attrRecordingDate); err != nil {
		return nil, err
	}
	return info, nil
}

// readExtent reads ExtMin0..2 and ExtMax0..2 from an Image group.
func readExtent(image *hdf5.Group) (Extent, error) {
	var e Extent
	for axis := 0; axis < 3; axis++ {
		for _, bound := range []struct {
			name string
			dst  *float64
		}{
			{fmt.Sprintf("ExtMin%d", axis), &e.Min[axis]},
			{fmt.Sprintf("ExtMax%d", axis), &e.Max[axis]},
		} {
			v, ok, err := readNumber(image, bound.name)
			if err != nil {
				return Extent{}, fmt.Errorf("%w: %w", ErrMalformedTile, err)
			}
			if !ok {
				return Extent{}, fmt.Errorf("%w: %s has no %s", ErrMalformedTile, image.Path(), bound.name)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return Extent{}, fmt.Errorf("%w: %s@%s is not finite", ErrMalformedTile, image.Path(), bound.name)
			}
			*bound.dst = v
		}
		if e.Min[axis] > e.Max[axis] {
			return Extent{}, fmt.Errorf("%w: %s: ExtMin%d %g is above ExtMax%d %g",
				ErrMalformedTile, image.Path(), axis, e.Min[axis], axis, e.Max[axis])
		}
	}
	return e, nil
}

// writeExtent sets ExtMin0..2 and ExtMax0..2 on an Image group. Values
// are written in the shortest form that parses back to the same float.
func writeExtent(image *hdf5.Group, e Extent) error {
	for axis := 0; axis < 3; axis++ {
		if err := writeStrings(image,
			fmt.Sprintf("ExtMin%d", axis), formatCoord(e.Min[axis]),
			fmt.Sprintf("ExtMax%d", axis), formatCoord(e.Max[axis]),
		); err != nil {
			return err
		}
	}
	return nil
}

func formatCoord(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
