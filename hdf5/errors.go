// Package hdf5 reads HDF5 files and writes the subset needed to assemble
// linked Imaris containers: groups, hard, soft and external links,
// attributes and contiguous or chunked datasets.
//
// Files opened with Open are read-only. Files made with Create keep their
// groups in memory and write them on Flush or Close.
package hdf5

import "errors"

var (
	ErrNotHDF5        = errors.New("not an HDF5 file")
	ErrNotFound       = errors.New("object not found")
	ErrNotDataset     = errors.New("object is not a dataset")
	ErrNotGroup       = errors.New("object is not a group")
	ErrUnsupported    = errors.New("unsupported feature")
	ErrInvalidPath    = errors.New("invalid path")
	ErrClosed         = errors.New("file is closed")
	ErrLinkDepth      = errors.New("too many links followed")
	ErrLinkCycle      = errors.New("link cycle")
	ErrExists         = errors.New("object already exists")
	ErrReadOnly       = errors.New("file is not writable")
	ErrInvalidOptions = errors.New("invalid dataset options")
)

// MaxLinkDepth bounds the soft and external links followed while resolving
// one path.
const MaxLinkDepth = 100
