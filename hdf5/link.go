package hdf5

import "github.com/robert-malhotra/imslink/internal/message"

// LinkType is the kind of a group member's link.
type LinkType int

const (
	HardLink LinkType = iota
	SoftLink
	ExternalLink
)

func (t LinkType) String() string {
	switch t {
	case HardLink:
		return "hard"
	case SoftLink:
		return "soft"
	case ExternalLink:
		return "external"
	}
	return "unknown"
}

// LinkInfo describes a group member without following its link.
type LinkInfo struct {
	Name string
	Type LinkType

	// SoftPath is the target of a soft link.
	SoftPath string

	// File and Path are the target of an external link. File is kept as
	// stored; readers resolve it against the directory of the linking
	// file.
	File string
	Path string
}

func linkInfo(l *message.Link) LinkInfo {
	switch {
	case l.IsSoft():
		return LinkInfo{Name: l.Name, Type: SoftLink, SoftPath: l.SoftLinkValue}
	case l.IsExternal():
		return LinkInfo{Name: l.Name, Type: ExternalLink, File: l.ExternalFile, Path: l.ExternalPath}
	}
	return LinkInfo{Name: l.Name, Type: HardLink}
}
