package hdf5

import (
	"fmt"
	"path"
	"strings"
)

// ParseAttrPath splits an attribute path of the form /object/path@name.
// A missing leading slash is added; "/@name" addresses the root group.
//
//	"/DataSetInfo/Image@ExtMax0" -> "/DataSetInfo/Image", "ExtMax0"
func ParseAttrPath(p string) (objectPath, attrName string, err error) {
	at := strings.LastIndex(p, "@")
	if at == -1 {
		return "", "", fmt.Errorf("%w: attribute path %q has no '@'", ErrInvalidPath, p)
	}
	attrName = p[at+1:]
	if attrName == "" {
		return "", "", fmt.Errorf("%w: attribute path %q has no name", ErrInvalidPath, p)
	}
	return CleanPath(p[:at]), attrName, nil
}

// JoinAttrPath is the inverse of ParseAttrPath.
func JoinAttrPath(objectPath, attrName string) string {
	objectPath = CleanPath(objectPath)
	if objectPath == "/" {
		return "/@" + attrName
	}
	return objectPath + "@" + attrName
}

// SplitPath returns the non-empty components of a path. The root, "" and
// "/", have none.
func SplitPath(p string) []string {
	var parts []string
	for _, part := range strings.Split(p, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

// CleanPath returns p as an absolute path without repeated or trailing
// slashes.
func CleanPath(p string) string {
	return path.Clean("/" + p)
}
