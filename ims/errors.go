package ims

import "errors"

// Error kinds. Every error returned by a build wraps exactly one of these,
// so callers can classify failures with errors.Is.
var (
	// ErrConfig reports an invalid run configuration. It is always returned
	// before the combined container is created.
	ErrConfig = errors.New("invalid configuration")

	// ErrMissingTile reports a tile file that does not exist or cannot be
	// opened as a container.
	ErrMissingTile = errors.New("missing tile")

	// ErrMalformedTile reports a tile lacking a required metadata subtree,
	// pixel-data level or extent attribute.
	ErrMalformedTile = errors.New("malformed tile")
)
