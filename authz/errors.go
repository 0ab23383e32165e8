package authz

import "errors"

var (
	// ErrCyclicAncestry is returned when the ancestry walk revisits a
	// resource. The whole resolution fails; no partial grant is computed.
	ErrCyclicAncestry = errors.New("authz: cyclic ancestry")

	// ErrDepthExceeded is returned when the ancestry chain is longer than
	// the engine's configured maximum depth.
	ErrDepthExceeded = errors.New("authz: ancestry depth exceeded")

	// ErrResourceNotFound is returned by directories for references that
	// do not resolve to a known resource.
	ErrResourceNotFound = errors.New("authz: resource not found")

	// ErrTeamNotFound is returned by directories for unknown team IDs.
	ErrTeamNotFound = errors.New("authz: team not found")
)
