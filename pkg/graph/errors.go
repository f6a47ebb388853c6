package graph

import "errors"

// ErrInvalidCoordinate is returned by FindEdgesWithinRadius when lat/lon
// fall outside valid WGS84 ranges.
var ErrInvalidCoordinate = errors.New("graph: coordinate out of range")

// ErrMissingEndpoint is a fatal load-time error: an edge references a node
// id that was not declared in the node set.
var ErrMissingEndpoint = errors.New("graph: edge references unknown node")

// ErrInvalidLength is a fatal load-time error: an edge has length_m <= 0.
var ErrInvalidLength = errors.New("graph: edge length_m must be > 0")

// ErrNotFound is returned when an update targets an edge that does not exist.
var ErrNotFound = errors.New("graph: edge not found")

// ErrLockTimeout is returned when a bounded batch update cannot take the
// write lock before its deadline.
var ErrLockTimeout = errors.New("graph: write lock acquisition timed out")
