package raster

import "errors"

// ErrNotFound is returned when no raster file exists for a requested
// (return_period, time_step) pair.
var ErrNotFound = errors.New("raster: no file for requested return_period/time_step")

// ErrDecodeFailed is fatal for the requested raster; the caller decides
// whether to fall back to a raster-less fusion term.
var ErrDecodeFailed = errors.New("raster: decode failed")

// ErrOutOfBounds is a non-error sentinel condition: DepthAt returns
// (0, false) rather than this, but it documents the contract.
var ErrOutOfBounds = errors.New("raster: coordinate outside raster bounds")
