package planner

import "errors"

// ErrNoPath means the goal is unreachable under the current risk thresholds;
// callers may retry with a higher max risk threshold.
var ErrNoPath = errors.New("planner: no path under current thresholds")

// ErrNoNearbyNode means an endpoint (start or end) could not be snapped to a
// graph node within the snap radius.
var ErrNoNearbyNode = errors.New("planner: no graph node within snap radius")

// ErrGraphNotReady means routing was requested before the graph was loaded.
var ErrGraphNotReady = errors.New("planner: graph not initialized")
