package hazard

import "errors"

// ErrLockTimeout is fatal for the tick: the
// graph's write lock could not be acquired within the configured deadline.
var ErrLockTimeout = errors.New("hazard: graph lock acquisition timed out")
