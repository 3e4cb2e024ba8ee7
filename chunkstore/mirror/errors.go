package mirror

import "errors"

// errNoPrimaries is returned by New when constructed with zero primary
// stores; a MirroredStore with no synchronous replica cannot ever satisfy
// the write invariant.
var errNoPrimaries = errors.New("mirror: at least one primary store is required")
