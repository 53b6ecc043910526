package prune

import (
	"errors"
	"fmt"
)

// ErrInconsistent is the sentinel wrapped when analysis or remapping finds
// the module referencing an index space in a way its own shape rules out
// (e.g. a call to a function index beyond the shared index space, or a
// live index resolving to the dead sentinel during remapping). It signals
// an internal inconsistency rather than a malformed encoding; the driver
// reports it and exits non-zero the same way it does ErrMalformed from the
// binary package.
var ErrInconsistent = errors.New("inconsistent module")

// WrapInconsistent wraps ErrInconsistent with context.
func WrapInconsistent(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInconsistent, fmt.Sprintf(format, args...))
}
