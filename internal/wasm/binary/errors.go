package binary

import (
	"errors"
	"fmt"
)

// ErrMalformed is the sentinel wrapped by structural decode failures: a bad
// header, an unknown section id, a section size past the end of the input,
// or an invalid value type, type form, import kind, or const-expression
// opcode. Running out of bytes inside a section yields an EOF error that
// does not wrap it. The driver reports either and exits non-zero; neither
// is downgraded to a warning or silently recovered from.
var ErrMalformed = errors.New("malformed module")

// WrapMalformed wraps ErrMalformed with context describing where decoding
// failed.
func WrapMalformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}
