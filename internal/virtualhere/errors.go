package virtualhere

import "errors"

// ErrIncompleteListing is returned by Probe when LIST output is missing its
// banner or trailer.
var ErrIncompleteListing = errors.New("virtualhere: incomplete listing")
