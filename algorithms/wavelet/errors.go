package wavelet

import "errors"

// ErrInvalidInput reports a caller contract violation: a negative depth, an odd-length
// signal at a single decomposition step, or a signal whose length is not a multiple of 2^depth.
var ErrInvalidInput = errors.New("invalid wavelet input")
