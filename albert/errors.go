package albert

import "github.com/pkg/errors"

// ErrTooShort is returned when the input doesn't have enough tokens to form two
// non-trivial segments. Callers should skip the input.
var ErrTooShort = errors.New("too short to be an example")

// ErrMaskingFailed is returned when no span could be selected for masking.
// Callers should skip the input.
var ErrMaskingFailed = errors.New("masking failed")

// IsSkippable reports whether err is a per-example failure, after which the caller
// should discard the input and carry on.
func IsSkippable(err error) bool {
	return errors.Is(err, ErrTooShort) || errors.Is(err, ErrMaskingFailed)
}
