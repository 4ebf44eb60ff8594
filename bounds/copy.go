package bounds

import (
	"github.com/wippyai/memsafe/errors"
)

// CopyBounded copies min(len(src), len(dst)) elements to the front of dst
// and returns the count. The rest of dst is left untouched.
func CopyBounded[T any](dst, src []T) int {
	return copy(dst, src)
}

// CopyExact copies src into dst when both have the same length. Otherwise
// it copies nothing and returns a length_mismatch fault.
func CopyExact[T any](dst, src []T) error {
	if len(src) != len(dst) {
		return errors.LengthMismatch(len(src), len(dst))
	}
	copy(dst, src)
	return nil
}
