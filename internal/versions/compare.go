package versions

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Compare orders two tag names. Tags that parse as semantic versions compare
// by precedence and rank above any tag that does not; the rest compare as
// strings. It returns -1, 0 or +1.
func Compare(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)

	switch {
	case errA == nil && errB == nil:
		if c := va.Compare(vb); c != 0 {
			return c
		}
		// v1.0.0 and 1.0.0 have equal precedence
		return strings.Compare(a, b)
	case errA == nil:
		return 1
	case errB == nil:
		return -1
	default:
		return strings.Compare(a, b)
	}
}
