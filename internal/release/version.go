package release

import (
	"strconv"
	"strings"
)

// NormalizeVersion strips a leading "v" from a tag name.
func NormalizeVersion(tag string) string {
	return strings.TrimPrefix(strings.TrimSpace(tag), "v")
}

// CompareVersions compares two dotted version strings component-wise as
// integers, treating missing trailing components as zero. It returns -1, 0
// or 1. Non-numeric components compare as zero. This comparator is the sole
// authority for "update available" decisions.
func CompareVersions(a, b string) int {
	as := strings.Split(NormalizeVersion(a), ".")
	bs := strings.Split(NormalizeVersion(b), ".")

	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}

	for i := 0; i < n; i++ {
		av := versionComponent(as, i)
		bv := versionComponent(bs, i)
		if av < bv {
			return -1
		}
		if av > bv {
			return 1
		}
	}
	return 0
}

func versionComponent(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
	if err != nil {
		return 0
	}
	return v
}
