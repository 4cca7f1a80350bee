package releases

import (
	"strings"

	"dlpage/models"
)

// segment is one dot or dash delimited part of a version string. Segments
// without a leading number, including empty ones, are not numeric and rank
// below every number.
type segment struct {
	digits  string
	numeric bool
}

func parseSegments(version string) []segment {
	parts := strings.Split(strings.ReplaceAll(version, "-", "."), ".")

	segments := make([]segment, len(parts))
	for i, part := range parts {
		digits, ok := numericPrefix(part)
		segments[i] = segment{digits: digits, numeric: ok}
	}
	return segments
}

// numericPrefix reads the leading digits of a segment, so "1rc" is "1".
// Leading zeros are dropped and the digits are never converted, so segments
// of any length compare by value.
func numericPrefix(input string) (string, bool) {
	idx := 0
	for idx < len(input) && input[idx] >= '0' && input[idx] <= '9' {
		idx++
	}
	if idx == 0 {
		return "", false
	}
	digits := strings.TrimLeft(input[:idx], "0")
	if digits == "" {
		digits = "0"
	}
	return digits, true
}

// cmpDigits compares two canonical digit strings by numeric value
func cmpDigits(a, b string) int {
	if c := cmpInt(len(a), len(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

func compareSegment(a, b segment) int {
	switch {
	case a.numeric && b.numeric:
		return cmpDigits(a.digits, b.digits)
	case a.numeric:
		return 1
	case b.numeric:
		return -1
	default:
		return 0
	}
}

func cmpInt(a, b int) int {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}

// CompareVersionStrings returns 1 when a is newer than b, -1 when older and
// 0 when they are equal. On a tie of all shared segments the shorter version
// is the older one, so "19.2.0" is newer than "19.2".
func CompareVersionStrings(a, b string) int {
	sa := parseSegments(a)
	sb := parseSegments(b)

	l := min(len(sa), len(sb))
	for i := 0; i < l; i++ {
		if c := compareSegment(sa[i], sb[i]); c != 0 {
			return c
		}
	}
	return cmpInt(len(sa), len(sb))
}

// CompareVersions returns a comparator ordering records newest first by the
// given version field. It is suitable for slices.SortStableFunc.
func CompareVersions[T models.Versioned](field string) func(a, b T) int {
	return func(a, b T) int {
		return CompareVersionStrings(b.VersionField(field), a.VersionField(field))
	}
}
