// Package version normalizes and compares version strings the way
// spec.md §3 requires: leading "v" stripped, prerelease tags converted to
// a canonical form ("-alpha" -> "a0", "-beta.3" -> "b3", "-rc.2" -> "rc2"),
// compared with PEP-440-style semantics on the normalized strings.
//
// Grounded on the teacher's pkg/version/version.go Normalize/Compare,
// generalized from flanksource-deps' looser "strip prefix, fall back to
// string compare" scheme to the spec's required canonical prerelease
// encoding, still backed by Masterminds/semver for the numeric compare.
package version

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var prereleaseTagRe = regexp.MustCompile(`(?i)^(alpha|beta|rc)\.?(\d*)$`)

// prereleaseAbbrev maps a prerelease tag's kind to spec.md §3's canonical
// abbreviation ("-alpha" -> "a0", "-beta.3" -> "b3", "-rc.2" -> "rc2").
var prereleaseAbbrev = map[string]string{"alpha": "a", "beta": "b", "rc": "rc"}

// Normalize strips a leading "v"/"V" and canonicalizes prerelease tags.
//
// Examples: "v1.0.0" -> "1.0.0"; "1.0.0-alpha" -> "1.0.0a0";
// "1.0.0-beta.3" -> "1.0.0b3"; "1.0.0-rc.2" -> "1.0.0rc2".
// Normalize is idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return v
	}
	v = strings.TrimPrefix(v, "v")
	v = strings.TrimPrefix(v, "V")

	// Already-canonical input (e.g. re-normalizing "1.0.0a0") has no
	// dash-delimited prerelease segment to rewrite; pass through as-is
	// except for the v-strip above, which is itself idempotent.
	idx := strings.IndexByte(v, '-')
	if idx < 0 {
		return v
	}

	base := v[:idx]
	tag := v[idx+1:]

	// Multiple dashes (e.g. "1.0.0-alpha-build5") — only the first
	// dash-delimited segment is treated as the prerelease tag.
	if m := prereleaseTagRe.FindStringSubmatch(tag); m != nil {
		kind := prereleaseAbbrev[strings.ToLower(m[1])]
		num := m[2]
		if num == "" {
			num = "0"
		}
		return base + kind + num
	}

	// Unknown tag shape: keep the dash form but lowercase it, so the
	// comparator at least sees something stable and order-preserving
	// relative to itself.
	return base + "-" + strings.ToLower(tag)
}

// IsPrerelease reports whether a normalized version string carries a
// prerelease marker (alpha/beta/rc).
func IsPrerelease(normalized string) bool {
	return prereleaseSuffix(normalized) != ""
}

var prereleaseSuffixRe = regexp.MustCompile(`(rc|a|b)(\d+)$`)

func prereleaseSuffix(normalized string) string {
	m := prereleaseSuffixRe.FindString(strings.ToLower(normalized))
	return m
}

// toSemver converts a my-unicorn-normalized version string into a
// Masterminds/semver-parseable string by re-inserting a hyphen before any
// canonical prerelease suffix (semver requires "-" before prerelease
// identifiers; our canonical form elides it for compactness).
func toSemver(normalized string) (*semver.Version, error) {
	candidate := normalized
	if m := prereleaseSuffixRe.FindStringSubmatchIndex(strings.ToLower(normalized)); m != nil {
		candidate = normalized[:m[0]] + "-" + normalized[m[0]:]
	}
	return semver.NewVersion(candidate)
}

// Compare returns -1, 0, or 1 as normalized v1 is less than, equal to, or
// greater than normalized v2, using PEP-440-style semantics: numeric
// precedence wins, release > prerelease at equal numeric version, and
// alpha < beta < rc among prereleases.
func Compare(v1, v2 string) int {
	n1, n2 := Normalize(v1), Normalize(v2)
	if n1 == n2 {
		return 0
	}

	s1, err1 := toSemver(n1)
	s2, err2 := toSemver(n2)
	if err1 == nil && err2 == nil {
		// semver compares prerelease identifiers lexically: across kinds
		// "a0" < "b1" < "rc2" holds, but within one kind "b10" < "b9"
		// would, so same-kind prereleases of one release compare by ordinal.
		m1 := prereleaseSuffixRe.FindStringSubmatch(strings.ToLower(n1))
		m2 := prereleaseSuffixRe.FindStringSubmatch(strings.ToLower(n2))
		if m1 != nil && m2 != nil && m1[1] == m2[1] && s1.Major() == s2.Major() && s1.Minor() == s2.Minor() && s1.Patch() == s2.Patch() {
			if a, b := mustAtoi(m1[2]), mustAtoi(m2[2]); a != b {
				if a < b {
					return -1
				}
				return 1
			}
		}
		if c := s1.Compare(s2); c != 0 {
			return c
		}
		return 0
	}

	// Fall back to lexical compare when either side isn't valid semver.
	if n1 < n2 {
		return -1
	}
	if n1 > n2 {
		return 1
	}
	return 0
}

// LessThan reports whether normalized v1 sorts before normalized v2.
func LessThan(v1, v2 string) bool {
	return Compare(v1, v2) < 0
}

// TagToVersion parses a raw forge tag into (normalized, prerelease-flag).
func TagToVersion(tag string) (normalized string, prerelease bool) {
	n := Normalize(tag)
	return n, IsPrerelease(n)
}

// mustAtoi is a tiny helper retained for callers that need the numeric
// prerelease ordinal (e.g. "rc2" -> 2); returns 0 on parse failure.
func mustAtoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
