// Package version parses pub.dev-flavored version constraints and
// resolves them against a package's published version list, per
// spec.md §4.F.
package version

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/j4ng5y/flutter-docs-mcp-server/internal/model"
)

// keywords recognized by the constraint grammar.
var keywords = map[string]bool{
	"latest": true,
	"stable": true,
	"dev":    true,
	"beta":   true,
	"alpha":  true,
}

// ParseSemVer parses a bare "major.minor.patch[-prerelease]" string.
func ParseSemVer(s string) (model.SemVer, error) {
	s = strings.TrimPrefix(s, "v")
	core := s
	prerelease := ""
	if idx := strings.IndexByte(s, '-'); idx >= 0 {
		core = s[:idx]
		prerelease = s[idx+1:]
	}
	parts := strings.Split(core, ".")
	if len(parts) != 3 {
		return model.SemVer{}, fmt.Errorf("version: invalid semver %q", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return model.SemVer{}, fmt.Errorf("version: invalid semver component %q in %q: %w", p, s, err)
		}
		nums[i] = n
	}
	return model.SemVer{Major: nums[0], Minor: nums[1], Patch: nums[2], Prerelease: prerelease}, nil
}

// Compare returns -1, 0, or 1 comparing a to b, release versions
// sorting after any prerelease of the same major.minor.patch.
func Compare(a, b model.SemVer) int {
	if a.Major != b.Major {
		return cmp(a.Major, b.Major)
	}
	if a.Minor != b.Minor {
		return cmp(a.Minor, b.Minor)
	}
	if a.Patch != b.Patch {
		return cmp(a.Patch, b.Patch)
	}
	switch {
	case a.Prerelease == b.Prerelease:
		return 0
	case a.Prerelease == "":
		return 1
	case b.Prerelease == "":
		return -1
	default:
		return strings.Compare(a.Prerelease, b.Prerelease)
	}
}

func cmp(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// ParseConstraint parses the raw text following "@" in an identifier
// into a VersionSpec: exact ("6.0.5"), caret ("^6.0.0"), range
// (">=1.0.0 <2.0.0"), or keyword (latest|stable|dev|beta|alpha).
func ParseConstraint(raw string) (model.VersionSpec, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.VersionSpec{}, nil
	}
	if keywords[raw] {
		return model.VersionSpec{Kind: model.VersionKeyword, Keyword: raw}.WithRaw(raw), nil
	}
	if strings.HasPrefix(raw, "^") {
		v, err := ParseSemVer(strings.TrimPrefix(raw, "^"))
		if err != nil {
			return model.VersionSpec{}, err
		}
		return model.VersionSpec{Kind: model.VersionCaret, Exact: v}.WithRaw(raw), nil
	}
	if strings.ContainsAny(raw, "<>=") {
		return parseRange(raw)
	}
	v, err := ParseSemVer(raw)
	if err != nil {
		return model.VersionSpec{}, err
	}
	return model.VersionSpec{Kind: model.VersionExact, Exact: v}.WithRaw(raw), nil
}

func parseRange(raw string) (model.VersionSpec, error) {
	spec := model.VersionSpec{Kind: model.VersionRange}
	for _, tok := range strings.Fields(raw) {
		inclusive := strings.HasPrefix(tok, ">=") || strings.HasPrefix(tok, "<=")
		lower := strings.HasPrefix(tok, ">")
		upper := strings.HasPrefix(tok, "<")
		var numStr string
		switch {
		case inclusive:
			numStr = tok[2:]
		case lower || upper:
			numStr = tok[1:]
		default:
			return model.VersionSpec{}, fmt.Errorf("version: invalid range token %q in %q", tok, raw)
		}
		v, err := ParseSemVer(numStr)
		if err != nil {
			return model.VersionSpec{}, err
		}
		switch {
		case lower:
			spec.RangeLower = &v
			spec.RangeLowerInclusive = inclusive
		case upper:
			spec.RangeUpper = &v
			spec.RangeUpperInclusive = inclusive
		}
	}
	if spec.RangeLower == nil && spec.RangeUpper == nil {
		return model.VersionSpec{}, fmt.Errorf("version: range %q has no bounds", raw)
	}
	return spec.WithRaw(raw), nil
}

// satisfies reports whether v satisfies spec. Keyword specs are
// resolved by the caller against the actual published tags/channels,
// not here.
func satisfies(v model.SemVer, spec model.VersionSpec) bool {
	switch spec.Kind {
	case model.VersionNone:
		return true
	case model.VersionExact:
		return Compare(v, spec.Exact) == 0
	case model.VersionCaret:
		// ^6.0.0 means >=6.0.0 <7.0.0 (major pinned); ^0.6.0 means
		// >=0.6.0 <0.7.0 (minor pinned when major is 0); ^0.0.3 means
		// >=0.0.3 <0.0.4 (patch pinned when major and minor are both
		// 0), per semver caret convention.
		base := spec.Exact
		if Compare(v, base) < 0 {
			return false
		}
		if base.Major > 0 {
			return v.Major == base.Major
		}
		if base.Minor > 0 {
			return v.Major == 0 && v.Minor == base.Minor
		}
		return v.Major == 0 && v.Minor == 0 && v.Patch == base.Patch
	case model.VersionRange:
		if spec.RangeLower != nil {
			c := Compare(v, *spec.RangeLower)
			if c < 0 || (c == 0 && !spec.RangeLowerInclusive) {
				return false
			}
		}
		if spec.RangeUpper != nil {
			c := Compare(v, *spec.RangeUpper)
			if c > 0 || (c == 0 && !spec.RangeUpperInclusive) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Resolver picks the highest published version satisfying a
// VersionSpec, or, for a keyword, the highest published version whose
// prerelease status or tag matches it.
type Resolver struct{}

// NewResolver builds a version Resolver. Stateless; exists as a named
// type so Core can hold it alongside the other components.
func NewResolver() *Resolver { return &Resolver{} }

// Resolve returns the best version from published satisfying spec.
// For keyword specs, "latest" is the absolute highest published
// version regardless of prerelease status, "stable" is the highest
// non-prerelease (falling back to the highest overall if every
// published version is a prerelease), and "dev"/"beta"/"alpha"
// resolve to the highest version whose prerelease tag contains that
// string.
func (r *Resolver) Resolve(published []model.SemVer, spec model.VersionSpec) (model.SemVer, error) {
	if len(published) == 0 {
		return model.SemVer{}, fmt.Errorf("version: no published versions to resolve against")
	}
	sorted := make([]model.SemVer, len(published))
	copy(sorted, published)
	sort.Slice(sorted, func(i, j int) bool { return Compare(sorted[i], sorted[j]) > 0 })

	if spec.Kind == model.VersionNone {
		for _, v := range sorted {
			if !v.IsPrerelease() {
				return v, nil
			}
		}
		return sorted[0], nil
	}

	if spec.Kind == model.VersionKeyword {
		switch spec.Keyword {
		case "latest":
			return sorted[0], nil
		case "stable":
			for _, v := range sorted {
				if !v.IsPrerelease() {
					return v, nil
				}
			}
			return sorted[0], nil
		case "dev", "beta", "alpha":
			for _, v := range sorted {
				if strings.Contains(v.Prerelease, spec.Keyword) {
					return v, nil
				}
			}
			return model.SemVer{}, fmt.Errorf("version: no published version matches keyword %q", spec.Keyword)
		default:
			return model.SemVer{}, fmt.Errorf("version: unrecognized keyword %q", spec.Keyword)
		}
	}

	for _, v := range sorted {
		if satisfies(v, spec) {
			return v, nil
		}
	}
	return model.SemVer{}, fmt.Errorf("version: no published version satisfies constraint %q", spec.Raw())
}
