package fetchcore

import (
	"sort"
	"strings"

	"github.com/j4ng5y/flutter-docs-mcp-server/internal/model"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/version"
)

// encodeVersionList/decodeVersionList give the cached published-
// versions list (spec.md §4.F step 1) a trivial newline-delimited
// wire format so it can ride through cachestore.Store's Document
// shape like any other cached body.
func encodeVersionList(versions []model.SemVer) string {
	strs := make([]string, len(versions))
	for i, v := range versions {
		strs[i] = v.String()
	}
	return strings.Join(strs, "\n")
}

func decodeVersionList(content string) []model.SemVer {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	versions := make([]model.SemVer, 0, len(lines))
	for _, l := range lines {
		if l == "" {
			continue
		}
		if v, err := version.ParseSemVer(l); err == nil {
			versions = append(versions, v)
		}
	}
	return versions
}

// closestVersions returns up to n published versions, highest first,
// for the VersionNotSatisfiable error's suggestions (spec.md §4.F
// step 4).
func closestVersions(published []model.SemVer, n int) []model.SemVer {
	sorted := make([]model.SemVer, len(published))
	copy(sorted, published)
	sort.Slice(sorted, func(i, j int) bool { return version.Compare(sorted[i], sorted[j]) > 0 })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
