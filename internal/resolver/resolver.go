// Package resolver classifies a free-form identifier string into a
// model.ResolvedIdentifier and derives the upstream URL template, per
// spec.md §4.G. It replaces the teacher's classifier.go keyword
// buckets with the ordered classification rules spec.md names, and
// its URL-template table follows the Python prototype's
// resolve_flutter_url pattern table (server.py).
package resolver

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/j4ng5y/flutter-docs-mcp-server/internal/model"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/version"
)

// flutterLibraries is the closed set of Flutter SDK libraries
// recognized as a `library.Name` prefix, per spec.md §4.G rule 4.
var flutterLibraries = map[string]bool{
	"widgets":    true,
	"material":   true,
	"cupertino":  true,
	"painting":   true,
	"rendering":  true,
	"animation":  true,
	"services":   true,
	"foundation": true,
}

// dartLibraries maps the `dart:xxx` shorthand to the dashed library
// name api.dart.dev expects in its URL path.
var dartLibraries = map[string]string{
	"dart:core":       "dart-core",
	"dart:async":      "dart-async",
	"dart:collection": "dart-collection",
	"dart:convert":    "dart-convert",
	"dart:io":         "dart-io",
	"dart:math":       "dart-math",
	"dart:typed_data": "dart-typed_data",
	"dart:isolate":    "dart-isolate",
}

// curatedWidgets is a fallback list of well-known Flutter widget names
// recognized with no explicit library prefix, per spec.md §4.G rule 5.
// Resolves to library "widgets".
var curatedWidgets = map[string]bool{
	"Container": true, "Scaffold": true, "AppBar": true, "Text": true,
	"Column": true, "Row": true, "Stack": true, "ListView": true,
	"GridView": true, "Center": true, "Padding": true, "SizedBox": true,
	"Expanded": true, "Flexible": true, "Align": true, "Positioned": true,
	"GestureDetector": true, "InkWell": true, "Image": true, "Icon": true,
	"Card": true, "ListTile": true, "Divider": true, "SafeArea": true,
	"SingleChildScrollView": true, "Form": true, "TextField": true,
	"TextFormField": true, "Builder": true, "FutureBuilder": true,
	"StreamBuilder": true, "AnimatedContainer": true, "Hero": true,
	"Navigator": true, "Drawer": true, "BottomNavigationBar": true,
	"FloatingActionButton": true, "Tooltip": true, "Dialog": true,
	"AlertDialog": true, "SnackBar": true, "Wrap": true, "Spacer": true,
	"Opacity": true, "Transform": true, "ClipRRect": true,
}

var identifierWithLibrary = regexp.MustCompile(`^([A-Za-z_][\w]*)\.([A-Za-z_][\w]*)$`)

// Resolve classifies a raw identifier per spec.md §4.G's ordered
// rules, parsing a trailing version spec when present.
func Resolve(raw string) (model.ResolvedIdentifier, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.ResolvedIdentifier{}, fmt.Errorf("resolver: empty identifier")
	}

	// Rule 1: pub: prefix, optional :version_spec suffix.
	if rest, ok := cutPrefix(raw, "pub:"); ok {
		name, verRaw := splitVersionSuffix(rest)
		spec := model.VersionSpec{}
		if verRaw != "" {
			v, err := version.ParseConstraint(verRaw)
			if err != nil {
				return model.ResolvedIdentifier{}, fmt.Errorf("resolver: %w", err)
			}
			spec = v
		}
		if name == "" {
			return model.ResolvedIdentifier{}, fmt.Errorf("resolver: pub: identifier missing package name")
		}
		return model.ResolvedIdentifier{Kind: model.KindPubPackage, Name: name, VersionSpec: spec}, nil
	}

	// Rule 2/3: dart: prefix, or `dart:lib.Name` form split on the
	// last dot.
	if strings.HasPrefix(raw, "dart:") {
		idx := strings.LastIndex(raw, ".")
		if idx < 0 {
			return model.ResolvedIdentifier{}, fmt.Errorf("resolver: dart identifier %q missing .Name", raw)
		}
		lib, name := raw[:idx], raw[idx+1:]
		if name == "" {
			return model.ResolvedIdentifier{}, fmt.Errorf("resolver: dart identifier %q missing class name", raw)
		}
		return model.ResolvedIdentifier{Kind: model.KindDartClass, Library: lib, Name: name}, nil
	}

	// Rule 4: `library.Name` where library is a known Flutter library.
	if m := identifierWithLibrary.FindStringSubmatch(raw); m != nil {
		lib, name := m[1], m[2]
		if flutterLibraries[lib] {
			return model.ResolvedIdentifier{Kind: model.KindFlutterClass, Library: lib, Name: name}, nil
		}
	}

	// Rule 5: curated widget name with no prefix, library defaults to
	// widgets.
	if curatedWidgets[raw] {
		return model.ResolvedIdentifier{Kind: model.KindFlutterClass, Library: "widgets", Name: raw}, nil
	}

	// Rule 6: fall through to pub_package.
	return model.ResolvedIdentifier{Kind: model.KindPubPackage, Name: raw}, nil
}

// cutPrefix is strings.CutPrefix, spelled out for readability at the
// call site (this repo targets go.mod's toolchain but keeps the
// teacher's preference for explicit helpers over terse stdlib calls).
func cutPrefix(s, prefix string) (string, bool) {
	if strings.HasPrefix(s, prefix) {
		return s[len(prefix):], true
	}
	return s, false
}

// splitVersionSuffix splits "name:version_spec" into its two halves;
// returns ("name", "") if there is no ":version_spec" suffix.
func splitVersionSuffix(s string) (name, verRaw string) {
	idx := strings.Index(s, ":")
	if idx < 0 {
		return s, ""
	}
	return s[:idx], s[idx+1:]
}

// URLFor derives the authoritative upstream URL for r, per spec.md
// §4.G's URL-derivation table. pub_package returns the pub.dev JSON
// metadata endpoint; the README HTML endpoint is a separate derived
// URL obtained via ReadmeURLFor since a package
// fetch merges two upstream responses.
func URLFor(r model.ResolvedIdentifier) (string, error) {
	switch r.Kind {
	case model.KindFlutterClass:
		lib := r.Library
		if lib == "" {
			lib = "widgets"
		}
		return fmt.Sprintf("https://api.flutter.dev/flutter/%s/%s-class.html", lib, r.Name), nil
	case model.KindDartClass:
		dashed, ok := dartLibraries[r.Library]
		if !ok {
			dashed = strings.ReplaceAll(strings.TrimPrefix(r.Library, "dart:"), ":", "-")
			dashed = "dart-" + dashed
		}
		return fmt.Sprintf("https://api.dart.dev/stable/%s/%s-class.html", dashed, r.Name), nil
	case model.KindPubPackage:
		return fmt.Sprintf("https://pub.dev/api/packages/%s", r.Name), nil
	case model.KindConcept:
		return "", fmt.Errorf("resolver: concept identifiers have no upstream URL, use the local concept map")
	default:
		return "", fmt.Errorf("resolver: unknown kind %v", r.Kind)
	}
}

// ReadmeURLFor returns the pub.dev HTML README endpoint for a
// pub_package identifier, the second half of the merge spec.md §4.H
// describes for packages.
func ReadmeURLFor(r model.ResolvedIdentifier) (string, error) {
	if r.Kind != model.KindPubPackage {
		return "", fmt.Errorf("resolver: README URL only applies to pub_package, got %v", r.Kind)
	}
	return fmt.Sprintf("https://pub.dev/packages/%s", r.Name), nil
}

// VersionsURLFor returns the pub.dev endpoint listing all published
// versions, used by the version resolver (spec.md §4.F step 1).
func VersionsURLFor(r model.ResolvedIdentifier) (string, error) {
	if r.Kind != model.KindPubPackage {
		return "", fmt.Errorf("resolver: versions URL only applies to pub_package, got %v", r.Kind)
	}
	return fmt.Sprintf("https://pub.dev/api/packages/%s", r.Name), nil
}

// FromCanonicalID parses canonical_id strings of the form
// `kind:[library.]name[@version]` back into a ResolvedIdentifier,
// the inverse of model.ResolvedIdentifier.CanonicalID (round-trip
// property in spec.md §8).
func FromCanonicalID(id string) (model.ResolvedIdentifier, error) {
	idx := strings.Index(id, ":")
	if idx < 0 {
		return model.ResolvedIdentifier{}, fmt.Errorf("resolver: malformed canonical_id %q", id)
	}
	kindStr, rest := id[:idx], id[idx+1:]
	kind, err := model.ParseKind(kindStr)
	if err != nil {
		return model.ResolvedIdentifier{}, fmt.Errorf("resolver: %w", err)
	}

	name := rest
	var spec model.VersionSpec
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		name = rest[:at]
		v, err := version.ParseConstraint(rest[at+1:])
		if err != nil {
			return model.ResolvedIdentifier{}, fmt.Errorf("resolver: %w", err)
		}
		spec = v
	}

	lib := ""
	if dot := strings.LastIndex(name, "."); dot >= 0 && (kind == model.KindFlutterClass || kind == model.KindDartClass) {
		lib = name[:dot]
		name = name[dot+1:]
	}

	return model.ResolvedIdentifier{Kind: kind, Library: lib, Name: name, VersionSpec: spec}, nil
}
