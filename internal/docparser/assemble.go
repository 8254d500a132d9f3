package docparser

import (
	"fmt"
	"strings"

	"github.com/j4ng5y/flutter-docs-mcp-server/internal/model"
)

// ClassInput bundles everything BuildClassDocument needs to assemble
// a Flutter/Dart class page into the canonical document.
type ClassInput struct {
	Resolved model.ResolvedIdentifier
	HTMLBody []byte
	BaseURL  string
}

// BuildClassDocument produces the canonical sectioned Markdown for a
// flutter_class/dart_class identifier, per spec.md §4.H's class
// section order: title, Description, Constructors, Properties,
// Methods, Examples.
func BuildClassDocument(in ClassInput) (string, error) {
	page, err := parseClassHTML(in.HTMLBody, in.Resolved.Name, in.BaseURL)
	if err != nil {
		return "", fmt.Errorf("docparser: parse class HTML: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", page.Title)
	sb.WriteString("## Description\n")
	if page.Description != "" {
		sb.WriteString(page.Description)
	} else {
		sb.WriteString("No description available.")
	}
	sb.WriteString("\n\n")

	sb.WriteString("## Constructors\n")
	sb.WriteString(formatMembers(page.Constructors))
	sb.WriteString("\n\n")

	sb.WriteString("## Properties\n")
	sb.WriteString(formatMembers(page.Properties))
	sb.WriteString("\n\n")

	sb.WriteString("## Methods\n")
	sb.WriteString(formatMembers(page.Methods))
	sb.WriteString("\n\n")

	sb.WriteString("## Examples\n")
	sb.WriteString(formatExamples(page.Examples))
	sb.WriteString("\n")

	return sb.String(), nil
}

func formatMembers(members []htmlMember) string {
	if len(members) == 0 {
		return "None documented."
	}
	var sb strings.Builder
	for i, m := range members {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "### %s\n", m.Name)
		if m.Signature != "" {
			fmt.Fprintf(&sb, "```dart\n%s\n```\n", m.Signature)
		}
		if m.Doc != "" {
			sb.WriteString(m.Doc)
		}
	}
	return sb.String()
}

func formatExamples(examples []codeExample) string {
	if len(examples) == 0 {
		return "No code examples found."
	}
	var sb strings.Builder
	for i, ex := range examples {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "#### Example %d\n```%s\n%s\n```", i+1, ex.Language, ex.Code)
	}
	return sb.String()
}

// PackageInput bundles the two upstream responses a pub_package fetch
// merges: the JSON metadata and (optionally) the scraped README HTML.
type PackageInput struct {
	Resolved     model.ResolvedIdentifier
	ResolvedVer  string // the concrete version the version resolver picked, "" if unversioned
	MetadataJSON []byte
	ReadmeHTML   []byte // nil when the README fetch failed or the package has none
	ReadmeMD     []byte // GitHub-sourced fallback README, tried when ReadmeHTML is empty
	ChangelogMD  []byte // nil when unavailable
	BaseURL      string
}

// BuildPackageDocument produces the canonical sectioned Markdown for a
// pub_package identifier, per spec.md §4.H's package section order:
// title, Description, Installation, Getting Started, API, Examples,
// Changelog. When ReadmeHTML is empty it falls back to ReadmeMD (a
// GitHub-sourced README), then finally metadata-only, rather than
// failing, per spec.md §4.H.
func BuildPackageDocument(in PackageInput) (string, error) {
	meta, err := ParsePubMetadata(in.MetadataJSON)
	if err != nil {
		return "", err
	}

	version := in.ResolvedVer
	if version == "" {
		version = meta.Latest.Version
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s %s\n\n", meta.Name, version)

	sb.WriteString("## Description\n")
	if meta.Latest.Pubspec.Description != "" {
		sb.WriteString(cleanText(meta.Latest.Pubspec.Description))
	} else {
		sb.WriteString("No description available.")
	}
	sb.WriteString("\n\n")

	var readme *pubReadme
	if len(in.ReadmeHTML) > 0 {
		readme, err = parsePubReadmeHTML(in.ReadmeHTML, in.BaseURL)
		if err != nil {
			readme = nil // degrade further down the ladder below
		}
	}
	if (readme == nil || (readme.Installation == "" && readme.GettingStarted == "")) && len(in.ReadmeMD) > 0 {
		readme = ParseReadmeMarkdown(in.ReadmeMD)
	}

	sb.WriteString("## Installation\n")
	if readme != nil && readme.Installation != "" {
		sb.WriteString(readme.Installation)
	} else {
		fmt.Fprintf(&sb, "```yaml\ndependencies:\n  %s: ^%s\n```", meta.Name, version)
	}
	sb.WriteString("\n\n")

	sb.WriteString("## Getting Started\n")
	if readme != nil && readme.GettingStarted != "" {
		sb.WriteString(readme.GettingStarted)
	} else {
		sb.WriteString("See the package homepage for usage instructions.")
	}
	sb.WriteString("\n\n")

	sb.WriteString("## API\n")
	if meta.Latest.Pubspec.Homepage != "" {
		fmt.Fprintf(&sb, "Full API reference: [%s](%s)", meta.Latest.Pubspec.Homepage, meta.Latest.Pubspec.Homepage)
	} else {
		sb.WriteString("No API reference link available.")
	}
	sb.WriteString("\n\n")

	sb.WriteString("## Examples\n")
	sb.WriteString("See the package's example/ directory on pub.dev.")
	sb.WriteString("\n\n")

	sb.WriteString("## Changelog\n")
	if len(in.ChangelogMD) > 0 {
		entries := parseChangelogMarkdown(in.ChangelogMD)
		if len(entries) > 3 {
			entries = entries[:3]
		}
		if len(entries) > 0 {
			sb.WriteString(strings.Join(entries, "\n\n"))
		} else {
			sb.WriteString("No changelog entries found.")
		}
	} else {
		sb.WriteString("No changelog available.")
	}
	sb.WriteString("\n")

	return sb.String(), nil
}

// section headers, in canonical document order, used by FilterTopic
// to map a spec.md §3 topic value to the H2 it selects.
var topicHeadings = map[model.Topic]string{
	model.TopicSummary:       "## Description",
	model.TopicConstructors:  "## Constructors",
	model.TopicProperties:    "## Properties",
	model.TopicMethods:       "## Methods",
	model.TopicExamples:      "## Examples",
	model.TopicGettingStarted: "## Getting Started",
	model.TopicChangelog:     "## Changelog",
	model.TopicAPI:           "## API",
	model.TopicInstallation:  "## Installation",
}

// FilterTopic reduces a canonical document to its title line plus the
// section matching topic, per spec.md §4.H's topic filter. An empty
// match still returns the title plus a one-line note rather than
// erroring.
func FilterTopic(content string, topic model.Topic) string {
	heading, ok := topicHeadings[topic]
	if !ok {
		return content
	}

	lines := strings.Split(content, "\n")
	title := ""
	if len(lines) > 0 && strings.HasPrefix(lines[0], "# ") {
		title = lines[0]
	}

	start := -1
	for i, l := range lines {
		if strings.TrimSpace(l) == heading {
			start = i
			break
		}
	}
	if start < 0 {
		return title + "\n\n_No content found for topic \"" + string(topic) + "\"._\n"
	}

	end := len(lines)
	for i := start + 1; i < len(lines); i++ {
		if strings.HasPrefix(lines[i], "## ") {
			end = i
			break
		}
	}

	section := strings.Join(lines[start:end], "\n")
	return title + "\n\n" + strings.TrimRight(section, "\n") + "\n"
}
