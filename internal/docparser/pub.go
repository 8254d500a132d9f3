package docparser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
)

// pubPackageJSON mirrors the subset of pub.dev's /api/packages/{name}
// response this parser consumes.
type pubPackageJSON struct {
	Name    string `json:"name"`
	Latest  struct {
		Version string `json:"version"`
		Pubspec struct {
			Description string `json:"description"`
			Homepage    string `json:"homepage"`
		} `json:"pubspec"`
	} `json:"latest"`
	Versions []struct {
		Version string `json:"version"`
	} `json:"versions"`
}

// ParsePubMetadata decodes a pub.dev package JSON payload.
func ParsePubMetadata(body []byte) (*pubPackageJSON, error) {
	var pkg pubPackageJSON
	if err := json.Unmarshal(body, &pkg); err != nil {
		return nil, fmt.Errorf("docparser: decode pub.dev metadata: %w", err)
	}
	return &pkg, nil
}

// PublishedVersions returns every published version string, newest
// first as pub.dev lists them, for the version resolver (spec.md
// §4.F step 1).
func (p *pubPackageJSON) PublishedVersions() []string {
	versions := make([]string, 0, len(p.Versions))
	for _, v := range p.Versions {
		versions = append(versions, v.Version)
	}
	return versions
}

// Homepage returns the pubspec's declared homepage/repository URL, so
// the package fetch path can decide whether a GitHub README fallback
// applies.
func (p *pubPackageJSON) Homepage() string {
	return p.Latest.Pubspec.Homepage
}

// pubReadme is the result of scraping a pub.dev package's README tab.
type pubReadme struct {
	Installation string
	GettingStarted string
	Changelog      []string // most-recent-first entries, bounded to 3 by the caller
}

// parsePubReadmeHTML extracts the installation/getting-started prose
// from a pub.dev package page's rendered README, degrading to an
// empty pubReadme (not an error) when the page carries no README tab,
// per spec.md §4.H's pub.dev degradation rule.
func parsePubReadmeHTML(body []byte, baseURL string) (*pubReadme, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	pruneNoise(doc)

	readme := &pubReadme{}
	if section := firstByClass(doc, "detail-tab-readme-content"); section != nil {
		text := cleanText(renderInline(section, baseURL))
		readme.Installation = extractBetweenHeadings(text, "Installation", "Usage", "Getting started")
		readme.GettingStarted = extractBetweenHeadings(text, "Getting started", "Usage", "Example")
	}
	return readme, nil
}

// extractBetweenHeadings is a crude section slice: find `start` as a
// line, return everything up to (but not including) the first of
// `stopAny`. Used because pub.dev READMEs have no stable DOM
// structure for these sections, only Markdown-derived headings.
func extractBetweenHeadings(text string, start string, stopAny ...string) string {
	lines := strings.Split(text, "\n")
	startIdx := -1
	for i, l := range lines {
		if strings.EqualFold(strings.TrimSpace(l), start) {
			startIdx = i + 1
			break
		}
	}
	if startIdx < 0 {
		return ""
	}
	end := len(lines)
	for i := startIdx; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		for _, stop := range stopAny {
			if strings.EqualFold(trimmed, stop) {
				end = i
				break
			}
		}
		if end != len(lines) {
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[startIdx:end], "\n"))
}

// ParseReadmeMarkdown extracts installation/getting-started prose from
// a raw README.md, for packages whose pub.dev README tab is thin but
// whose pubspec homepage points at a GitHub repository the fetch path
// pulled the source README from instead. Walks the goldmark block tree
// the same way parseChangelogMarkdown does, splitting on H1/H2
// headings rather than pub.dev's CSS classes.
func ParseReadmeMarkdown(body []byte) *pubReadme {
	md := goldmark.New()
	source := text.NewReader(body)
	doc := md.Parser().Parse(source)

	sections := map[string]string{}
	var currentHeading string
	var currentBody strings.Builder

	flush := func() {
		if currentHeading != "" {
			sections[strings.ToLower(currentHeading)] = strings.TrimSpace(currentBody.String())
		}
		currentBody.Reset()
	}

	child := doc.FirstChild()
	for child != nil {
		if h, ok := child.(*ast.Heading); ok && (h.Level == 1 || h.Level == 2) {
			flush()
			currentHeading = headingText(h, body)
		} else {
			currentBody.WriteString(nodeText(child, body))
			currentBody.WriteString("\n")
		}
		child = child.NextSibling()
	}
	flush()

	return &pubReadme{
		Installation:   sections["installation"],
		GettingStarted: firstNonEmpty(sections["getting started"], sections["usage"]),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
