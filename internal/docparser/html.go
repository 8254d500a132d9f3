// Package docparser turns upstream HTML (api.flutter.dev, api.dart.dev,
// pub.dev README pages) and pub.dev's package JSON into the canonical
// sectioned Markdown document spec.md §4.H describes. The HTML walk is
// grounded in the teacher's parser.go (golang.org/x/net/html tree walk,
// heading-level section splitting); the removal/cleanup rules and the
// class/method/constructor extraction follow the Python prototype's
// server.py process_documentation pipeline.
package docparser

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// removedTags are stripped outright before section extraction, per
// spec.md §4.H.
var removedTags = map[string]bool{
	"script": true, "style": true, "nav": true, "header": true, "footer": true,
}

// removedClassPattern matches the Python prototype's intent (drop sidebar
// chrome) generalized from spec.md §4.H's named classes.
var removedClassPattern = regexp.MustCompile(`\bsidebar\b|\bbreadcrumbs\b|\bfooter\b`)

// htmlMember is one constructor/property/method extracted from a
// class page: a heading, an optional code signature, and prose.
type htmlMember struct {
	Name      string
	Signature string
	Doc       string
}

// htmlClassPage is the structured extraction of a single Flutter/Dart
// class documentation page, ready for markdown assembly.
type htmlClassPage struct {
	Title        string
	Description  string
	Constructors []htmlMember
	Properties   []htmlMember
	Methods      []htmlMember
	Examples     []codeExample
}

type codeExample struct {
	Language string
	Code     string
}

// parseClassHTML walks raw HTML from a Flutter/Dart class page and
// extracts the sections the canonical document needs. baseURL anchors
// relative links absolute per spec.md §4.H.
func parseClassHTML(body []byte, className, baseURL string) (*htmlClassPage, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	pruneNoise(doc)

	page := &htmlClassPage{Title: className}
	if t := firstByTagOrClass(doc, "h1", ""); t != nil {
		if text := textOf(t); text != "" {
			page.Title = text
		}
	}

	if desc := firstByClass(doc, "desc"); desc != nil {
		page.Description = cleanText(renderInline(desc, baseURL))
	}

	page.Constructors = extractMembers(doc, "constructor")
	page.Properties = extractMembers(doc, "property")
	page.Methods = extractMembers(doc, "method")
	page.Examples = extractCodeExamples(doc)

	return page, nil
}

// pruneNoise removes script/style/nav/header/footer elements and any
// element whose class matches removedClassPattern, per spec.md §4.H.
func pruneNoise(n *html.Node) {
	var toRemove []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode {
			if removedTags[node.Data] || removedClassPattern.MatchString(classOf(node)) {
				toRemove = append(toRemove, node)
				return // don't descend into removed subtrees
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	for _, node := range toRemove {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}

// extractMembers finds every element carrying sectionClass (e.g.
// "constructor", "method") and pulls out its heading, signature
// (<pre>), and first paragraph of documentation, matching the
// prototype's format_constructors/format_methods.
func extractMembers(n *html.Node, sectionClass string) []htmlMember {
	var members []htmlMember
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == "section" && hasClass(node, sectionClass) {
			m := htmlMember{}
			if h := firstByTagOrClass(node, "h3", ""); h != nil {
				m.Name = cleanText(textOf(h))
			}
			if pre := firstByTagOrClass(node, "pre", ""); pre != nil {
				m.Signature = cleanText(textOf(pre))
			}
			if p := firstByTagOrClass(node, "p", ""); p != nil {
				m.Doc = cleanText(textOf(p))
			}
			if m.Name != "" {
				members = append(members, m)
			}
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return members
}

// extractCodeExamples pulls <pre class="language-dart"> blocks,
// falling back to any <pre> when none are language-tagged, capped at
// 5 per the prototype's extract_code_examples.
func extractCodeExamples(n *html.Node) []codeExample {
	var tagged, untagged []codeExample
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == "pre" {
			code := cleanCodeText(textOf(node))
			if code != "" {
				if hasClassPrefix(node, "language-") {
					tagged = append(tagged, codeExample{Language: languageOf(node), Code: code})
				} else {
					untagged = append(untagged, codeExample{Language: "dart", Code: code})
				}
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	examples := tagged
	if len(examples) == 0 {
		examples = untagged
	}
	if len(examples) > 5 {
		examples = examples[:5]
	}
	return examples
}

func languageOf(n *html.Node) string {
	for _, c := range strings.Fields(classOf(n)) {
		if strings.HasPrefix(c, "language-") {
			return strings.TrimPrefix(c, "language-")
		}
	}
	return "dart"
}

func hasClassPrefix(n *html.Node, prefix string) bool {
	for _, c := range strings.Fields(classOf(n)) {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(classOf(n)) {
		if c == class {
			return true
		}
	}
	return false
}

func classOf(n *html.Node) string {
	for _, a := range n.Attr {
		if a.Key == "class" {
			return a.Val
		}
	}
	return ""
}

func firstByClass(n *html.Node, class string) *html.Node {
	if n.Type == html.ElementNode && hasClass(n, class) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := firstByClass(c, class); found != nil {
			return found
		}
	}
	return nil
}

func firstByTagOrClass(n *html.Node, tag, class string) *html.Node {
	if n.Type == html.ElementNode {
		if tag != "" && n.Data == tag {
			return n
		}
		if class != "" && hasClass(n, class) {
			return n
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := firstByTagOrClass(c, tag, class); found != nil {
			return found
		}
	}
	return nil
}

func textOf(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textOf(c))
	}
	return sb.String()
}

// renderInline walks n converting <a href> into inline Markdown links
// with absolute URLs resolved against base, per spec.md §4.H.
func renderInline(n *html.Node, base string) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == "a" {
			href := absoluteHref(node, base)
			text := textOf(node)
			if href != "" {
				sb.WriteString("[" + text + "](" + href + ")")
			} else {
				sb.WriteString(text)
			}
			return
		}
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func absoluteHref(n *html.Node, base string) string {
	for _, a := range n.Attr {
		if a.Key == "href" {
			resolved, err := resolveURL(base, a.Val)
			if err != nil {
				return a.Val
			}
			return resolved
		}
	}
	return ""
}

func resolveURL(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}

var whitespaceRun = regexp.MustCompile(`[ \t]+`)
var blankLineRun = regexp.MustCompile(`\n{3,}`)

// cleanText collapses runs of whitespace per spec.md §4.H while
// preserving paragraph breaks.
func cleanText(s string) string {
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = blankLineRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// cleanCodeText trims surrounding whitespace but keeps internal
// formatting intact — code blocks are never whitespace-collapsed.
func cleanCodeText(s string) string {
	lines := strings.Split(s, "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
