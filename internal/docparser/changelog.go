package docparser

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// parseChangelogMarkdown splits a CHANGELOG.md body into per-version
// entries keyed by their H2/H1 heading text (typically the version
// number), newest first, bounded by the caller to the last 3 per
// spec.md §4.H. Grounded on the teacher's markdown.go goldmark parse
// tree walk, generalized from title extraction to heading-delimited
// section splitting.
func parseChangelogMarkdown(body []byte) []string {
	md := goldmark.New()
	source := text.NewReader(body)
	doc := md.Parser().Parse(source)

	var entries []string
	var currentHeading string
	var currentBody strings.Builder

	flush := func() {
		if currentHeading == "" {
			return
		}
		entry := "### " + currentHeading
		if b := strings.TrimSpace(currentBody.String()); b != "" {
			entry += "\n" + b
		}
		entries = append(entries, entry)
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

	return entries
}

func headingText(h *ast.Heading, source []byte) string {
	var sb strings.Builder
	for c := h.FirstChild(); c != nil; c = c.NextSibling() {
		sb.Write(nodeLines(c, source))
	}
	return strings.TrimSpace(sb.String())
}

func nodeText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(source))
		}
	}
	return buf.String()
}

func nodeLines(n ast.Node, source []byte) []byte {
	if seg, ok := n.(*ast.Text); ok {
		return seg.Segment.Value(source)
	}
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		buf.Write(nodeLines(c, source))
	}
	return buf.Bytes()
}
