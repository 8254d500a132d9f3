// Package truncate implements priority-based, section-aware
// truncation of a canonical document to fit a token budget, per
// spec.md §4.J. It is grounded in the Python prototype's
// truncation.py DocumentTruncator: heading-delimited section
// detection, per-section priority buckets, and paragraph/sentence/
// word-boundary fallback truncation, generalized here to the five
// named priority tiers and code-fence-safe trimming spec.md adds.
package truncate

import (
	"regexp"
	"strings"

	"github.com/j4ng5y/flutter-docs-mcp-server/internal/tokens"
)

// Priority is one of the five truncation tiers, lowest dropped first.
type Priority int

const (
	Critical Priority = iota
	High
	Medium
	Low
	Minimal
)

// canonicalMembers are the member names spec.md §4.J calls out as
// High priority regardless of which section they appear in.
var canonicalMembers = map[string]bool{
	"build": true, "setState": true, "initState": true, "dispose": true,
	"child": true, "children": true, "onPressed": true,
}

// sectionPriority maps a canonical document's H2 heading to its base
// priority tier.
var sectionPriority = map[string]Priority{
	"description":     Critical,
	"installation":    High,
	"constructors":    High,
	"getting started":  High,
	"properties":      Medium,
	"methods":         Medium,
	"api":             Medium,
	"examples":        Low,
	"changelog":       Minimal,
}

// section is one H2-delimited block of the canonical document.
type section struct {
	heading  string // e.g. "## Constructors"
	body     string
	priority Priority
}

// Result carries the truncated content plus the metadata spec.md
// §4.J's output requires.
type Result struct {
	Content         string
	Truncated       bool
	OriginalTokens  int
	TokenCount      int
	SectionsKept    []string
	SectionsDropped []string
}

var h2Pattern = regexp.MustCompile(`^## (.+)$`)

// Truncate fits content into maxTokens while preserving structure,
// per spec.md §4.J's five-step algorithm.
func Truncate(content string, maxTokens int, tm *tokens.Manager) Result {
	original := tm.Count(content)
	if original <= maxTokens {
		return Result{Content: content, OriginalTokens: original, TokenCount: original}
	}

	title, sections := splitSections(content)
	titleTokens := tm.Count(title)

	dropped := map[string]bool{}
	drop := func(p Priority) {
		for i := range sections {
			if sections[i].priority == p {
				dropped[sections[i].heading] = true
			}
		}
	}

	// Step 3: drop Minimal, recompute; then Low; then reduce Medium
	// proportionally; then trim High descriptions to one line.
	// Critical is never removed.
	for _, tier := range []Priority{Minimal, Low} {
		if fits(title, sections, dropped, maxTokens, tm) {
			break
		}
		drop(tier)
	}

	if !fits(title, sections, dropped, maxTokens, tm) {
		reduceMedium(sections, dropped, maxTokens-titleTokens, tm)
	}

	if !fits(title, sections, dropped, maxTokens, tm) {
		trimHighToOneLine(sections, dropped)
	}

	var kept []string
	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString("\n\n")
	for _, s := range sections {
		if dropped[s.heading] {
			continue
		}
		body := s.body
		if remaining := maxTokens - tm.Count(sb.String()); tm.Count(s.heading+"\n"+body) > remaining && remaining > 0 {
			body = trimToTokenBudget(body, remaining, tm)
		}
		sb.WriteString(s.heading)
		sb.WriteString("\n")
		sb.WriteString(body)
		sb.WriteString("\n\n")
		kept = append(kept, s.heading)
	}

	var droppedList []string
	for _, s := range sections {
		if dropped[s.heading] {
			droppedList = append(droppedList, s.heading)
		}
	}

	sb.WriteString("---\n")
	sb.WriteString("*Truncated to fit the token budget. Shortened: ")
	sb.WriteString(strings.Join(droppedList, ", "))
	sb.WriteString("*\n")

	out := sb.String()
	count := tm.Count(out)
	// Step 3 can overshoot the budget slightly once the footer is
	// appended; if so, rebuild with hardTrimToFit, which keeps the
	// title and footer and cuts the section list where the budget
	// runs out.
	if count > maxTokens && len(kept) > 0 {
		out = hardTrimToFit(title, sections, dropped, droppedList, maxTokens, tm)
		count = tm.Count(out)
	}

	return Result{
		Content:         out,
		Truncated:       true,
		OriginalTokens:  original,
		TokenCount:      count,
		SectionsKept:    kept,
		SectionsDropped: droppedList,
	}
}

func splitSections(content string) (title string, sections []section) {
	lines := strings.Split(content, "\n")
	if len(lines) > 0 && strings.HasPrefix(lines[0], "# ") {
		title = lines[0]
		lines = lines[1:]
	}

	var cur *section
	var curName string
	var body strings.Builder
	flush := func() {
		if cur != nil {
			cur.body = strings.TrimSpace(body.String())
			cur.priority = priorityFor(curName, cur.body)
			sections = append(sections, *cur)
		}
		body.Reset()
	}
	for _, l := range lines {
		if m := h2Pattern.FindStringSubmatch(l); m != nil {
			flush()
			curName = m[1]
			cur = &section{heading: l}
		} else if cur != nil {
			body.WriteString(l)
			body.WriteString("\n")
		}
	}
	flush()
	return title, sections
}

func priorityFor(name, previewBody string) Priority {
	key := strings.ToLower(strings.TrimSpace(name))
	if p, ok := sectionPriority[key]; ok {
		return p
	}
	for member := range canonicalMembers {
		if strings.Contains(previewBody, member) {
			return High
		}
	}
	return Medium
}

func fits(title string, sections []section, dropped map[string]bool, maxTokens int, tm *tokens.Manager) bool {
	return tm.Count(render(title, sections, dropped)) <= maxTokens
}

func render(title string, sections []section, dropped map[string]bool) string {
	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString("\n\n")
	for _, s := range sections {
		if dropped[s.heading] {
			continue
		}
		sb.WriteString(s.heading)
		sb.WriteString("\n")
		sb.WriteString(s.body)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// reduceMedium keeps only the first N Medium-priority sections whose
// combined tokens fit budget, dropping the rest.
func reduceMedium(sections []section, dropped map[string]bool, budget int, tm *tokens.Manager) {
	used := 0
	for i := range sections {
		if sections[i].priority != Medium || dropped[sections[i].heading] {
			continue
		}
		cost := tm.Count(sections[i].body)
		if used+cost > budget {
			dropped[sections[i].heading] = true
			continue
		}
		used += cost
	}
}

var sentenceBoundary = regexp.MustCompile(`\. `)

// trimHighToOneLine cuts every High-priority section's body down to
// its first sentence, per spec.md §4.J step 3's final fallback.
func trimHighToOneLine(sections []section, dropped map[string]bool) {
	for i := range sections {
		if sections[i].priority != High || dropped[sections[i].heading] {
			continue
		}
		loc := sentenceBoundary.FindStringIndex(sections[i].body)
		if loc != nil {
			sections[i].body = sections[i].body[:loc[0]+1]
		}
	}
}

// trimToTokenBudget cuts body to fit within budget tokens, respecting
// code-fence boundaries per spec.md §4.J step 4: cut on line
// boundaries only, close dangling braces/brackets, append "// …" on
// truncated lines, and re-close any open ``` fence.
func trimToTokenBudget(body string, budget int, tm *tokens.Manager) string {
	if budget <= 0 {
		return ""
	}
	lines := strings.Split(body, "\n")
	var kept []string
	inFence := false
	var closers []string
	for _, line := range lines {
		candidate := append(append([]string{}, kept...), line)
		if tm.Count(strings.Join(candidate, "\n")) > budget {
			break
		}
		kept = append(kept, line)
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
		}
		for _, r := range line {
			switch r {
			case '{':
				closers = append(closers, "}")
			case '[':
				closers = append(closers, "]")
			case '}', ']':
				if len(closers) > 0 {
					closers = closers[:len(closers)-1]
				}
			}
		}
	}

	if len(kept) < len(lines) && len(kept) > 0 {
		kept[len(kept)-1] = kept[len(kept)-1] + " // …"
	}

	if inFence {
		for i := len(closers) - 1; i >= 0; i-- {
			kept = append(kept, closers[i])
		}
		kept = append(kept, "```")
	}

	return strings.Join(kept, "\n")
}

// hardTrimToFit is a last-resort pass for when the assembled footer
// pushed the total over budget: it rebuilds the output from the kept
// sections in order, trims the first section that no longer fits
// (whatever its priority, Critical included) and omits every section
// after it.
func hardTrimToFit(title string, sections []section, dropped map[string]bool, droppedList []string, maxTokens int, tm *tokens.Manager) string {
	footer := "---\n*Truncated to fit the token budget. Shortened: " + strings.Join(droppedList, ", ") + "*\n"
	budget := maxTokens - tm.Count(title+"\n\n"+footer)

	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString("\n\n")
	used := 0
	for _, s := range sections {
		if dropped[s.heading] {
			continue
		}
		cost := tm.Count(s.heading + "\n" + s.body + "\n\n")
		if used+cost > budget {
			remaining := budget - used - tm.Count(s.heading+"\n\n")
			if remaining > 0 {
				sb.WriteString(s.heading)
				sb.WriteString("\n")
				sb.WriteString(trimToTokenBudget(s.body, remaining, tm))
				sb.WriteString("\n\n")
			}
			break
		}
		sb.WriteString(s.heading)
		sb.WriteString("\n")
		sb.WriteString(s.body)
		sb.WriteString("\n\n")
		used += cost
	}
	sb.WriteString(footer)
	return sb.String()
}
