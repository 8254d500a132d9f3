package truncate

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/j4ng5y/flutter-docs-mcp-server/internal/tokens"
)

func bigDoc() string {
	var sb strings.Builder
	sb.WriteString("# ListView\n\n")
	sb.WriteString("## Description\nA scrollable list of widgets arranged linearly.\n\n")
	sb.WriteString("## Constructors\n### ListView({Key? key})\n```dart\nWidget build(BuildContext context)\n```\nCreates a list view.\n\n")
	sb.WriteString("## Properties\n")
	for i := 0; i < 40; i++ {
		sb.WriteString("### property")
		sb.WriteString(strings.Repeat("x", 1))
		sb.WriteString("\nA property with a fairly long description that repeats many times to inflate token count substantially across many lines of prose.\n\n")
	}
	sb.WriteString("## Methods\n### build method\n```dart\nWidget build(BuildContext context)\n```\nDescribes the interface part.\n\n")
	sb.WriteString("## Examples\n#### Example 1\n```dart\nListView(children: [Text('a')])\n```\n\n")
	sb.WriteString("## Changelog\n### 1.2.0\nBug fixes.\n")
	return sb.String()
}

func TestTruncateUnderBudgetReturnsUnchanged(t *testing.T) {
	tm := tokens.NewManager(nil)
	content := "# Small\n\n## Description\nShort.\n"
	res := Truncate(content, 10_000, tm)
	if res.Truncated {
		t.Fatalf("expected no truncation for small doc")
	}
	if res.Content != content {
		t.Fatalf("content mutated when under budget")
	}
}

func TestTruncateRespectsBudget(t *testing.T) {
	tm := tokens.NewManager(nil)
	content := bigDoc()
	original := tm.Count(content)
	if original < 800 {
		t.Fatalf("test fixture too small to exercise truncation: %d tokens", original)
	}

	res := Truncate(content, 500, tm)
	if !res.Truncated {
		t.Fatalf("expected truncation")
	}
	if res.TokenCount > 500 {
		t.Fatalf("token count %d exceeds budget 500", res.TokenCount)
	}
	if res.OriginalTokens <= 500 {
		t.Fatalf("expected original tokens > budget, got %d", res.OriginalTokens)
	}
	if !strings.HasPrefix(res.Content, "# ListView") {
		t.Fatalf("truncated content lost title: %q", res.Content[:min(40, len(res.Content))])
	}
	if !strings.Contains(res.Content, "## Description") {
		t.Fatalf("truncated content dropped Critical description section")
	}
}

func TestTruncateEscalatesUnknownSectionContainingCanonicalMember(t *testing.T) {
	tm := tokens.NewManager(nil)
	content := "# Widget\n\n" +
		"## Description\nA widget.\n\n" +
		"## Lifecycle\nOverrides build to render its subtree. It also calls setState when data changes, " +
		"then repeats filler words to make this paragraph long enough to blow well past any small token " +
		"budget so the truncation logic actually engages for this test case with plenty of extra padding " +
		"text sprinkled throughout to be safe.\n\n"

	res := Truncate(content, 40, tm)
	if !res.Truncated {
		t.Fatalf("expected truncation")
	}
	if !strings.Contains(res.Content, "## Lifecycle") {
		t.Fatalf("expected the Lifecycle section (unknown heading, body mentions build/setState) to survive as High priority, got:\n%s", res.Content)
	}
	if !strings.Contains(res.Content, "build") {
		t.Errorf("expected the build method mention to survive truncation, got:\n%s", res.Content)
	}
}

func TestTruncateRetainsBuildMethodSignatureAtTightBudget(t *testing.T) {
	tm := tokens.NewManager(nil)
	content := bigDoc()

	res := Truncate(content, 300, tm)
	if !res.Truncated {
		t.Fatalf("expected truncation")
	}
	if !strings.Contains(res.Content, "## Methods") {
		t.Fatalf("expected Methods section to survive a tight budget, got:\n%s", res.Content)
	}
	if !strings.Contains(res.Content, "Widget build(BuildContext context)") {
		t.Errorf("expected the build method signature to survive truncation, got:\n%s", res.Content)
	}
}

func TestTruncateClosesDanglingCodeFence(t *testing.T) {
	tm := tokens.NewManager(nil)
	content := "# X\n\n## Description\nD.\n\n## Methods\n```dart\nvoid f() {\n  if (true) {\n    doSomething();\n  }\n}\n```\n"
	res := Truncate(content, 20, tm)
	openFences := strings.Count(res.Content, "```")
	if openFences%2 != 0 {
		t.Fatalf("dangling code fence left open: %q", res.Content)
	}
}

// syntheticDoc builds a heading-delimited document whose section sizes
// vary with wordCounts, one entry per heading in order, so the property
// test below can drive truncation across a wide range of shapes.
func syntheticDoc(wordCounts []int) string {
	headings := []string{"## Description", "## Installation", "## Properties", "## Examples", "## Changelog"}
	var sb strings.Builder
	sb.WriteString("# Widget\n\n")
	for i, h := range headings {
		sb.WriteString(h)
		sb.WriteString("\n")
		if h == "## Examples" {
			sb.WriteString("```dart\n")
			sb.WriteString(strings.Repeat("line ", wordCounts[i]))
			sb.WriteString("\n```\n")
		} else {
			sb.WriteString(strings.Repeat("word ", wordCounts[i]))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// TestPropertyTruncateRespectsBudgetAndFenceBalance generalizes
// TestTruncateRespectsBudget and TestTruncateClosesDanglingCodeFence:
// whatever the section sizes and requested budget, the truncated output
// must never exceed the budget and must never leave a code fence open.
func TestPropertyTruncateRespectsBudgetAndFenceBalance(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)
	tm := tokens.NewManager(nil)

	properties.Property("Truncate output stays within budget and never leaves a code fence open",
		prop.ForAll(
			func(wordCounts []int, maxTokens int) bool {
				content := syntheticDoc(wordCounts)
				res := Truncate(content, maxTokens, tm)

				if res.TokenCount > maxTokens {
					t.Logf("TokenCount %d exceeds budget %d for wordCounts=%v", res.TokenCount, maxTokens, wordCounts)
					return false
				}
				if strings.Count(res.Content, "```")%2 != 0 {
					t.Logf("dangling code fence for maxTokens=%d wordCounts=%v:\n%s", maxTokens, wordCounts, res.Content)
					return false
				}
				return true
			},
			gen.SliceOfN(5, gen.IntRange(20, 200)),
			gen.IntRange(150, 600),
		))

	properties.TestingRun(t)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
