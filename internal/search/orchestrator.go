// Package search implements the multi-source search orchestrator (spec.md
// §4.K): parallel fan-out across the Flutter API catalog, the Dart API
// catalog, the live pub.dev search endpoint, and the local curated concept
// map, followed by a uniform lexical scoring pass, de-duplication by
// canonical_id, and partial-failure tolerance.
//
// Grounded on the teacher's internal/search/orchestrator.go
// (classify-then-fan-out-then-merge-then-sort shape, generalized here from
// three NATS sources fanned out sequentially to four independent sources
// fanned out concurrently with per-source timeouts).
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/j4ng5y/flutter-docs-mcp-server/internal/httpclient"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/index"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/model"
)

const perSourceTimeout = 3 * time.Second

type sourceName string

const (
	sourceFlutter  sourceName = "flutter"
	sourceDart     sourceName = "dart"
	sourcePub      sourceName = "pub"
	sourceConcepts sourceName = "concepts"
)

// sourcePriority weights a source's raw lexical score, per spec.md §4.K.
var sourcePriority = map[sourceName]float64{
	sourceFlutter:  1.0,
	sourcePub:      0.9,
	sourceDart:     0.8,
	sourceConcepts: 0.7,
}

// candidateResult is an unscored hit a source contributes; Orchestrator applies the
// uniform lexical scorer across every source's candidates so results from
// different sources are comparable.
type candidateResult struct {
	ID          string
	Kind        model.Kind
	Title       string
	Description string
	Tokens      []string
}

// Result is the search tool's output shape (spec.md §6 `search`).
type Result struct {
	Results       []model.SearchResult
	Partial       bool
	FailedSources []string
	TotalFound    int
}

// Orchestrator fans a query out across all four sources and merges the
// results. It holds no per-request state; a single instance is safe to reuse
// (and share) across concurrent Search calls.
type Orchestrator struct {
	http         *httpclient.Client
	concepts     *index.ConceptMap
	pubSearchURL string // overridable in tests; defaults to the real pub.dev endpoint
}

const defaultPubSearchURL = "https://pub.dev/api/search"

// NewOrchestrator builds an Orchestrator. concepts may be nil, in which case
// the concepts source is skipped entirely rather than reported as failed
// (there is nothing to fail — it was never wired).
func NewOrchestrator(httpClient *httpclient.Client, concepts *index.ConceptMap) *Orchestrator {
	return &Orchestrator{http: httpClient, concepts: concepts, pubSearchURL: defaultPubSearchURL}
}

// Search runs the fan-out-score-merge pipeline for query, returning up to
// limit results sorted by descending score with a stable canonical_id
// tie-break, per spec.md §4.K.
func (o *Orchestrator) Search(ctx context.Context, query string, limit int) (Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, fmt.Errorf("search: query cannot be empty")
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > 30 {
		limit = 30
	}

	type sourceOutcome struct {
		name       sourceName
		candidates []candidateResult
		err        error
	}

	fns := []struct {
		name sourceName
		fn   func(context.Context, string) ([]candidateResult, error)
	}{
		{sourceFlutter, o.searchFlutterCatalog},
		{sourceDart, o.searchDartCatalog},
		{sourcePub, o.searchPubDev},
	}
	if o.concepts != nil {
		fns = append(fns, struct {
			name sourceName
			fn   func(context.Context, string) ([]candidateResult, error)
		}{sourceConcepts, o.searchConcepts})
	}

	outcomes := make(chan sourceOutcome, len(fns))
	var wg sync.WaitGroup
	for _, s := range fns {
		wg.Add(1)
		go func(name sourceName, fn func(context.Context, string) ([]candidateResult, error)) {
			defer wg.Done()
			sctx, cancel := context.WithTimeout(ctx, perSourceTimeout)
			defer cancel()
			cands, err := fn(sctx, query)
			outcomes <- sourceOutcome{name: name, candidates: cands, err: err}
		}(s.name, s.fn)
	}
	wg.Wait()
	close(outcomes)

	best := make(map[string]model.SearchResult)
	var failed []string
	succeeded := 0
	for oc := range outcomes {
		if oc.err != nil {
			failed = append(failed, string(oc.name))
			continue
		}
		succeeded++
		weight := sourcePriority[oc.name]
		for _, c := range oc.candidates {
			score := weight * lexicalScore(query, c.Tokens)
			if score <= 0 {
				continue
			}
			if cur, ok := best[c.ID]; !ok || score > cur.Relevance {
				best[c.ID] = model.SearchResult{
					ID:          c.ID,
					Kind:        c.Kind,
					Title:       c.Title,
					Description: c.Description,
					Relevance:   score,
					DocSize:     model.ClassifyDocSize(candidateTokenCount(c)),
				}
			}
		}
	}

	if succeeded == 0 {
		return Result{}, fmt.Errorf("search: all sources failed: %v", failed)
	}

	merged := make([]model.SearchResult, 0, len(best))
	for _, v := range best {
		merged = append(merged, v)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Relevance != merged[j].Relevance {
			return merged[i].Relevance > merged[j].Relevance
		}
		return merged[i].ID < merged[j].ID
	})

	total := len(merged)
	if len(merged) > limit {
		merged = merged[:limit]
	}

	sort.Strings(failed)
	return Result{
		Results:       merged,
		Partial:       len(failed) > 0,
		FailedSources: failed,
		TotalFound:    total,
	}, nil
}

// candidateTokenCount approximates how much content is actually known about
// a candidate at search time (search never fetches the full document), by
// counting words across its title/library/description tokens. DocSize is
// therefore a preview signal, not a promise about the eventual docs()
// fetch's real size.
func candidateTokenCount(c candidateResult) int {
	n := 0
	for _, t := range c.Tokens {
		n += len(strings.Fields(t))
	}
	return n
}

func (o *Orchestrator) searchFlutterCatalog(_ context.Context, _ string) ([]candidateResult, error) {
	out := make([]candidateResult, 0, len(flutterCatalog))
	for _, e := range flutterCatalog {
		out = append(out, candidateResult{
			ID:          "flutter_class:" + e.Library + "." + e.Name,
			Kind:        model.KindFlutterClass,
			Title:       e.Name + " (" + e.Library + ")",
			Description: e.Description,
			Tokens:      []string{e.Name, e.Library, e.Description},
		})
	}
	return out, nil
}

func (o *Orchestrator) searchDartCatalog(_ context.Context, _ string) ([]candidateResult, error) {
	out := make([]candidateResult, 0, len(dartCatalog))
	for _, e := range dartCatalog {
		out = append(out, candidateResult{
			ID:          "dart_class:" + e.Library + "." + e.Name,
			Kind:        model.KindDartClass,
			Title:       e.Name + " (" + e.Library + ")",
			Description: e.Description,
			Tokens:      []string{e.Name, e.Library, e.Description},
		})
	}
	return out, nil
}

func (o *Orchestrator) searchConcepts(_ context.Context, query string) ([]candidateResult, error) {
	matches, err := o.concepts.Match(query, 10)
	if err != nil {
		return nil, err
	}
	out := make([]candidateResult, 0, len(matches))
	for _, m := range matches {
		out = append(out, candidateResult{
			ID:          m.ID,
			Kind:        m.Kind,
			Title:       m.Title,
			Description: m.Description,
			Tokens:      m.Tokens,
		})
	}
	return out, nil
}

type pubSearchResponse struct {
	Packages []struct {
		Package string `json:"package"`
	} `json:"packages"`
}

// searchPubDev queries pub.dev's own package search endpoint, the live
// "pub.dev search endpoint" source named in spec.md §4.K, rather than the
// Python prototype's hard-coded popular_packages table.
func (o *Orchestrator) searchPubDev(ctx context.Context, query string) ([]candidateResult, error) {
	if o.http == nil {
		return nil, fmt.Errorf("search: pub.dev source not configured")
	}
	reqURL := o.pubSearchURL + "?q=" + url.QueryEscape(query)
	body, err := o.http.Get(ctx, reqURL, "search:pub:"+query)
	if err != nil {
		return nil, fmt.Errorf("search: pub.dev: %w", err)
	}

	var resp pubSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("search: pub.dev: decoding response: %w", err)
	}

	out := make([]candidateResult, 0, len(resp.Packages))
	for _, p := range resp.Packages {
		if p.Package == "" {
			continue
		}
		out = append(out, candidateResult{
			ID:     "pub_package:" + p.Package,
			Kind:   model.KindPubPackage,
			Title:  p.Package,
			Tokens: []string{p.Package},
		})
	}
	return out, nil
}
