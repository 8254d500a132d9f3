package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/j4ng5y/flutter-docs-mcp-server/internal/breaker"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/httpclient"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/index"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/ratelimit"
)

func newTestOrchestrator(t *testing.T, pubBody string, pubStatus int) *Orchestrator {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(pubStatus)
		w.Write([]byte(pubBody))
	}))
	t.Cleanup(srv.Close)

	policy := httpclient.DefaultPolicy()
	policy.MaxRetries = 0
	client := httpclient.New(policy, ratelimit.NewRegistry(), breaker.NewRegistry(), zerolog.Nop())

	cm, err := index.NewConceptMap()
	if err != nil {
		t.Fatalf("NewConceptMap: %v", err)
	}
	t.Cleanup(func() { cm.Close() })

	o := NewOrchestrator(client, cm)
	o.pubSearchURL = srv.URL
	return o
}

func TestSearchExactMatchScoresHighest(t *testing.T) {
	o := newTestOrchestrator(t, `{"packages":[]}`, http.StatusOK)
	result, err := o.Search(context.Background(), "Container", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(result.Results) == 0 {
		t.Fatal("expected at least one result")
	}
	top := result.Results[0]
	if !strings.Contains(top.Title, "Container") {
		t.Errorf("expected Container to rank first, got %+v", top)
	}
	if top.Relevance != 1.0 {
		t.Errorf("expected exact match score 1.0, got %v", top.Relevance)
	}
}

func TestSearchDeduplicatesByCanonicalID(t *testing.T) {
	o := newTestOrchestrator(t, `{"packages":[]}`, http.StatusOK)
	result, err := o.Search(context.Background(), "state management", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	seen := make(map[string]bool)
	for _, r := range result.Results {
		if seen[r.ID] {
			t.Errorf("duplicate canonical_id in results: %s", r.ID)
		}
		seen[r.ID] = true
	}
}

func TestSearchRespectsLimit(t *testing.T) {
	o := newTestOrchestrator(t, `{"packages":[]}`, http.StatusOK)
	result, err := o.Search(context.Background(), "a", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(result.Results) > 3 {
		t.Errorf("expected at most 3 results, got %d", len(result.Results))
	}
}

func TestSearchEmptyQueryErrors(t *testing.T) {
	o := newTestOrchestrator(t, `{"packages":[]}`, http.StatusOK)
	if _, err := o.Search(context.Background(), "   ", 10); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestCandidateTokenCountVariesWithContent(t *testing.T) {
	sparse := candidateResult{Tokens: []string{"provider"}}
	rich := candidateResult{Tokens: []string{"Container", "widgets", strings.Repeat("word ", 600)}}
	if got := candidateTokenCount(sparse); got != 1 {
		t.Errorf("candidateTokenCount(sparse) = %d, want 1", got)
	}
	if got := candidateTokenCount(rich); got < 600 {
		t.Errorf("candidateTokenCount(rich) = %d, want >= 600", got)
	}
}

func TestSearchResultDocSizeReflectsCandidateContent(t *testing.T) {
	o := newTestOrchestrator(t, `{"packages":[]}`, http.StatusOK)
	result, err := o.Search(context.Background(), "Container", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range result.Results {
		if r.ID == "flutter_class:widgets.Container" {
			if r.DocSize == "" {
				t.Errorf("expected a non-empty DocSize, got %+v", r)
			}
			return
		}
	}
	t.Fatal("expected Container in results")
}

func TestSearchTimeoutIsBoundedPerSource(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(4 * time.Second)
		w.Write([]byte(`{"packages":[]}`))
	}))
	defer slow.Close()

	policy := httpclient.DefaultPolicy()
	policy.MaxRetries = 0
	client := httpclient.New(policy, ratelimit.NewRegistry(), breaker.NewRegistry(), zerolog.Nop())
	cm, err := index.NewConceptMap()
	if err != nil {
		t.Fatalf("NewConceptMap: %v", err)
	}
	defer cm.Close()

	o := NewOrchestrator(client, cm)
	o.pubSearchURL = slow.URL
	start := time.Now()
	result, err := o.Search(context.Background(), "Container", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if time.Since(start) > 3500*time.Millisecond {
		t.Errorf("expected search to return within the per-source timeout, took %v", time.Since(start))
	}
	if !result.Partial {
		t.Error("expected partial=true when the pub.dev source is unreachable in time")
	}
}
