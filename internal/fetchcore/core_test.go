package fetchcore

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/j4ng5y/flutter-docs-mcp-server/internal/apierrors"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/breaker"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/cachestore"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/httpclient"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/model"
)

func TestValidateRequestRejectsEmptyIdentifier(t *testing.T) {
	err := validateRequest(model.DocRequest{})
	if err == nil {
		t.Fatal("expected error for empty identifier")
	}
	var apiErr *apierrors.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != apierrors.InvalidInput {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestValidateRequestRejectsUnknownTopic(t *testing.T) {
	err := validateRequest(model.DocRequest{Identifier: "Container", Topic: "bogus"})
	if err == nil {
		t.Fatal("expected error for unknown topic")
	}
}

func TestValidateRequestRejectsSmallMaxTokens(t *testing.T) {
	err := validateRequest(model.DocRequest{Identifier: "Container", MaxTokens: 100})
	if err == nil {
		t.Fatal("expected error for max_tokens below minimum")
	}
}

func TestValidateRequestAcceptsGoodRequest(t *testing.T) {
	err := validateRequest(model.DocRequest{Identifier: "Container", MaxTokens: 10_000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDocsDefaultsMaxTokensWhenUnset(t *testing.T) {
	dir := t.TempDir()
	store, err := cachestore.Open(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatalf("cachestore.Open: %v", err)
	}
	defer store.Close()

	core := New(store, httpclient.DefaultPolicy(), Limits{}, zerolog.Nop())
	longContent := strings.Repeat("word ", 20_000)
	doc := model.Document{
		CanonicalID: "flutter_class:widgets.Container",
		Content:     longContent,
		TokenCount:  core.Tokens.Count(longContent),
		Source:      "live",
		FetchedAt:   time.Now().UnixMilli(),
		TTLMillis:   model.TTLAPIDocsMillis,
	}
	if err := store.Put(context.Background(), doc); err != nil {
		t.Fatalf("cache seed failed: %v", err)
	}

	got, err := core.Docs(context.Background(), model.DocRequest{Identifier: "widgets.Container"})
	if err != nil {
		t.Fatalf("Docs: %v", err)
	}
	if got.TokenCount == 0 {
		t.Fatal("expected a non-empty document when max_tokens is left unset")
	}
	if got.TokenCount > defaultMaxTokens {
		t.Errorf("expected result truncated to the default budget, got %d tokens", got.TokenCount)
	}
}

func TestOwnerRepoFromHomepageAcceptsGitHubURLsOnly(t *testing.T) {
	cases := []struct {
		homepage  string
		wantOwner string
		wantRepo  string
		wantOK    bool
	}{
		{"https://github.com/rrousselGit/provider", "rrousselGit", "provider", true},
		{"https://github.com/rrousselGit/provider.git", "rrousselGit", "provider", true},
		{"https://pub.dev/packages/provider", "", "", false},
		{"not a url", "", "", false},
		{"https://github.com/onlyowner", "", "", false},
	}
	for _, tc := range cases {
		owner, repo, ok := ownerRepoFromHomepage(tc.homepage)
		if ok != tc.wantOK || owner != tc.wantOwner || repo != tc.wantRepo {
			t.Errorf("ownerRepoFromHomepage(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tc.homepage, owner, repo, ok, tc.wantOwner, tc.wantRepo, tc.wantOK)
		}
	}
}

func TestNewGitHubReadmeFetcherNilWithoutToken(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	if f := newGitHubReadmeFetcher(); f != nil {
		t.Error("expected nil fetcher when GITHUB_TOKEN is unset")
	}
}

func TestNewThreadsLimitsIntoBreakerRegistry(t *testing.T) {
	dir := t.TempDir()
	store, err := cachestore.Open(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatalf("cachestore.Open: %v", err)
	}
	defer store.Close()

	core := New(store, httpclient.DefaultPolicy(), Limits{FailureThreshold: 1}, zerolog.Nop())
	core.Breakers.RecordFailure("pub.dev")
	if got := core.Breakers.State("pub.dev"); got != breaker.Open {
		t.Errorf("State() = %v, want Open after a single failure with FailureThreshold=1", got)
	}
}

func TestTTLForDistinguishesPackagesFromClasses(t *testing.T) {
	if ttlFor(model.KindPubPackage) != model.TTLPackageMillis {
		t.Errorf("expected package TTL")
	}
	if ttlFor(model.KindFlutterClass) != model.TTLAPIDocsMillis {
		t.Errorf("expected api docs TTL")
	}
}

func TestVersionListRoundTrip(t *testing.T) {
	versions := []model.SemVer{
		{Major: 1, Minor: 0, Patch: 0},
		{Major: 2, Minor: 3, Patch: 4, Prerelease: "beta.1"},
	}
	encoded := encodeVersionList(versions)
	decoded := decodeVersionList(encoded)
	if len(decoded) != len(versions) {
		t.Fatalf("expected %d versions, got %d", len(versions), len(decoded))
	}
	if decoded[1].Prerelease != "beta.1" {
		t.Errorf("prerelease lost in round trip: %+v", decoded[1])
	}
}

func TestClosestVersionsCapsAndSorts(t *testing.T) {
	var versions []model.SemVer
	for i := 0; i < 20; i++ {
		versions = append(versions, model.SemVer{Major: 1, Minor: i, Patch: 0})
	}
	closest := closestVersions(versions, 10)
	if len(closest) != 10 {
		t.Fatalf("expected 10 versions, got %d", len(closest))
	}
	if closest[0].Minor != 19 {
		t.Errorf("expected highest version first, got %+v", closest[0])
	}
}

func TestClassifyFetchErrorMapsStatusCodes(t *testing.T) {
	cases := []struct {
		err  error
		want apierrors.Kind
	}{
		{&httpclient.StatusError{URL: "u", Status: 404}, apierrors.NotFound},
		{&httpclient.ServerError{URL: "u", Status: 502}, apierrors.UpstreamServerError},
		{&httpclient.RateLimitedError{URL: "u"}, apierrors.RateLimited},
		{breaker.ErrOpen, apierrors.UpstreamServerError},
		{errors.New("boom"), apierrors.Network},
	}
	for _, tc := range cases {
		got := classifyFetchError(tc.err, "u")
		var apiErr *apierrors.Error
		if !errors.As(got, &apiErr) {
			t.Fatalf("expected *apierrors.Error for %v", tc.err)
		}
		if apiErr.Kind != tc.want {
			t.Errorf("for %v: want %v, got %v", tc.err, tc.want, apiErr.Kind)
		}
	}
}
