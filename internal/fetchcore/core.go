// Package fetchcore assembles the rate limiter, circuit breaker, HTTP
// client, single-flight group, cache store, identifier resolver,
// version resolver, document parser, token manager, and truncator
// into the single Core handle spec.md §5 and §9 call for: one
// constructed instance threaded through every operation, no
// process-wide singletons leaking across tests. It implements the
// Fetch FSM of spec.md §4.L (Idle -> Resolving -> Limited ->
// Requesting -> Parsing -> Counting -> Writing -> Done).
package fetchcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/j4ng5y/flutter-docs-mcp-server/internal/apierrors"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/breaker"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/cachestore"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/docparser"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/httpclient"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/model"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/ratelimit"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/resolver"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/singleflight"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/tokens"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/truncate"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/version"
)

// fetchState names the Fetch FSM states of spec.md §4.L, logged at
// each transition for observability.
type fetchState string

const (
	stateIdle       fetchState = "idle"
	stateResolving  fetchState = "resolving"
	stateLimited    fetchState = "limited"
	stateRequesting fetchState = "requesting"
	stateParsing    fetchState = "parsing"
	stateCounting   fetchState = "counting"
	stateWriting    fetchState = "writing"
	stateDone       fetchState = "done"
)

// defaultMaxTokens is the docs() tool's default output budget, per spec.md
// §6 (`max_tokens?: int (default 10000, min 500)`).
const defaultMaxTokens = 10_000

// Core is the fetch-process-cache core: every stateful component of
// spec.md §2's components A-J, constructed once and shared.
type Core struct {
	Limiters *ratelimit.Registry
	Breakers *breaker.Registry
	HTTP     *httpclient.Client
	Cache    *cachestore.Store
	Versions *version.Resolver
	Tokens   *tokens.Manager

	sf        singleflight.Group
	log       zerolog.Logger
	startedAt time.Time
	github    *githubReadmeFetcher
}

// Limits carries the runtime-overridable rate limiter and circuit
// breaker settings spec.md §6 documents as environment variables
// (REQUESTS_PER_SECOND, FAILURE_THRESHOLD, RECOVERY_TIMEOUT). A zero
// value in any field falls back to that component's spec.md default.
type Limits struct {
	RequestsPerSecond float64
	FailureThreshold  int
	RecoveryTimeout   time.Duration
}

// New builds a Core over an already-open cache store. Callers own the
// store's lifetime (open/close) so tests can point Core at an
// in-memory database.
func New(cache *cachestore.Store, policy httpclient.Policy, limits Limits, log zerolog.Logger) *Core {
	limiters := ratelimit.NewRegistryWithRate(limits.RequestsPerSecond)
	breakers := breaker.NewRegistryWithDefaults(limits.FailureThreshold, limits.RecoveryTimeout)
	return &Core{
		Limiters:  limiters,
		Breakers:  breakers,
		HTTP:      httpclient.New(policy, limiters, breakers, log),
		Cache:     cache,
		Versions:  version.NewResolver(),
		Tokens:    tokens.NewManager(nil),
		log:       log,
		startedAt: time.Now(),
		github:    newGitHubReadmeFetcher(),
	}
}

// UptimeMillis reports milliseconds since Core construction, for the
// status tool.
func (c *Core) UptimeMillis() int64 { return time.Since(c.startedAt).Milliseconds() }

// Docs runs the full Fetch FSM for req and returns the final,
// topic-filtered, truncated document.
func (c *Core) Docs(ctx context.Context, req model.DocRequest) (model.Document, error) {
	if err := validateRequest(req); err != nil {
		return model.Document{}, err
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = defaultMaxTokens
	}

	c.transition(stateResolving, req.Identifier)
	resolved, err := resolver.Resolve(req.Identifier)
	if err != nil {
		return model.Document{}, apierrors.Wrap(apierrors.InvalidInput, "could not classify identifier", err).
			WithSuggestions(apierrors.GenericSuggestions(apierrors.InvalidInput)...)
	}

	if resolved.Kind == model.KindPubPackage && !resolved.VersionSpec.IsZero() {
		resolved, err = c.resolvePackageVersion(ctx, resolved)
		if err != nil {
			return model.Document{}, err
		}
	}

	canonicalID := resolved.CanonicalID()

	v, err, _ := c.sf.Do(canonicalID, func() (interface{}, error) {
		return c.fetchAndCache(ctx, resolved, canonicalID)
	})
	if err != nil {
		return model.Document{}, err
	}
	doc := v.(model.Document)

	return c.finalize(doc, req), nil
}

// resolvePackageVersion runs spec.md §4.F's resolution: fetch the
// published versions list (cached 1h), filter by the caller's
// constraint, and rebuild the identifier's VersionSpec as the
// concrete resolved version so its canonical_id is stable.
func (c *Core) resolvePackageVersion(ctx context.Context, resolved model.ResolvedIdentifier) (model.ResolvedIdentifier, error) {
	versionsKey := "versions:" + resolved.Name
	var published []model.SemVer

	if cached, ok, _ := c.Cache.Get(ctx, versionsKey); ok {
		published = decodeVersionList(cached.Content)
	} else {
		url, err := resolver.VersionsURLFor(resolved)
		if err != nil {
			return model.ResolvedIdentifier{}, apierrors.Wrap(apierrors.InvalidInput, "cannot derive versions URL", err)
		}
		body, err := c.HTTP.Get(ctx, url, "versions:"+resolved.Name)
		if err != nil {
			return model.ResolvedIdentifier{}, classifyFetchError(err, url)
		}
		meta, err := docparser.ParsePubMetadata(body)
		if err != nil {
			return model.ResolvedIdentifier{}, apierrors.Wrap(apierrors.InvalidInput, "malformed pub.dev metadata", err)
		}
		for _, raw := range meta.PublishedVersions() {
			if sv, err := version.ParseSemVer(raw); err == nil {
				published = append(published, sv)
			}
		}
		encoded := encodeVersionList(published)
		_ = c.Cache.Put(ctx, model.Document{
			CanonicalID: versionsKey,
			Content:     encoded,
			TokenCount:  c.Tokens.Count(encoded),
			Source:      "live",
			SourceURL:   url,
			FetchedAt:   time.Now().UnixMilli(),
			TTLMillis:   model.TTLVersionsMillis,
		})
	}

	resolvedVersion, err := c.Versions.Resolve(published, resolved.VersionSpec)
	if err != nil {
		closest := closestVersions(published, 10)
		suggestions := make([]string, 0, len(closest))
		for _, v := range closest {
			suggestions = append(suggestions, v.String())
		}
		return model.ResolvedIdentifier{}, apierrors.Wrap(apierrors.VersionNotSatisfiable, err.Error(), err).
			WithSuggestions(suggestions...)
	}

	resolved.VersionSpec = model.VersionSpec{Kind: model.VersionExact, Exact: resolvedVersion}.WithRaw(resolvedVersion.String())
	return resolved, nil
}

// fetchAndCache is the single-flight leader body: cache lookup, then
// (on miss) the full rate-limited/circuit-broken/parsed live fetch
// and write-back. It never returns a cached Failed state per spec.md
// §4.L: errors are never written to the cache.
func (c *Core) fetchAndCache(ctx context.Context, resolved model.ResolvedIdentifier, canonicalID string) (model.Document, error) {
	if cached, ok, err := c.Cache.Get(ctx, canonicalID); err != nil {
		c.log.Warn().Err(err).Str("canonical_id", canonicalID).Msg("cache read failed, continuing live")
	} else if ok {
		return cached, nil
	}

	c.transition(stateLimited, canonicalID)
	c.transition(stateRequesting, canonicalID)

	content, sourceURL, err := c.fetchLive(ctx, resolved)
	if err != nil {
		return model.Document{}, err
	}

	c.transition(stateParsing, canonicalID)
	c.transition(stateCounting, canonicalID)
	tokenCount := c.Tokens.Count(content)

	doc := model.Document{
		CanonicalID: canonicalID,
		Content:     content,
		TokenCount:  tokenCount,
		Source:      "live",
		SourceURL:   sourceURL,
		FetchedAt:   time.Now().UnixMilli(),
		TTLMillis:   ttlFor(resolved.Kind),
	}

	c.transition(stateWriting, canonicalID)
	if err := c.Cache.Put(ctx, doc); err != nil {
		c.log.Warn().Err(err).Str("canonical_id", canonicalID).Msg("cache write failed, returning live result uncached")
	}
	c.transition(stateDone, canonicalID)

	return doc, nil
}

func (c *Core) fetchLive(ctx context.Context, resolved model.ResolvedIdentifier) (content, sourceURL string, err error) {
	switch resolved.Kind {
	case model.KindFlutterClass, model.KindDartClass:
		url, err := resolver.URLFor(resolved)
		if err != nil {
			return "", "", apierrors.Wrap(apierrors.InvalidInput, "cannot derive class URL", err)
		}
		body, err := c.HTTP.Get(ctx, url, resolved.CanonicalID())
		if err != nil {
			return "", "", classifyFetchError(err, url)
		}
		doc, err := docparser.BuildClassDocument(docparser.ClassInput{Resolved: resolved, HTMLBody: body, BaseURL: url})
		if err != nil {
			return "", "", apierrors.Wrap(apierrors.InvalidInput, "failed to parse class documentation", err)
		}
		return doc, url, nil

	case model.KindPubPackage:
		metaURL, err := resolver.URLFor(resolved)
		if err != nil {
			return "", "", apierrors.Wrap(apierrors.InvalidInput, "cannot derive package URL", err)
		}
		metaBody, err := c.HTTP.Get(ctx, metaURL, resolved.CanonicalID())
		if err != nil {
			return "", "", classifyFetchError(err, metaURL)
		}

		readmeURL, _ := resolver.ReadmeURLFor(resolved)
		var readmeBody []byte
		if readmeURL != "" {
			if body, err := c.HTTP.Get(ctx, readmeURL, resolved.CanonicalID()); err == nil {
				readmeBody = body
			} else {
				c.log.Debug().Err(err).Str("url", readmeURL).Msg("README fetch failed, degrading to metadata-only")
			}
		}

		var readmeMD, changelogMD []byte
		if len(readmeBody) == 0 && c.github != nil {
			if meta, err := docparser.ParsePubMetadata(metaBody); err == nil {
				if owner, repo, ok := ownerRepoFromHomepage(meta.Homepage()); ok {
					if body, err := c.github.Readme(ctx, owner, repo); err == nil {
						readmeMD = body
					} else {
						c.log.Debug().Err(err).Str("repo", owner+"/"+repo).Msg("GitHub README fallback failed")
					}
					changelogMD = c.github.Changelog(ctx, owner, repo)
				}
			}
		}

		doc, err := docparser.BuildPackageDocument(docparser.PackageInput{
			Resolved:     resolved,
			ResolvedVer:  resolved.VersionSpec.Raw(),
			MetadataJSON: metaBody,
			ReadmeHTML:   readmeBody,
			ReadmeMD:     readmeMD,
			ChangelogMD:  changelogMD,
			BaseURL:      readmeURL,
		})
		if err != nil {
			return "", "", apierrors.Wrap(apierrors.InvalidInput, "failed to parse package documentation", err)
		}
		return doc, metaURL, nil

	default:
		return "", "", apierrors.New(apierrors.InvalidInput, fmt.Sprintf("unsupported identifier kind %v", resolved.Kind))
	}
}

// finalize applies the per-request topic filter and truncation on top
// of the (possibly cached) full document, without mutating what was
// stored.
func (c *Core) finalize(doc model.Document, req model.DocRequest) model.Document {
	content := doc.Content
	if req.Topic != "" {
		content = docparser.FilterTopic(content, req.Topic)
	}

	result := truncate.Truncate(content, req.MaxTokens, c.Tokens)
	out := doc
	out.Content = result.Content
	out.TokenCount = result.TokenCount
	out.Truncated = result.Truncated
	out.OriginalTokens = result.OriginalTokens
	out.SectionsKept = result.SectionsKept
	out.SectionsDropped = result.SectionsDropped
	return out
}

func (c *Core) transition(state fetchState, canonicalID string) {
	c.log.Debug().Str("canonical_id", canonicalID).Str("state", string(state)).Msg("fetch fsm transition")
}

func validateRequest(req model.DocRequest) error {
	if req.Identifier == "" {
		return apierrors.New(apierrors.InvalidInput, "identifier must not be empty")
	}
	if req.Topic != "" && !model.ValidTopics[req.Topic] {
		return apierrors.New(apierrors.InvalidInput, fmt.Sprintf("unrecognized topic %q", req.Topic)).
			WithSuggestions(apierrors.GenericSuggestions(apierrors.InvalidInput)...)
	}
	if req.MaxTokens != 0 && req.MaxTokens < 500 {
		return apierrors.New(apierrors.InvalidInput, "max_tokens must be at least 500")
	}
	return nil
}

func ttlFor(kind model.Kind) int64 {
	if kind == model.KindPubPackage {
		return model.TTLPackageMillis
	}
	return model.TTLAPIDocsMillis
}

// classifyFetchError maps an httpclient error into the spec.md §7
// taxonomy.
func classifyFetchError(err error, url string) error {
	if errors.Is(err, breaker.ErrOpen) {
		return apierrors.Wrap(apierrors.UpstreamServerError, "circuit open for upstream, not attempting request", err).
			WithSuggestions(apierrors.GenericSuggestions(apierrors.UpstreamServerError)...)
	}
	switch e := err.(type) {
	case *httpclient.StatusError:
		if e.Status == 404 {
			return apierrors.Wrap(apierrors.NotFound, fmt.Sprintf("no documentation found at %s", url), err).
				WithSuggestions(apierrors.GenericSuggestions(apierrors.NotFound)...)
		}
		return apierrors.Wrap(apierrors.InvalidInput, fmt.Sprintf("upstream returned HTTP %d", e.Status), err)
	case *httpclient.ServerError:
		return apierrors.Wrap(apierrors.UpstreamServerError, "upstream server error after retries", err).
			WithSuggestions(apierrors.GenericSuggestions(apierrors.UpstreamServerError)...)
	case *httpclient.RateLimitedError:
		return apierrors.Wrap(apierrors.RateLimited, "rate limited by upstream after retries", err).
			WithSuggestions(apierrors.GenericSuggestions(apierrors.RateLimited)...)
	default:
		return apierrors.Wrap(apierrors.Network, "network error reaching upstream", err).
			WithSuggestions(apierrors.GenericSuggestions(apierrors.Network)...)
	}
}
