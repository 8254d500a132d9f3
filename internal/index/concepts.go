// Package index holds the local curated concept map: a small, hand-maintained
// table of Flutter/Dart concepts (state management, navigation, theming, ...)
// mapping each concept to the canonical_ids a developer searching for it
// probably wants. It replaces the teacher's hand-rolled TF-IDF
// DocumentationIndex with a bleve in-memory index, grounded on
// _examples/krakend-mcp-server/cmd/indexer/main.go's bleve.NewIndexMapping
// and batch-indexing pattern, and seeded from the concept groupings the
// Python prototype hard-coded inline in search_flutter_docs (common_flutter_items,
// popular_packages) rather than crawling a live source.
package index

import (
	"fmt"
	"time"

	"github.com/blevesearch/bleve/v2"

	"github.com/j4ng5y/flutter-docs-mcp-server/internal/model"
)

// concept is one entry in the curated map: a topic name, the free-text
// keywords bleve matches queries against, and the canonical_ids it resolves
// to when a search hits it.
type concept struct {
	Name         string
	Keywords     []string
	Description  string
	CanonicalIDs []string
}

var concepts = []concept{
	{
		Name:        "state management",
		Keywords:    []string{"state", "management", "provider", "riverpod", "bloc", "mobx", "redux", "setstate", "inheritedwidget", "valuenotifier"},
		Description: "Approaches to holding and propagating application state across a Flutter widget tree.",
		CanonicalIDs: []string{
			"pub_package:provider", "pub_package:riverpod", "pub_package:bloc",
			"pub_package:flutter_bloc", "pub_package:mobx", "pub_package:get",
			"flutter_class:widgets.InheritedWidget", "flutter_class:widgets.State",
		},
	},
	{
		Name:        "navigation",
		Keywords:    []string{"navigation", "routing", "route", "navigator", "deep", "link", "push", "pop"},
		Description: "Moving between screens and managing the navigation stack.",
		CanonicalIDs: []string{
			"pub_package:go_router", "pub_package:auto_route",
			"flutter_class:widgets.Navigator", "flutter_class:widgets.Route",
			"flutter_class:material.MaterialPageRoute",
		},
	},
	{
		Name:        "theming",
		Keywords:    []string{"theme", "theming", "styling", "colors", "typography", "dark", "mode"},
		Description: "Applying consistent visual style across an app via ThemeData and Theme.",
		CanonicalIDs: []string{
			"flutter_class:material.Theme", "pub_package:google_fonts",
			"flutter_class:widgets.DefaultTextStyle",
		},
	},
	{
		Name:        "networking",
		Keywords:    []string{"http", "network", "networking", "rest", "api", "requests", "graphql", "websocket"},
		Description: "Making HTTP and realtime network calls from Dart/Flutter code.",
		CanonicalIDs: []string{
			"pub_package:dio", "pub_package:http", "pub_package:retrofit",
			"pub_package:graphql_flutter", "pub_package:web_socket_channel",
		},
	},
	{
		Name:        "storage",
		Keywords:    []string{"storage", "database", "persistence", "sqlite", "key-value", "cache", "offline"},
		Description: "Persisting data locally, from simple key-value pairs to embedded databases.",
		CanonicalIDs: []string{
			"pub_package:shared_preferences", "pub_package:sqflite",
			"pub_package:hive", "pub_package:isar", "pub_package:drift",
		},
	},
	{
		Name:        "animation",
		Keywords:    []string{"animation", "animate", "transition", "motion", "tween"},
		Description: "Animating widgets, transitions, and implicit or explicit motion.",
		CanonicalIDs: []string{
			"flutter_class:animation.AnimationController", "flutter_class:widgets.Hero",
			"flutter_class:widgets.AnimatedContainer", "pub_package:animations",
			"pub_package:lottie", "pub_package:rive",
		},
	},
	{
		Name:        "forms",
		Keywords:    []string{"form", "forms", "validation", "input", "textfield", "textformfield"},
		Description: "Collecting and validating user input.",
		CanonicalIDs: []string{
			"flutter_class:widgets.Form", "flutter_class:material.TextFormField",
			"flutter_class:material.TextField",
		},
	},
	{
		Name:        "dependency injection",
		Keywords:    []string{"dependency", "injection", "service", "locator", "di"},
		Description: "Wiring dependencies between app layers without manual plumbing.",
		CanonicalIDs: []string{"pub_package:get_it", "pub_package:injectable"},
	},
	{
		Name:        "firebase",
		Keywords:    []string{"firebase", "firestore", "auth", "fcm", "push", "notifications"},
		Description: "Google's Firebase platform: auth, database, storage, and messaging.",
		CanonicalIDs: []string{
			"pub_package:firebase_core", "pub_package:firebase_auth",
			"pub_package:cloud_firestore", "pub_package:firebase_messaging",
		},
	},
	{
		Name:        "testing",
		Keywords:    []string{"test", "testing", "widget", "test", "mock", "golden"},
		Description: "Unit, widget, and integration testing for Flutter apps.",
		CanonicalIDs: []string{"pub_package:mockito", "pub_package:mocktail", "pub_package:integration_test"},
	},
}

// conceptDoc is the bleve document shape: a flattened, free-text
// representation of a concept for match/prefix/fuzzy scoring.
type conceptDoc struct {
	Name        string `json:"name"`
	Keywords    string `json:"keywords"`
	Description string `json:"description"`
}

// ConceptMap is a bleve-backed, in-memory search source over the curated
// concept table above, built once by NewConceptMap. Stale and Reset (the
// successor to the teacher's index.Manager.Reset) let a caller rebuild it
// in place; nothing in the server calls them, so it is not rebuilt
// automatically.
type ConceptMap struct {
	idx     bleve.Index
	byName  map[string]*concept
	builtAt time.Time
}

// NewConceptMap builds an in-memory concept index. Grounded on
// cmd/indexer/main.go's bleve.NewIndexMapping/bleve.New pair, using
// bleve.NewMemOnly since the concept table has no on-disk persistence needs.
func NewConceptMap() (*ConceptMap, error) {
	cm := &ConceptMap{byName: make(map[string]*concept, len(concepts))}
	if err := cm.build(); err != nil {
		return nil, err
	}
	return cm, nil
}

func (cm *ConceptMap) build() error {
	mapping := bleve.NewIndexMapping()
	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return fmt.Errorf("index: creating concept map: %w", err)
	}

	batch := idx.NewBatch()
	for i := range concepts {
		c := &concepts[i]
		cm.byName[c.Name] = c
		doc := conceptDoc{
			Name:        c.Name,
			Keywords:    joinKeywords(c.Keywords),
			Description: c.Description,
		}
		if err := batch.Index(c.Name, doc); err != nil {
			idx.Close()
			return fmt.Errorf("index: indexing concept %q: %w", c.Name, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		idx.Close()
		return fmt.Errorf("index: submitting concept batch: %w", err)
	}

	if cm.idx != nil {
		cm.idx.Close()
	}
	cm.idx = idx
	cm.builtAt = time.Now()
	return nil
}

func joinKeywords(words []string) string {
	out := ""
	for i, w := range words {
		if i > 0 {
			out += " "
		}
		out += w
	}
	return out
}

// Stale reports whether the concept map was built longer than maxAge ago.
func (cm *ConceptMap) Stale(maxAge time.Duration) bool {
	return time.Since(cm.builtAt) > maxAge
}

// Reset rebuilds the concept map in place, the successor to the teacher's
// index.Manager.Reset.
func (cm *ConceptMap) Reset() error {
	return cm.build()
}

// Close releases the underlying bleve index.
func (cm *ConceptMap) Close() error {
	if cm.idx == nil {
		return nil
	}
	return cm.idx.Close()
}

// candidate is a concept-map hit surfaced to the search orchestrator for
// scoring; Tokens holds the words the orchestrator's lexical scorer matches
// the query against.
type candidate struct {
	ID          string
	Kind        model.Kind
	Title       string
	Description string
	Tokens      []string
}

// Match runs a bleve match query over the concept keywords/descriptions and
// expands each matched concept into its member canonical_ids as candidates
// for the orchestrator's own exact/prefix/substring/fuzzy scoring pass.
// bleve here is a coarse retrieval filter, not the final relevance score:
// spec.md §4.K names the exact scoring formula, so the score itself is
// computed uniformly across all four search sources by the orchestrator.
func (cm *ConceptMap) Match(query string, limit int) ([]candidate, error) {
	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	if req.Size <= 0 || req.Size > len(concepts) {
		req.Size = len(concepts)
	}

	res, err := cm.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("index: concept search: %w", err)
	}

	var out []candidate
	for _, hit := range res.Hits {
		c, ok := cm.byName[hit.ID]
		if !ok {
			continue
		}
		for _, id := range c.CanonicalIDs {
			kind, name := splitCanonicalID(id)
			out = append(out, candidate{
				ID:          id,
				Kind:        kind,
				Title:       name,
				Description: c.Description,
				Tokens:      append([]string{c.Name, name}, c.Keywords...),
			})
		}
	}
	return out, nil
}

// splitCanonicalID extracts the kind and bare name from a canonical_id
// literal in the concept table above (e.g. "pub_package:provider" ->
// KindPubPackage, "provider"). It tolerates unknown kind prefixes by
// defaulting to KindPubPackage since every non-flutter/dart entry in the
// table is a package name.
func splitCanonicalID(id string) (model.Kind, string) {
	for i := 0; i < len(id); i++ {
		if id[i] == ':' {
			kind, err := model.ParseKind(id[:i])
			if err != nil {
				return model.KindPubPackage, id[i+1:]
			}
			return kind, id[i+1:]
		}
	}
	return model.KindPubPackage, id
}
