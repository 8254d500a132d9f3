package cachestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/j4ng5y/flutter-docs-mcp-server/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	doc := model.Document{
		CanonicalID: "flutter_class:widgets.Container",
		Content:     "# Container\n\n## Description\nA box.",
		TokenCount:  10,
		SourceURL:   "https://api.flutter.dev/flutter/widgets/Container-class.html",
		FetchedAt:   time.Now().UnixMilli(),
		TTLMillis:   model.TTLAPIDocsMillis,
	}
	if err := s.Put(ctx, doc); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := s.Get(ctx, doc.CanonicalID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Content != doc.Content || got.TokenCount != doc.TokenCount {
		t.Errorf("round trip mismatch: got %+v", got)
	}
	if got.Source != "cache" {
		t.Errorf("expected Source=cache on hit, got %q", got.Source)
	}
}

func TestGetMissingKeyReturnsFalse(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected miss for absent key")
	}
}

func TestGetExpiredEntryEvictsAndReportsMiss(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	doc := model.Document{
		CanonicalID: "pub_package:foo",
		Content:     "stale",
		TokenCount:  1,
		FetchedAt:   time.Now().Add(-2 * time.Hour).UnixMilli(),
		TTLMillis:   int64(time.Hour / time.Millisecond),
	}
	if err := s.Put(ctx, doc); err != nil {
		t.Fatalf("Put: %v", err)
	}

	_, ok, err := s.Get(ctx, doc.CanonicalID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected expired entry to read as absent")
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Entries != 0 {
		t.Errorf("expected expired row evicted, got %d entries", stats.Entries)
	}
}

func TestPutReplacesAtomically(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := model.Document{
		CanonicalID: "pub_package:provider",
		Content:     "v1",
		TokenCount:  1,
		FetchedAt:   time.Now().UnixMilli(),
		TTLMillis:   model.TTLPackageMillis,
	}
	if err := s.Put(ctx, base); err != nil {
		t.Fatalf("Put v1: %v", err)
	}
	base.Content = "v2"
	base.TokenCount = 2
	if err := s.Put(ctx, base); err != nil {
		t.Fatalf("Put v2: %v", err)
	}

	got, ok, err := s.Get(ctx, base.CanonicalID)
	if err != nil || !ok {
		t.Fatalf("Get after replace: ok=%v err=%v", ok, err)
	}
	if got.Content != "v2" {
		t.Errorf("expected replaced content, got %q", got.Content)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Entries != 1 {
		t.Errorf("expected exactly one row after replace, got %d", stats.Entries)
	}
}

func TestPurgeDeletesMatching(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"pub_package:a", "pub_package:b", "flutter_class:widgets.C"} {
		_ = s.Put(ctx, model.Document{CanonicalID: id, Content: "x", TokenCount: 1, FetchedAt: time.Now().UnixMilli(), TTLMillis: model.TTLAPIDocsMillis})
	}

	n, err := s.Purge(ctx, func(key string) bool { return key == "pub_package:a" || key == "pub_package:b" })
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 purged, got %d", n)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Entries != 1 {
		t.Errorf("expected 1 remaining entry, got %d", stats.Entries)
	}
}
