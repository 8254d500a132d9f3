// Package singleflight deduplicates concurrent fetches of the same
// canonical_id, per spec.md §4.E: at most one upstream fetch in
// flight per key, with every concurrent caller sharing its outcome.
package singleflight

import (
	"golang.org/x/sync/singleflight"
)

// Group wraps golang.org/x/sync/singleflight.Group, the same
// golang.org/x infra family the teacher already depends on for
// x/time/rate and x/net/html.
type Group struct {
	g singleflight.Group
}

// Do executes fn for key unless a call for key is already in flight,
// in which case it waits for and shares that call's result. The entry
// is removed once the call completes, matching spec.md §4.E.
func (g *Group) Do(key string, fn func() (interface{}, error)) (interface{}, error, bool) {
	return g.g.Do(key, fn)
}
