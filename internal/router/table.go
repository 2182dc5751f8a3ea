package router

import (
	"sort"
	"sync"
	"sync/atomic"
)

// routeTable is the ordered collection of routes shared by all in-flight
// dispatches of one Router. Mutation swaps in a freshly sorted copy, so
// readers take a snapshot once and iterate it without locks: an iterator is
// weakly consistent — it never observes a torn table, and mutations after
// the snapshot may or may not be visible to it.
type routeTable struct {
	mu     sync.Mutex // serializes writers
	routes atomic.Pointer[[]*Route]
}

func newRouteTable() *routeTable {
	t := &routeTable{}
	empty := make([]*Route, 0)
	t.routes.Store(&empty)
	return t
}

// snapshot returns the current table contents in order. Callers must not
// mutate the returned slice.
func (t *routeTable) snapshot() []*Route {
	return *t.routes.Load()
}

// add inserts a route, keeping the table sorted by order value. Order
// values come from a single incrementing counter, so they are unique; the
// identity comparison only breaks a tie that cannot occur in practice.
func (t *routeTable) add(route *Route) {
	t.mu.Lock()
	defer t.mu.Unlock()

	current := *t.routes.Load()
	next := make([]*Route, len(current), len(current)+1)
	copy(next, current)
	next = append(next, route)

	// Stable sort: equal order values (impossible while orders come from
	// the atomic counter) keep insertion order, so distinct routes never
	// collapse into one table slot.
	sort.SliceStable(next, func(i, j int) bool {
		return next[i].order < next[j].order
	})

	t.routes.Store(&next)
}

// remove takes a route out of the table by identity.
func (t *routeTable) remove(route *Route) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	current := *t.routes.Load()
	next := make([]*Route, 0, len(current))
	removed := false
	for _, r := range current {
		if r == route {
			removed = true
			continue
		}
		next = append(next, r)
	}
	if removed {
		t.routes.Store(&next)
	}
	return removed
}

// clear empties the table.
func (t *routeTable) clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	empty := make([]*Route, 0)
	t.routes.Store(&empty)
}

// size returns the number of routes currently in the table.
func (t *routeTable) size() int {
	return len(*t.routes.Load())
}
