// Package route implements the node's routing table: the mapping from
// destination node id to next-hop neighbor and hop-count metric.
package route

import (
	"sort"
	"time"
)

// Route is one entry of the routing table.
type Route struct {
	Destination string
	Metric      int
	NextHop     string
	UpdatedAt   time.Time
}

// Table is the routing table for a single node, identified by self. The
// self id never appears as a Destination: any upsert for self is a no-op.
// Table is not safe for concurrent use; callers serialize access (the
// daemon holds a single coarse mutex covering the table and the neighbor
// registry together).
type Table struct {
	self   string
	routes map[string]Route
	now    func() time.Time
}

// New creates an empty table for the given self node id.
func New(self string) *Table {
	return &Table{self: self, routes: make(map[string]Route), now: time.Now}
}

// Upsert installs or replaces the route to dst, stamping UpdatedAt to now.
// A route to self is silently ignored.
func (t *Table) Upsert(dst string, metric int, nextHop string) {
	if dst == t.self {
		return
	}
	t.routes[dst] = Route{
		Destination: dst,
		Metric:      metric,
		NextHop:     nextHop,
		UpdatedAt:   t.now(),
	}
}

// Remove deletes the route to dst, if present.
func (t *Table) Remove(dst string) {
	delete(t.routes, dst)
}

// Lookup returns the current route to dst, if any.
func (t *Table) Lookup(dst string) (Route, bool) {
	r, ok := t.routes[dst]
	return r, ok
}

// Len reports the number of routes currently held.
func (t *Table) Len() int {
	return len(t.routes)
}

// Advertisable produces the outbound vector for a neighbor, applying split
// horizon: routes whose NextHop equals exclude are omitted, and the self id
// is never emitted (Upsert already guarantees self never appears as a
// destination, so this is implied, not separately filtered).
func (t *Table) Advertisable(exclude string) []VectorEntry {
	out := make([]VectorEntry, 0, len(t.routes))
	for dst, r := range t.routes {
		if r.NextHop == exclude {
			continue
		}
		out = append(out, VectorEntry{Dst: dst, Metric: r.Metric})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dst < out[j].Dst })
	return out
}

// VectorEntry mirrors wire.VectorEntry without importing the wire package,
// keeping route free of encoding concerns.
type VectorEntry struct {
	Dst    string
	Metric int
}

// PurgeThrough removes every route whose destination is neighbor or whose
// next hop is neighbor — used when a neighbor is declared dead.
func (t *Table) PurgeThrough(neighbor string) {
	for dst, r := range t.routes {
		if dst == neighbor || r.NextHop == neighbor {
			delete(t.routes, dst)
		}
	}
}

// Snapshot returns every route ordered by destination ascending, for
// display.
func (t *Table) Snapshot() []Route {
	out := make([]Route, 0, len(t.routes))
	for _, r := range t.routes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Destination < out[j].Destination })
	return out
}
