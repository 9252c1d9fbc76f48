package flowgraph

import "sync"

// Drop and eviction reasons reported to the Observer.
const (
	DropMalformed  = "malformed"
	DropOverflow   = "overflow"
	DropOrphanEdge = "orphan_edge"
	DropStaleBatch = "stale_batch"

	EvictExpired   = "expired"
	EvictCapacity  = "capacity"
	EvictOffscreen = "offscreen"
	EvictExplicit  = "explicit"
)

// Observer receives engine diagnostics. It is injected rather than
// kept in package-level counters so that multiple engine instances,
// including the ones tests create, share no state.
type Observer interface {
	EventIngested()
	EventDropped(reason string)
	NodeAdded()
	NodeEvicted(reason string)
	EdgeAdded()
	EdgeEvicted(reason string)
	PlacementDegraded()
	InsertRefused()
}

// NopObserver discards everything. It is the default.
type NopObserver struct{}

func (NopObserver) EventIngested()            {}
func (NopObserver) EventDropped(string)       {}
func (NopObserver) NodeAdded()                {}
func (NopObserver) NodeEvicted(string)        {}
func (NopObserver) EdgeAdded()                {}
func (NopObserver) EdgeEvicted(string)        {}
func (NopObserver) PlacementDegraded()        {}
func (NopObserver) InsertRefused()            {}

// MultiObserver fans every signal out to each member, so a process can
// feed the HUD counters and a Prometheus registry at once.
type MultiObserver []Observer

func (m MultiObserver) EventIngested() {
	for _, o := range m {
		o.EventIngested()
	}
}

func (m MultiObserver) EventDropped(reason string) {
	for _, o := range m {
		o.EventDropped(reason)
	}
}

func (m MultiObserver) NodeAdded() {
	for _, o := range m {
		o.NodeAdded()
	}
}

func (m MultiObserver) NodeEvicted(reason string) {
	for _, o := range m {
		o.NodeEvicted(reason)
	}
}

func (m MultiObserver) EdgeAdded() {
	for _, o := range m {
		o.EdgeAdded()
	}
}

func (m MultiObserver) EdgeEvicted(reason string) {
	for _, o := range m {
		o.EdgeEvicted(reason)
	}
}

func (m MultiObserver) PlacementDegraded() {
	for _, o := range m {
		o.PlacementDegraded()
	}
}

func (m MultiObserver) InsertRefused() {
	for _, o := range m {
		o.InsertRefused()
	}
}

// CountingObserver tallies events in memory. The viewer HUD reads it
// for windowed rates and tests assert against it.
type CountingObserver struct {
	mu     sync.Mutex
	counts map[string]uint64
}

func NewCountingObserver() *CountingObserver {
	return &CountingObserver{counts: make(map[string]uint64)}
}

func (c *CountingObserver) bump(key string) {
	c.mu.Lock()
	c.counts[key]++
	c.mu.Unlock()
}

func (c *CountingObserver) EventIngested()        { c.bump("events_ingested") }
func (c *CountingObserver) EventDropped(r string) { c.bump("events_dropped." + r) }
func (c *CountingObserver) NodeAdded()            { c.bump("nodes_added") }
func (c *CountingObserver) NodeEvicted(r string)  { c.bump("nodes_evicted." + r) }
func (c *CountingObserver) EdgeAdded()            { c.bump("edges_added") }
func (c *CountingObserver) EdgeEvicted(r string)  { c.bump("edges_evicted." + r) }
func (c *CountingObserver) PlacementDegraded()    { c.bump("placements_degraded") }
func (c *CountingObserver) InsertRefused()        { c.bump("inserts_refused") }

// Count returns one tally. Keys with a reason use "name.reason".
func (c *CountingObserver) Count(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key]
}

// Counts returns a copy of every tally.
func (c *CountingObserver) Counts() map[string]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]uint64, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}
