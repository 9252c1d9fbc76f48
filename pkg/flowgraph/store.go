package flowgraph

import (
	"log"
	"sync"
	"time"
)

// PinFunc reports whether a node id is exempt from capacity-driven
// eviction. Rule syntax and matching belong to the caller (see
// pkg/pinning); the engine only consults the predicate.
type PinFunc func(nodeID string) bool

// NodeAttrs carries the per-event fields folded into a node upsert.
type NodeAttrs struct {
	Provenance string
	Port       int
	Bytes      int64
}

// EdgeAttrs carries the per-event fields folded into an edge upsert.
type EdgeAttrs struct {
	Protocol    string
	Bytes       int64
	Provenance  string
	TimestampMs int64
}

// Store is the authoritative map of live nodes and edges. A single
// mutex serializes its three mutating actors (ingest drain, expiry
// sweep, physics step) so none of them can observe a torn insert.
type Store struct {
	mu  sync.Mutex
	cfg *Config
	obs Observer

	nodes map[string]*Node
	edges map[string]*Edge

	placer   *placer
	isPinned PinFunc

	// generation invalidates in-flight batches across Clear; a batch
	// drained before a clear is discarded when applied after it.
	generation uint64

	// now is the clock, replaceable in tests.
	now func() time.Time
}

func NewStore(cfg *Config, obs Observer) *Store {
	if obs == nil {
		obs = NopObserver{}
	}
	return &Store{
		cfg:    cfg,
		obs:    obs,
		nodes:  make(map[string]*Node),
		edges:  make(map[string]*Edge),
		placer: newPlacer(cfg),
		now:    time.Now,
	}
}

// SetPinFunc installs the eviction-exemption predicate.
func (s *Store) SetPinFunc(f PinFunc) {
	s.mu.Lock()
	s.isPinned = f
	s.mu.Unlock()
}

func (s *Store) pinned(id string) bool {
	return s.isPinned != nil && s.isPinned(id)
}

// Generation returns the current clear-generation of the store.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Counts returns the current node and edge counts.
func (s *Store) Counts() (nodes, edges int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes), len(s.edges)
}

// UpsertNode creates or refreshes a node. On a new id it delegates to
// the placement resolver; at capacity it first evicts the least
// recently active unpinned node and refuses the insert if every
// candidate is pinned. Returns whether the node exists afterwards.
func (s *Store) UpsertNode(id string, attrs NodeAttrs) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertNodeLocked(id, attrs)
}

func (s *Store) upsertNodeLocked(id string, attrs NodeAttrs) bool {
	now := s.now()
	if n, ok := s.nodes[id]; ok {
		// Re-observation refreshes activity, never position.
		n.touch(now)
		n.addTraffic(attrs.Bytes, attrs.Port)
		return true
	}

	if len(s.nodes) >= s.cfg.MaxNodes {
		if !s.evictOneLocked() {
			// Every remaining node is pinned. Degrade, don't crash.
			s.obs.InsertRefused()
			log.Printf("[store] node insert refused for %s: at capacity with no evictable candidate", id)
			return false
		}
	}

	n := &Node{
		ID:           id,
		Label:        id,
		Provenance:   attrs.Provenance,
		Ports:        make(map[int]struct{}),
		CreatedAt:    now,
		LastActiveAt: now,
	}
	n.addTraffic(attrs.Bytes, attrs.Port)
	n.X, n.Y, n.Degraded = s.placer.place(id, s.nodes)
	if n.Degraded {
		s.obs.PlacementDegraded()
	}
	s.nodes[id] = n
	s.obs.NodeAdded()
	return true
}

// UpsertEdge creates or refreshes the (source, target) edge. An edge
// referencing a missing endpoint is dropped silently and counted: its
// node upserts normally precede it in the same batch, but an endpoint
// may already have been evicted.
func (s *Store) UpsertEdge(source, target string, attrs EdgeAttrs) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertEdgeLocked(source, target, attrs)
}

func (s *Store) upsertEdgeLocked(source, target string, attrs EdgeAttrs) bool {
	if source == target {
		// Self-directed flows refresh the node but draw no edge.
		return false
	}
	if _, ok := s.nodes[source]; !ok {
		s.obs.EventDropped(DropOrphanEdge)
		return false
	}
	if _, ok := s.nodes[target]; !ok {
		s.obs.EventDropped(DropOrphanEdge)
		return false
	}

	now := s.now()
	id := edgeID(source, target)
	if e, ok := s.edges[id]; ok {
		e.LastActiveAt = now
		e.LastEventMs = attrs.TimestampMs
		if attrs.Bytes > 0 {
			e.Bytes += attrs.Bytes
		}
		if attrs.Protocol != "" {
			e.Protocol = attrs.Protocol
		}
		return true
	}

	s.edges[id] = &Edge{
		ID:           id,
		Source:       source,
		Target:       target,
		Protocol:     attrs.Protocol,
		Bytes:        attrs.Bytes,
		Provenance:   attrs.Provenance,
		LastEventMs:  attrs.TimestampMs,
		CreatedAt:    now,
		LastActiveAt: now,
	}
	s.obs.EdgeAdded()
	return true
}

// Touch refreshes a node's activity without a full payload.
func (s *Store) Touch(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return false
	}
	n.touch(s.now())
	return true
}

// Remove deletes a node and every edge touching it. Pinning does not
// protect against explicit removal.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[id]; !ok {
		return false
	}
	s.removeNodeLocked(id, EvictExplicit)
	return true
}

func (s *Store) removeNodeLocked(id, reason string) {
	delete(s.nodes, id)
	s.obs.NodeEvicted(reason)
	for eid, e := range s.edges {
		if e.Source == id || e.Target == id {
			delete(s.edges, eid)
			s.obs.EdgeEvicted(reason)
		}
	}
}

// evictOneLocked removes the least recently active unpinned node to
// make room for an insert. Recency, not insertion order: a node that
// keeps receiving traffic is never evicted just for being old.
func (s *Store) evictOneLocked() bool {
	var victim *Node
	for _, n := range s.nodes {
		if s.pinned(n.ID) {
			continue
		}
		if victim == nil || n.LastActiveAt.Before(victim.LastActiveAt) {
			victim = n
		}
	}
	if victim == nil {
		return false
	}
	s.removeNodeLocked(victim.ID, EvictCapacity)
	return true
}

// ApplyBatch applies drained events under one lock acquisition. The
// batch is discarded wholesale if the store has been cleared since the
// batch was drained.
func (s *Store) ApplyBatch(events []FlowEvent, generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		for range events {
			s.obs.EventDropped(DropStaleBatch)
		}
		return
	}
	for _, ev := range events {
		s.applyEventLocked(ev)
	}
}

func (s *Store) applyEventLocked(ev FlowEvent) {
	if ev.SourceAddress == ev.DestAddress {
		// Self-directed flows draw no edge and fold no traffic; they
		// only prove the host is alive, so re-delivery is harmless.
		s.upsertNodeLocked(ev.SourceAddress, NodeAttrs{
			Provenance: ev.Provenance,
			Port:       ev.SourcePort,
		})
		s.obs.EventIngested()
		return
	}

	// An observation whose timestamp is already folded into the
	// (source, target) edge is a re-delivery: it refreshes activity
	// but its bytes were already counted.
	if e, ok := s.edges[edgeID(ev.SourceAddress, ev.DestAddress)]; ok && e.LastEventMs == ev.TimestampMs {
		now := s.now()
		if n, ok := s.nodes[ev.SourceAddress]; ok {
			n.touch(now)
		}
		if n, ok := s.nodes[ev.DestAddress]; ok {
			n.touch(now)
		}
		e.LastActiveAt = now
		s.obs.EventIngested()
		return
	}

	s.upsertNodeLocked(ev.SourceAddress, NodeAttrs{
		Provenance: ev.Provenance,
		Port:       ev.SourcePort,
		Bytes:      ev.SizeBytes,
	})
	s.upsertNodeLocked(ev.DestAddress, NodeAttrs{
		Provenance: ev.Provenance,
		Port:       ev.DestPort,
		Bytes:      ev.SizeBytes,
	})
	s.upsertEdgeLocked(ev.SourceAddress, ev.DestAddress, EdgeAttrs{
		Protocol:    ev.Protocol,
		Bytes:       ev.SizeBytes,
		Provenance:  ev.Provenance,
		TimestampMs: ev.TimestampMs,
	})
	s.obs.EventIngested()
}

// Clear atomically empties the store and bumps the generation so any
// batch drained before the clear can no longer repopulate it.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = make(map[string]*Node)
	s.edges = make(map[string]*Edge)
	s.generation++
}
