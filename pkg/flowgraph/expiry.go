package flowgraph

import (
	"sort"
	"time"
)

// Sweep ages out inactive entries and then trims to capacity. It runs
// on its own timer, independent of ingestion cadence: the trim guards
// against slow-but-steady growth even when nothing has individually
// expired.
func (s *Store) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	edgeTTL := time.Duration(s.cfg.EdgeExpiryMs) * time.Millisecond
	hardTTL := time.Duration(s.cfg.NodeHardExpiryMs) * time.Millisecond

	for id, e := range s.edges {
		if now.Sub(e.LastActiveAt) > edgeTTL {
			delete(s.edges, id)
			s.obs.EdgeEvicted(EvictExpired)
		}
	}

	// Fading between NodeFadeMs and NodeHardExpiryMs is a snapshot
	// concern (age-derived opacity); the store only hard-removes.
	var dead []string
	for id, n := range s.nodes {
		if now.Sub(n.LastActiveAt) > hardTTL {
			dead = append(dead, id)
		}
	}
	for _, id := range dead {
		s.removeNodeLocked(id, EvictExpired)
	}

	s.trimLocked(s.cfg.MaxNodes, s.cfg.MaxEdges)
}

// Trim enforces the capacity ceilings immediately.
func (s *Store) Trim(maxNodes, maxEdges int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trimLocked(maxNodes, maxEdges)
}

// trimLocked keeps the most recently active unpinned nodes within the
// quota left over after pinned nodes; pinned nodes are always
// retained, even when they alone exceed the quota. Idempotent: under
// capacity it is a no-op.
func (s *Store) trimLocked(maxNodes, maxEdges int) {
	if len(s.nodes) > maxNodes {
		var unpinned []*Node
		pinnedCount := 0
		for _, n := range s.nodes {
			if s.pinned(n.ID) {
				pinnedCount++
			} else {
				unpinned = append(unpinned, n)
			}
		}
		keep := maxNodes - pinnedCount
		if keep < 0 {
			keep = 0
		}
		if len(unpinned) > keep {
			sort.Slice(unpinned, func(i, j int) bool {
				return unpinned[i].LastActiveAt.After(unpinned[j].LastActiveAt)
			})
			for _, n := range unpinned[keep:] {
				s.removeNodeLocked(n.ID, EvictCapacity)
			}
		}
	}

	if len(s.edges) > maxEdges {
		edges := make([]*Edge, 0, len(s.edges))
		for _, e := range s.edges {
			edges = append(edges, e)
		}
		sort.Slice(edges, func(i, j int) bool {
			return edges[i].LastActiveAt.After(edges[j].LastActiveAt)
		})
		for _, e := range edges[maxEdges:] {
			delete(s.edges, e.ID)
			s.obs.EdgeEvicted(EvictCapacity)
		}
	}
}
