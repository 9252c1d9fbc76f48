package flowgraph

import (
	"image/color"
	"time"
)

// Display colors, keyed by protocol for edges and provenance for
// nodes.
var (
	ColorTCP       = color.RGBA{0, 191, 255, 255}   // Sky Blue
	ColorUDP       = color.RGBA{173, 255, 47, 255}  // Lime Green
	ColorICMP      = color.RGBA{255, 50, 50, 255}   // Red
	ColorOther     = color.RGBA{200, 200, 200, 255} // Grey
	ColorReal      = color.RGBA{0, 191, 255, 255}   // Sky Blue
	ColorSynthetic = color.RGBA{255, 200, 0, 255}   // Amber
)

// SnapshotNode is the read-only view of one node for a single frame.
type SnapshotNode struct {
	ID     string
	Label  string
	X, Y   float64
	Radius float64
	Color  color.RGBA
	Bytes  int64

	// Age is the fade progress in [0,1]: 0 fully live, rising once
	// inactivity passes NodeFadeMs, 1 at the hard-expiry threshold.
	Age float64

	Drifting bool
	Degraded bool
}

// SnapshotEdge is the read-only view of one edge for a single frame.
type SnapshotEdge struct {
	ID       string
	SourceID string
	TargetID string
	Color    color.RGBA
	Alpha    float64
}

// Snapshot is a full, consistent copy of the graph. Readers always see
// either a complete prior state or a complete new one.
type Snapshot struct {
	Nodes      []SnapshotNode
	Edges      []SnapshotEdge
	Generation uint64
}

// Snapshot copies the current node and edge collections under the
// store lock. Every edge in the result references nodes present in the
// same result.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	fade := time.Duration(s.cfg.NodeFadeMs) * time.Millisecond
	hard := time.Duration(s.cfg.NodeHardExpiryMs) * time.Millisecond
	edgeTTL := time.Duration(s.cfg.EdgeExpiryMs) * time.Millisecond

	snap := Snapshot{
		Nodes:      make([]SnapshotNode, 0, len(s.nodes)),
		Edges:      make([]SnapshotEdge, 0, len(s.edges)),
		Generation: s.generation,
	}

	for _, n := range s.nodes {
		snap.Nodes = append(snap.Nodes, SnapshotNode{
			ID:       n.ID,
			Label:    n.Label,
			X:        n.X,
			Y:        n.Y,
			Radius:   n.Radius,
			Color:    provenanceColor(n.Provenance),
			Bytes:    n.Bytes,
			Age:      fadeProgress(now.Sub(n.LastActiveAt), fade, hard),
			Drifting: n.Drifting,
			Degraded: n.Degraded,
		})
	}

	for _, e := range s.edges {
		alpha := 1 - now.Sub(e.LastActiveAt).Seconds()/edgeTTL.Seconds()
		if alpha < 0.15 {
			alpha = 0.15
		}
		snap.Edges = append(snap.Edges, SnapshotEdge{
			ID:       e.ID,
			SourceID: e.Source,
			TargetID: e.Target,
			Color:    ProtocolColor(e.Protocol),
			Alpha:    alpha,
		})
	}
	return snap
}

// SetLabel replaces a node's display label, typically after an
// asynchronous enrichment lookup resolves. No-op for unknown ids.
func (s *Store) SetLabel(id, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.nodes[id]; ok && label != "" {
		n.Label = label
	}
}

// fadeProgress maps inactivity to the [0,1] fade scale consumed by the
// presentation adapter as opacity.
func fadeProgress(inactive, fade, hard time.Duration) float64 {
	if inactive <= fade {
		return 0
	}
	if hard <= fade {
		return 1
	}
	p := float64(inactive-fade) / float64(hard-fade)
	if p > 1 {
		p = 1
	}
	return p
}

// ProtocolColor maps a protocol string to its display color.
func ProtocolColor(protocol string) color.RGBA {
	switch protocol {
	case "tcp", "TCP":
		return ColorTCP
	case "udp", "UDP":
		return ColorUDP
	case "icmp", "ICMP":
		return ColorICMP
	default:
		return ColorOther
	}
}

func provenanceColor(provenance string) color.RGBA {
	if provenance == ProvenanceSynthetic {
		return ColorSynthetic
	}
	return ColorReal
}
