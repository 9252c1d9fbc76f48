package flowgraph

import (
	"math"
	"time"
)

// Node is the live representation of one host address.
type Node struct {
	ID    string
	Label string

	// Position is defined from the moment the placement resolver runs
	// and never reverts to unplaced. Velocity is simulation state.
	X, Y   float64
	VX, VY float64

	Radius     float64
	Provenance string

	// Ports grows monotonically until the node is evicted.
	Ports map[int]struct{}

	Bytes        int64
	CreatedAt    time.Time
	LastActiveAt time.Time

	// Drifting marks the idle, pushed-toward-periphery regime. Any
	// fresh activity clears it.
	Drifting bool

	// Degraded marks a node placed via the randomized fallback path
	// after the spiral search was exhausted.
	Degraded bool
}

func (n *Node) touch(now time.Time) {
	n.LastActiveAt = now
	n.Drifting = false
}

// addTraffic folds one observation into the node's visual weight.
func (n *Node) addTraffic(bytes int64, port int) {
	if bytes > 0 {
		n.Bytes += bytes
	}
	if port > 0 {
		n.Ports[port] = struct{}{}
	}
	n.Radius = nodeRadius(n.Bytes)
}

// nodeRadius scales visual weight with observed traffic, log-capped so
// a single noisy host cannot dominate the canvas.
func nodeRadius(bytes int64) float64 {
	r := 5 + math.Log10(float64(bytes)/1024+1)*2.5
	if r > 18 {
		r = 18
	}
	return r
}

// Edge is the live representation of flows between a pair of hosts.
// Identity keys on (source, target): repeated flows between the same
// pair collapse into one edge whose activity and byte count refresh.
type Edge struct {
	ID     string
	Source string
	Target string

	Protocol   string
	Bytes      int64
	Provenance string

	// LastEventMs is the timestamp of the newest observation folded
	// into this edge. At-least-once transports re-deliver events; a
	// re-delivery of that observation refreshes activity without
	// counting its bytes a second time.
	LastEventMs int64

	CreatedAt    time.Time
	LastActiveAt time.Time
}

func edgeID(source, target string) string {
	return source + "->" + target
}
