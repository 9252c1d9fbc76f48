package flowgraph

import (
	"log"
	"math"
	"time"
)

// Force model constants. Empirically tuned; the per-concern strengths
// they scale live in Config.
const (
	springRestLength = 120.0
	centerPullFactor = 0.02
	physicsEpsilon   = 0.001
)

// Step advances the force simulation by dtMs milliseconds: spring
// attraction along live edges, a weak center pull on connected nodes,
// pairwise repulsion on overlap, outward drift for idle nodes, then
// damping and integration. It runs under the store lock so it never
// observes a torn insert, and it reports far-offscreen nodes for
// removal within the same tick.
func (s *Store) Step(dtMs float64) {
	if dtMs <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dt := dtMs / 1000
	now := s.now()
	cx := float64(s.cfg.Width) / 2
	cy := float64(s.cfg.Height) / 2

	// Spring attraction, and degree bookkeeping for the center pull.
	degree := make(map[string]int, len(s.nodes))
	for _, e := range s.edges {
		a := s.nodes[e.Source]
		b := s.nodes[e.Target]
		degree[e.Source]++
		degree[e.Target]++

		dx := b.X - a.X
		dy := b.Y - a.Y
		dist := math.Sqrt(dx*dx + dy*dy)
		if dist < physicsEpsilon {
			dist = physicsEpsilon
			dx = physicsEpsilon
		}
		f := (dist - springRestLength) * s.cfg.PullStrength * dt
		nx := dx / dist
		ny := dy / dist
		a.VX += nx * f
		a.VY += ny * f
		b.VX -= nx * f
		b.VY -= ny * f
	}

	nodes := make([]*Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, n)
	}

	// Pairwise repulsion: the continuous analogue of the placement
	// resolver's one-shot collision avoidance.
	spacing := s.cfg.MinNodeSpacingPx
	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			a, b := nodes[i], nodes[j]
			dx := b.X - a.X
			dy := b.Y - a.Y
			minDist := a.Radius + b.Radius + spacing
			dist := math.Sqrt(dx*dx + dy*dy)
			if dist >= minDist {
				continue
			}
			if dist < physicsEpsilon {
				dist = physicsEpsilon
				dx = physicsEpsilon
			}
			f := (minDist - dist) * s.cfg.RepulsionStrength * dt
			nx := dx / dist
			ny := dy / dist
			a.VX -= nx * f
			a.VY -= ny * f
			b.VX += nx * f
			b.VY += ny * f
		}
	}

	driftAfter := time.Duration(s.cfg.DriftAfterMs) * time.Millisecond
	for _, n := range nodes {
		// Weak pull keeps the connected subgraph on-screen.
		if degree[n.ID] > 0 {
			n.VX += (cx - n.X) * centerPullFactor * s.cfg.PullStrength * dt * 60
			n.VY += (cy - n.Y) * centerPullFactor * s.cfg.PullStrength * dt * 60
		}

		// Idle nodes drift toward the periphery, visually signaling
		// impending expiry. Fresh activity clears the flag in touch.
		if now.Sub(n.LastActiveAt) > driftAfter {
			n.Drifting = true
			dx := n.X - cx
			dy := n.Y - cy
			dist := math.Sqrt(dx*dx + dy*dy)
			if dist < physicsEpsilon {
				dist = physicsEpsilon
				dx = physicsEpsilon
			}
			n.VX += dx / dist * s.cfg.DriftStrength * dt
			n.VY += dy / dist * s.cfg.DriftStrength * dt
		}

		// Damping is the only mechanism that brings the system to
		// rest; applied every tick.
		n.VX *= s.cfg.DampingFactor
		n.VY *= s.cfg.DampingFactor

		x := n.X + n.VX*dt*60
		y := n.Y + n.VY*dt*60
		if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
			// Never let a numerical blowup reach position state.
			n.VX = 0
			n.VY = 0
			continue
		}
		n.X = x
		n.Y = y
	}

	// Removal side-channel: physics owns the far-offscreen case,
	// expiry owns the inactive case.
	margin := s.cfg.OffscreenMarginPx
	var gone []string
	for _, n := range nodes {
		if n.X < -margin || n.X > float64(s.cfg.Width)+margin ||
			n.Y < -margin || n.Y > float64(s.cfg.Height)+margin {
			gone = append(gone, n.ID)
		}
	}
	for _, id := range gone {
		s.removeNodeLocked(id, EvictOffscreen)
	}
	if len(gone) > 0 {
		log.Printf("[physics] removed %d node(s) that drifted offscreen", len(gone))
	}
}
