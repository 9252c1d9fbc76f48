package flowgraph

import (
	"math"
	"testing"
	"time"
)

const stepDtMs = 1000.0 / 60

func TestDampingConvergesVelocities(t *testing.T) {
	s, _ := newTestStore(nil, nil)
	s.UpsertNode("a", NodeAttrs{})
	s.UpsertNode("b", NodeAttrs{})
	s.UpsertNode("c", NodeAttrs{})

	// Fling everything, keep the nodes active so drift stays out of
	// the picture, and let damping do its job.
	i := 0.0
	for _, n := range s.nodes {
		n.VX = 50 + i
		n.VY = -40 - i
		i += 10
	}

	for i := 0; i < 300; i++ {
		s.Touch("a")
		s.Touch("b")
		s.Touch("c")
		s.Step(stepDtMs)
	}

	for _, n := range s.nodes {
		if math.IsNaN(n.X) || math.IsNaN(n.Y) || math.IsNaN(n.VX) || math.IsNaN(n.VY) {
			t.Fatalf("NaN leaked into simulation state for %s", n.ID)
		}
		if math.Abs(n.VX) > 0.01 || math.Abs(n.VY) > 0.01 {
			t.Errorf("velocity of %s did not converge: (%v, %v)", n.ID, n.VX, n.VY)
		}
	}
}

func TestCoincidentNodesDoNotProduceNaN(t *testing.T) {
	s, _ := newTestStore(nil, nil)
	s.UpsertNode("a", NodeAttrs{})
	s.UpsertNode("b", NodeAttrs{})
	a := s.nodes["a"]
	b := s.nodes["b"]
	b.X, b.Y = a.X, a.Y

	for i := 0; i < 60; i++ {
		s.Step(stepDtMs)
	}

	for _, n := range []*Node{a, b} {
		if math.IsNaN(n.X) || math.IsNaN(n.Y) {
			t.Fatal("zero-distance pair must be guarded by the epsilon floor")
		}
	}
	if d := math.Hypot(a.X-b.X, a.Y-b.Y); d == 0 {
		t.Error("repulsion should separate a coincident pair")
	}
}

func TestSpringPullsConnectedNodesTogether(t *testing.T) {
	s, _ := newTestStore(nil, nil)
	s.UpsertNode("a", NodeAttrs{})
	s.UpsertNode("b", NodeAttrs{})
	s.UpsertEdge("a", "b", EdgeAttrs{Protocol: "tcp"})

	a := s.nodes["a"]
	b := s.nodes["b"]
	cx := float64(s.cfg.Width) / 2
	cy := float64(s.cfg.Height) / 2
	a.X, a.Y = cx-400, cy
	b.X, b.Y = cx+400, cy

	before := math.Hypot(a.X-b.X, a.Y-b.Y)
	for i := 0; i < 120; i++ {
		s.Touch("a")
		s.Touch("b")
		s.Step(stepDtMs)
	}
	after := math.Hypot(a.X-b.X, a.Y-b.Y)

	if after >= before {
		t.Errorf("spring should pull endpoints together: %.1f -> %.1f", before, after)
	}
}

func TestIdleNodeDriftsOutwardAndActivityClearsIt(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DriftAfterMs = 1000
	s, clock := newTestStore(cfg, nil)

	s.UpsertNode("a", NodeAttrs{})
	n := s.nodes["a"]
	cx := float64(cfg.Width) / 2
	cy := float64(cfg.Height) / 2
	n.X, n.Y = cx+50, cy

	clock.advance(2 * time.Second)
	before := math.Hypot(n.X-cx, n.Y-cy)
	for i := 0; i < 30; i++ {
		s.Step(stepDtMs)
	}

	if !n.Drifting {
		t.Fatal("idle node should enter the drift regime")
	}
	if after := math.Hypot(n.X-cx, n.Y-cy); after <= before {
		t.Errorf("drift should push the idle node outward: %.1f -> %.1f", before, after)
	}

	s.Touch("a")
	if n.Drifting {
		t.Error("fresh activity must clear the drift flag immediately")
	}
}

func TestFarOffscreenNodesAreRemoved(t *testing.T) {
	obs := NewCountingObserver()
	s, _ := newTestStore(nil, obs)

	s.UpsertNode("a", NodeAttrs{})
	s.UpsertNode("b", NodeAttrs{})
	s.UpsertEdge("a", "b", EdgeAttrs{})
	s.nodes["a"].X = -(s.cfg.OffscreenMarginPx + float64(s.cfg.Width))

	s.Step(stepDtMs)

	if _, ok := s.nodes["a"]; ok {
		t.Fatal("far-offscreen node should be reported for removal in the same tick")
	}
	if len(s.edges) != 0 {
		t.Error("edges touching the removed node must go with it")
	}
	if got := obs.Count("nodes_evicted." + EvictOffscreen); got != 1 {
		t.Errorf("expected 1 offscreen eviction, got %d", got)
	}
}

func TestStepIgnoresNonPositiveDelta(t *testing.T) {
	s, _ := newTestStore(nil, nil)
	s.UpsertNode("a", NodeAttrs{})
	n := s.nodes["a"]
	x, y := n.X, n.Y

	s.Step(0)
	s.Step(-16)

	if n.X != x || n.Y != y {
		t.Error("non-positive delta must not move anything")
	}
}
