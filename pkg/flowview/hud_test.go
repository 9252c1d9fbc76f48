package flowview

import (
	"testing"
	"time"

	"github.com/flowscope/flowscope/pkg/flowgraph"
)

func TestStatsPanelComputesWindowedRates(t *testing.T) {
	obs := flowgraph.NewCountingObserver()
	e := flowgraph.NewEngine(nil, obs)
	p := newStatsPanel(obs)

	// First sample establishes the baseline.
	p.tick(e)

	for i := 0; i < 40; i++ {
		obs.EventIngested()
	}
	for i := 0; i < 10; i++ {
		obs.EventDropped(flowgraph.DropOverflow)
	}

	// Force the next tick past the sampling interval.
	p.mu.Lock()
	p.lastSample = time.Now().Add(-2 * time.Second)
	p.mu.Unlock()
	p.tick(e)

	ingest, drop, _, _, _ := p.snapshot()
	if ingest < 15 || ingest > 25 {
		t.Errorf("expected ingest rate near 20 ev/s, got %.1f", ingest)
	}
	if drop < 3 || drop > 7 {
		t.Errorf("expected drop rate near 5 ev/s, got %.1f", drop)
	}
}

func TestStatsPanelToleratesNilObserver(t *testing.T) {
	e := flowgraph.NewEngine(nil, nil)
	p := newStatsPanel(nil)
	p.tick(e)
	p.mu.Lock()
	p.lastSample = time.Now().Add(-3 * time.Second)
	p.mu.Unlock()
	p.tick(e)

	ingest, drop, nodes, edges, pending := p.snapshot()
	if ingest != 0 || drop != 0 || nodes != 0 || edges != 0 || pending != 0 {
		t.Error("nil observer should produce zeroed stats, not a panic")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{3 << 20, "3.0 MB"},
		{5 << 30, "5.0 GB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
