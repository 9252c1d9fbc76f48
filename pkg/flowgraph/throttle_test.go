package flowgraph

import (
	"fmt"
	"testing"
)

func testEvent(src, dst string) FlowEvent {
	return FlowEvent{
		SourceAddress: src,
		DestAddress:   dst,
		Protocol:      "tcp",
		SizeBytes:     100,
		TimestampMs:   1700000000000,
		Provenance:    ProvenanceSynthetic,
	}
}

func TestThrottleDropsBeyondCeiling(t *testing.T) {
	obs := NewCountingObserver()
	th := newThrottle(5, obs)

	for i := 0; i < 8; i++ {
		th.submit(testEvent(fmt.Sprintf("10.0.0.%d", i), "10.0.0.99"))
	}

	if th.pending() != 5 {
		t.Errorf("expected buffer capped at 5, got %d", th.pending())
	}
	if got := obs.Count("events_dropped." + DropOverflow); got != 3 {
		t.Errorf("expected 3 counted overflow drops, got %d", got)
	}
}

func TestDrainReleasesOldestFirst(t *testing.T) {
	th := newThrottle(100, NopObserver{})
	for i := 0; i < 5; i++ {
		th.submit(testEvent(fmt.Sprintf("10.0.0.%d", i), "10.0.0.99"))
	}

	batch := th.drain(3)
	if len(batch) != 3 {
		t.Fatalf("expected batch of 3, got %d", len(batch))
	}
	for i, ev := range batch {
		want := fmt.Sprintf("10.0.0.%d", i)
		if ev.SourceAddress != want {
			t.Errorf("batch[%d] = %s, want %s (oldest first)", i, ev.SourceAddress, want)
		}
	}

	rest := th.drain(100)
	if len(rest) != 2 {
		t.Errorf("expected remaining 2 events, got %d", len(rest))
	}
	if th.drain(10) != nil {
		t.Error("drain of an empty buffer should return nil")
	}
}

func TestThrottleClearDiscardsBuffer(t *testing.T) {
	th := newThrottle(100, NopObserver{})
	th.submit(testEvent("a", "b"))
	th.clear()
	if th.pending() != 0 {
		t.Error("clear should discard buffered events")
	}
}
