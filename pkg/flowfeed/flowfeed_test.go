package flowfeed

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flowscope/flowscope/pkg/flowgraph"
)

func TestGeneratorEventsValidate(t *testing.T) {
	g := NewGenerator(20, 50, nil)
	for i := 0; i < 500; i++ {
		ev := g.Next()
		if err := ev.Validate(); err != nil {
			t.Fatalf("synthetic event %d invalid: %v (%+v)", i, err, ev)
		}
		if ev.Provenance != flowgraph.ProvenanceSynthetic {
			t.Fatalf("synthetic event carries provenance %q", ev.Provenance)
		}
	}
}

func TestGeneratorKeepsStablePool(t *testing.T) {
	g := NewGenerator(20, 30, nil)
	seen := make(map[string]struct{})
	for i := 0; i < 2000; i++ {
		ev := g.Next()
		seen[ev.SourceAddress] = struct{}{}
		seen[ev.DestAddress] = struct{}{}
	}
	if len(seen) > g.Hosts {
		t.Errorf("generator invented hosts beyond its pool: %d > %d", len(seen), g.Hosts)
	}
}

func TestGeneratorHubBias(t *testing.T) {
	g := NewGenerator(20, 100, nil)
	hubs := make(map[string]struct{}, 5)
	for _, h := range g.pool[:5] {
		hubs[h] = struct{}{}
	}
	hubHits := 0
	const n = 2000
	for i := 0; i < n; i++ {
		if _, ok := hubs[g.Next().DestAddress]; ok {
			hubHits++
		}
	}
	// 60% of picks go straight to the hub set, plus uniform spillover.
	if hubHits < n/3 {
		t.Errorf("expected destination picks to concentrate on hub hosts, got %d/%d", hubHits, n)
	}
}

func TestListenerDeliversAndSkipsMalformed(t *testing.T) {
	upgrader := websocket.Upgrader{}
	frames := []string{
		`{"sourceAddress":"10.0.0.1","destAddress":"10.0.0.2","protocol":"tcp","sizeBytes":100,"timestampMs":1700000000000}`,
		`{not json`,
		`{"sourceAddress":"10.0.0.3","destAddress":"10.0.0.4","protocol":"udp","sizeBytes":50,"timestampMs":1700000000001}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for _, f := range frames {
			if err := c.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	got := make(chan flowgraph.FlowEvent, 8)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	l := NewListener(url, func(ev flowgraph.FlowEvent) { got <- ev })
	go l.Listen()
	defer l.Stop()

	var events []flowgraph.FlowEvent
	timeout := time.After(5 * time.Second)
	for len(events) < 2 {
		select {
		case ev := <-got:
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("timed out with %d events delivered", len(events))
		}
	}

	if events[0].SourceAddress != "10.0.0.1" || events[1].SourceAddress != "10.0.0.3" {
		t.Errorf("events arrived out of order or corrupted: %+v", events)
	}
	for _, ev := range events {
		if ev.Provenance != flowgraph.ProvenanceReal {
			t.Errorf("feed events without provenance should default to real, got %q", ev.Provenance)
		}
	}
}

func TestStopUnblocksSilentFeed(t *testing.T) {
	upgrader := websocket.Upgrader{}
	connected := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		select {
		case connected <- struct{}{}:
		default:
		}
		// Send nothing; hold the connection until the client goes away.
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				c.Close()
				return
			}
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	l := NewListener(url, func(flowgraph.FlowEvent) {})
	done := make(chan struct{})
	go func() {
		l.Listen()
		close(done)
	}()

	select {
	case <-connected:
	case <-time.After(5 * time.Second):
		t.Fatal("listener never connected")
	}
	l.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop must unblock a read on a silent connection")
	}
}

func TestListenerStopIsIdempotent(t *testing.T) {
	l := NewListener("ws://127.0.0.1:1", nil)
	l.Stop()
	l.Stop()

	done := make(chan struct{})
	go func() {
		l.Listen()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Listen should return promptly once stopped")
	}
}
