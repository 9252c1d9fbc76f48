// Package flowfeed moves flow events into the engine: a reconnecting
// websocket client for live feeds and a synthetic generator for demo
// and offline use.
package flowfeed

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flowscope/flowscope/pkg/flowgraph"
)

// Listener consumes a websocket feed of JSON flow records and hands
// each decoded event to OnEvent. It reconnects forever with capped
// exponential backoff until Stop is called.
type Listener struct {
	URL     string
	OnEvent func(flowgraph.FlowEvent)

	stop     chan struct{}
	stopOnce sync.Once

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewListener(url string, onEvent func(flowgraph.FlowEvent)) *Listener {
	return &Listener{
		URL:     url,
		OnEvent: onEvent,
		stop:    make(chan struct{}),
	}
}

// Listen blocks, feeding events until Stop. Run it as a goroutine.
func (l *Listener) Listen() {
	backoff := 1 * time.Second
	var badFrames uint64
	for {
		select {
		case <-l.stop:
			return
		default:
		}

		log.Printf("[feed] connecting to %s", l.URL)
		c, _, err := websocket.DefaultDialer.Dial(l.URL, nil)
		if err != nil {
			log.Printf("[feed] dial error: %v. Retrying in %v...", err, backoff)
			select {
			case <-l.stop:
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > 60*time.Second {
				backoff = 60 * time.Second
			}
			continue
		}
		backoff = 1 * time.Second
		log.Printf("[feed] connected")

		// Publish the live connection so Stop can close it and
		// unblock a read on a silent feed.
		l.mu.Lock()
		l.conn = c
		l.mu.Unlock()
		select {
		case <-l.stop:
			c.Close()
			return
		default:
		}

		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Printf("[feed] read error: %v. Reconnecting...", err)
				break
			}
			var ev flowgraph.FlowEvent
			if err := json.Unmarshal(message, &ev); err != nil {
				badFrames++
				if badFrames == 1 || badFrames%1000 == 0 {
					log.Printf("[feed] skipped %d undecodable frames (latest: %v)", badFrames, err)
				}
				continue
			}
			if ev.Provenance == "" {
				ev.Provenance = flowgraph.ProvenanceReal
			}
			l.OnEvent(ev)
		}
		c.Close()

		select {
		case <-l.stop:
			return
		case <-time.After(time.Second):
		}
	}
}

// Stop terminates the listen loop, closing any live connection so a
// blocked read returns immediately.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() {
		close(l.stop)
		l.mu.Lock()
		if l.conn != nil {
			l.conn.Close()
		}
		l.mu.Unlock()
	})
}
