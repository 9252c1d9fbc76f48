// flow-gen serves a synthetic flow-event stream over a websocket, so a
// viewer can be pointed at -feed ws://localhost:8081/flows during
// development instead of a live tap.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flowscope/flowscope/pkg/flowfeed"
	"github.com/flowscope/flowscope/pkg/flowgraph"
)

var (
	listenFlag = flag.String("listen", ":8081", "Listen address")
	rateFlag   = flag.Int("rate", 40, "Events per second per connection")
	hostsFlag  = flag.Int("hosts", 120, "Synthetic host pool size")
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func main() {
	flag.Parse()
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	http.HandleFunc("/flows", serveFlows)
	log.Printf("Serving synthetic flows on ws://%s/flows (%d ev/s)", *listenFlag, *rateFlag)
	if err := http.ListenAndServe(*listenFlag, nil); err != nil {
		log.Fatal(err)
	}
}

func serveFlows(w http.ResponseWriter, r *http.Request) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}
	log.Printf("Client connected: %s", r.RemoteAddr)
	defer func() {
		c.Close()
		log.Printf("Client disconnected: %s", r.RemoteAddr)
	}()

	// Drain control frames so pings and close messages are handled.
	go func() {
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := make(chan flowgraph.FlowEvent, 64)
	stop := make(chan struct{})
	defer close(stop)

	gen := flowfeed.NewGenerator(*rateFlag, *hostsFlag, func(ev flowgraph.FlowEvent) {
		select {
		case send <- ev:
		default:
			// Slow client: shed events rather than stall the ticker.
		}
	})
	go gen.Run(stop)

	for ev := range send {
		c.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.WriteJSON(ev); err != nil {
			return
		}
	}
}
