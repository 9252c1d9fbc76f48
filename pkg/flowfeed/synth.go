package flowfeed

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/flowscope/flowscope/pkg/flowgraph"
)

// Generator emits plausible synthetic flow events at a fixed rate. It
// keeps a stable host population so the resulting graph develops
// hubs and repeat flows instead of pure noise.
type Generator struct {
	Rate    int // events per second
	Hosts   int // size of the stable address pool
	OnEvent func(flowgraph.FlowEvent)

	rng   *rand.Rand
	pool  []string
	ports []int
}

func NewGenerator(rate, hosts int, onEvent func(flowgraph.FlowEvent)) *Generator {
	if rate <= 0 {
		rate = 20
	}
	if hosts <= 0 {
		hosts = 120
	}
	g := &Generator{
		Rate:    rate,
		Hosts:   hosts,
		OnEvent: onEvent,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		ports:   []int{22, 53, 80, 123, 443, 3306, 5432, 8080},
	}
	g.pool = g.buildPool(hosts)
	return g
}

// buildPool spreads hosts over a handful of /16s so placement gets
// distinct sectors and visible prefix clusters.
func (g *Generator) buildPool(hosts int) []string {
	prefixes := []string{"10.20", "44.31", "98.12", "151.40", "203.113"}
	pool := make([]string, 0, hosts)
	for i := 0; i < hosts; i++ {
		p := prefixes[i%len(prefixes)]
		pool = append(pool, fmt.Sprintf("%s.%d.%d", p, g.rng.Intn(4), g.rng.Intn(250)+1))
	}
	return pool
}

// Next returns one synthetic event. A small set of hosts acts as
// servers and attracts most destination picks.
func (g *Generator) Next() flowgraph.FlowEvent {
	src := g.pool[g.rng.Intn(len(g.pool))]
	var dst string
	if g.rng.Float64() < 0.6 {
		// Hub traffic: the first few hosts take most connections.
		dst = g.pool[g.rng.Intn(5)]
	} else {
		dst = g.pool[g.rng.Intn(len(g.pool))]
	}

	proto := "tcp"
	switch r := g.rng.Float64(); {
	case r < 0.15:
		proto = "udp"
	case r < 0.18:
		proto = "icmp"
	}

	port := g.ports[g.rng.Intn(len(g.ports))]
	return flowgraph.FlowEvent{
		SourceAddress: src,
		DestAddress:   dst,
		Protocol:      proto,
		SizeBytes:     int64(g.rng.Intn(60000) + 64),
		TimestampMs:   time.Now().UnixMilli(),
		Provenance:    flowgraph.ProvenanceSynthetic,
		SourcePort:    g.rng.Intn(60000) + 1024,
		DestPort:      port,
	}
}

// Run emits events until the stop channel closes.
func (g *Generator) Run(stop <-chan struct{}) {
	interval := time.Second / time.Duration(g.Rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			g.OnEvent(g.Next())
		}
	}
}
