package flowgraph

import (
	"log"
	"sync"
	"time"
)

// Engine wires the throttle, store, expiry sweep, and physics into one
// instance. Callers run the two loops as goroutines:
//
//	go engine.StartIngestLoop()
//	go engine.StartSweepLoop()
//
// and call Step from their render tick and Snapshot from their draw.
type Engine struct {
	cfg    *Config
	obs    Observer
	store  *Store
	ingest *throttle

	stop     chan struct{}
	stopOnce sync.Once
}

func NewEngine(cfg *Config, obs Observer) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg.applyDefaults()
	}
	if obs == nil {
		obs = NopObserver{}
	}
	return &Engine{
		cfg:    cfg,
		obs:    obs,
		store:  NewStore(cfg, obs),
		ingest: newThrottle(cfg.IngestBufferLimit, obs),
		stop:   make(chan struct{}),
	}
}

func (e *Engine) Config() *Config { return e.cfg }

// SetPinFunc installs the eviction-exemption predicate consumed during
// eviction decisions.
func (e *Engine) SetPinFunc(f PinFunc) { e.store.SetPinFunc(f) }

// Submit accepts one flow observation and never blocks. Malformed
// input is counted and dropped, not propagated.
func (e *Engine) Submit(ev FlowEvent) {
	if err := ev.Validate(); err != nil {
		e.obs.EventDropped(DropMalformed)
		return
	}
	e.ingest.submit(ev)
}

// StartIngestLoop drains the throttle on a fixed timer until Stop.
func (e *Engine) StartIngestLoop() {
	ticker := time.NewTicker(time.Duration(e.cfg.IngestTickMs) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			e.ingestTick()
		}
	}
}

// ingestTick releases one rate-capped batch into the store. The
// generation is read before draining so a batch that straddles a
// Clear is discarded rather than repopulating a cleared store.
func (e *Engine) ingestTick() {
	gen := e.store.Generation()
	batch := e.ingest.drain(e.cfg.IngestBatchSize)
	if len(batch) == 0 {
		return
	}
	e.store.ApplyBatch(batch, gen)
}

// StartSweepLoop runs the expiry sweep on its own, coarser timer.
func (e *Engine) StartSweepLoop() {
	ticker := time.NewTicker(time.Duration(e.cfg.SweepTickMs) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			e.store.Sweep()
		}
	}
}

// Step advances the physics simulation; call once per render tick.
func (e *Engine) Step(dtMs float64) { e.store.Step(dtMs) }

// Snapshot returns a consistent copy of the graph for one frame.
func (e *Engine) Snapshot() Snapshot { return e.store.Snapshot() }

// Counts returns live node and edge counts.
func (e *Engine) Counts() (nodes, edges int) { return e.store.Counts() }

// Pending returns how many events sit in the ingest buffer.
func (e *Engine) Pending() int { return e.ingest.pending() }

// SetLabel updates a node's display label after enrichment.
func (e *Engine) SetLabel(id, label string) { e.store.SetLabel(id, label) }

// Clear empties the graph and invalidates in-flight batches. The
// buffer is cleared before the generation bump so a drain between the
// two cannot hand stale events a fresh generation.
func (e *Engine) Clear() {
	e.ingest.clear()
	e.store.Clear()
	log.Printf("[engine] graph cleared")
}

// Stop terminates the ingest and sweep loops.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
}
