package flowgraph

import (
	"log"
	"sync"
)

// throttle decouples arrival rate from processing rate: Submit never
// blocks, a fixed-interval drain releases rate-capped batches, and
// events beyond the hard ceiling are dropped with a counted metric so
// a sustained burst cannot grow memory without bound.
type throttle struct {
	mu    sync.Mutex
	buf   []FlowEvent
	limit int
	obs   Observer

	// logged rides the mutex; it de-noises overflow logging to one
	// line per full-buffer episode.
	logged bool
}

func newThrottle(limit int, obs Observer) *throttle {
	return &throttle{limit: limit, obs: obs}
}

// submit buffers one event, dropping it if the buffer is full.
// Backpressure is not an error condition.
func (t *throttle) submit(ev FlowEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.buf) >= t.limit {
		t.obs.EventDropped(DropOverflow)
		if !t.logged {
			log.Printf("[ingest] buffer full (%d events), dropping until drained", t.limit)
			t.logged = true
		}
		return
	}
	t.buf = append(t.buf, ev)
}

// drain removes and returns at most max events, oldest first.
func (t *throttle) drain(max int) []FlowEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.buf) == 0 {
		return nil
	}
	n := max
	if n > len(t.buf) {
		n = len(t.buf)
	}
	batch := make([]FlowEvent, n)
	copy(batch, t.buf[:n])
	t.buf = append(t.buf[:0], t.buf[n:]...)
	t.logged = false
	return batch
}

// clear discards everything buffered.
func (t *throttle) clear() {
	t.mu.Lock()
	t.buf = t.buf[:0]
	t.logged = false
	t.mu.Unlock()
}

func (t *throttle) pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buf)
}
