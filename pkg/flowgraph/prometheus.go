package flowgraph

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PromObserver exports engine diagnostics as Prometheus counters.
type PromObserver struct {
	eventsIngested     prometheus.Counter
	eventsDropped      *prometheus.CounterVec
	nodesAdded         prometheus.Counter
	nodesEvicted       *prometheus.CounterVec
	edgesAdded         prometheus.Counter
	edgesEvicted       *prometheus.CounterVec
	placementsDegraded prometheus.Counter
	insertsRefused     prometheus.Counter
}

// NewPromObserver registers the engine metrics with reg. Pass a fresh
// registry per engine instance.
func NewPromObserver(reg prometheus.Registerer) *PromObserver {
	f := promauto.With(reg)
	return &PromObserver{
		eventsIngested: f.NewCounter(prometheus.CounterOpts{
			Namespace: "flowscope", Name: "events_ingested_total",
			Help: "Flow events applied to the graph store.",
		}),
		eventsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowscope", Name: "events_dropped_total",
			Help: "Flow events dropped before reaching the store.",
		}, []string{"reason"}),
		nodesAdded: f.NewCounter(prometheus.CounterOpts{
			Namespace: "flowscope", Name: "nodes_added_total",
			Help: "Nodes created in the graph store.",
		}),
		nodesEvicted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowscope", Name: "nodes_evicted_total",
			Help: "Nodes removed from the graph store.",
		}, []string{"reason"}),
		edgesAdded: f.NewCounter(prometheus.CounterOpts{
			Namespace: "flowscope", Name: "edges_added_total",
			Help: "Edges created in the graph store.",
		}),
		edgesEvicted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowscope", Name: "edges_evicted_total",
			Help: "Edges removed from the graph store.",
		}, []string{"reason"}),
		placementsDegraded: f.NewCounter(prometheus.CounterOpts{
			Namespace: "flowscope", Name: "placements_degraded_total",
			Help: "Node placements that fell back to a randomized offset.",
		}),
		insertsRefused: f.NewCounter(prometheus.CounterOpts{
			Namespace: "flowscope", Name: "inserts_refused_total",
			Help: "Node inserts refused because every candidate was pinned.",
		}),
	}
}

func (p *PromObserver) EventIngested()        { p.eventsIngested.Inc() }
func (p *PromObserver) EventDropped(r string) { p.eventsDropped.WithLabelValues(r).Inc() }
func (p *PromObserver) NodeAdded()            { p.nodesAdded.Inc() }
func (p *PromObserver) NodeEvicted(r string)  { p.nodesEvicted.WithLabelValues(r).Inc() }
func (p *PromObserver) EdgeAdded()            { p.edgesAdded.Inc() }
func (p *PromObserver) EdgeEvicted(r string)  { p.edgesEvicted.WithLabelValues(r).Inc() }
func (p *PromObserver) PlacementDegraded()    { p.placementsDegraded.Inc() }
func (p *PromObserver) InsertRefused()        { p.insertsRefused.Inc() }
