package flowgraph

import "errors"

// Provenance values carried on events and surfaced on nodes/edges so
// the viewer can tell captured traffic from generated traffic.
const (
	ProvenanceReal      = "real"
	ProvenanceSynthetic = "synthetic"
)

var (
	ErrMissingAddress = errors.New("flow event missing source or destination address")
	ErrBadTimestamp   = errors.New("flow event has non-positive timestamp")
)

// FlowEvent is one observed network transaction summary. The engine
// treats it as an opaque tuple: no protocol semantics beyond using the
// protocol string for display color.
type FlowEvent struct {
	SourceAddress string `json:"sourceAddress"`
	DestAddress   string `json:"destAddress"`
	Protocol      string `json:"protocol"`
	SizeBytes     int64  `json:"sizeBytes"`
	TimestampMs   int64  `json:"timestampMs"`
	Provenance    string `json:"provenance"`

	// Optional. Zero means unobserved.
	SourcePort int `json:"sourcePort,omitempty"`
	DestPort   int `json:"destPort,omitempty"`
}

// Validate reports whether the event is well-formed. Malformed events
// are counted and dropped by the caller, never propagated as faults.
func (ev FlowEvent) Validate() error {
	if ev.SourceAddress == "" || ev.DestAddress == "" {
		return ErrMissingAddress
	}
	if ev.TimestampMs <= 0 {
		return ErrBadTimestamp
	}
	return nil
}
