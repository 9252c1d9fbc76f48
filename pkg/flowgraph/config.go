// Package flowgraph maintains a live, bounded graph of hosts and flows
// built from a stream of network-flow observations. It owns ingestion
// throttling, node/edge lifecycle with TTL and capacity eviction,
// collision-free initial placement, and a continuous force simulation
// that keeps the layout legible independent of ingestion rate.
package flowgraph

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every runtime tunable of the engine. Reasonable people
// disagree about almost all of these numbers, so none of them are
// hard-coded anywhere else.
type Config struct {
	// Capacity ceilings enforced after every sweep.
	MaxNodes int `yaml:"maxNodes"`
	MaxEdges int `yaml:"maxEdges"`

	// Expiry. A node fades after NodeFadeMs without activity and is
	// removed after NodeHardExpiryMs. Edges live shorter than nodes:
	// flows are more transient than hosts.
	NodeFadeMs       int `yaml:"nodeFadeMs"`
	NodeHardExpiryMs int `yaml:"nodeHardExpiryMs"`
	EdgeExpiryMs     int `yaml:"edgeExpiryMs"`

	// Placement and physics.
	MinNodeSpacingPx  float64 `yaml:"minNodeSpacingPx"`
	PullStrength      float64 `yaml:"pullStrength"`
	RepulsionStrength float64 `yaml:"repulsionStrength"`
	DampingFactor     float64 `yaml:"dampingFactor"`
	DriftStrength     float64 `yaml:"driftStrength"`
	DriftAfterMs      int     `yaml:"driftAfterMs"`

	// Ingestion throttle.
	IngestBatchSize   int `yaml:"ingestBatchSize"`
	IngestTickMs      int `yaml:"ingestTickMs"`
	IngestBufferLimit int `yaml:"ingestBufferLimit"`

	// Expiry sweep cadence, deliberately coarser than ingestion.
	SweepTickMs int `yaml:"sweepTickMs"`

	// Logical viewport. Placement seeds inside it, physics pulls the
	// connected subgraph toward its center, and nodes that drift
	// further than OffscreenMarginPx outside it are removed.
	Width             int     `yaml:"width"`
	Height            int     `yaml:"height"`
	OffscreenMarginPx float64 `yaml:"offscreenMarginPx"`
}

func DefaultConfig() *Config {
	return &Config{
		MaxNodes:          500,
		MaxEdges:          1500,
		NodeFadeMs:        30000,
		NodeHardExpiryMs:  60000,
		EdgeExpiryMs:      10000,
		MinNodeSpacingPx:  26,
		PullStrength:      0.06,
		RepulsionStrength: 0.9,
		DampingFactor:     0.85,
		DriftStrength:     14,
		DriftAfterMs:      10000,
		IngestBatchSize:   200,
		IngestTickMs:      50,
		IngestBufferLimit: 5000,
		SweepTickMs:       1000,
		Width:             1920,
		Height:            1080,
		OffscreenMarginPx: 400,
	}
}

// LoadConfig reads a YAML config file and fills any missing values with
// defaults. A missing file is not an error: callers get pure defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.MaxNodes <= 0 {
		c.MaxNodes = d.MaxNodes
	}
	if c.MaxEdges <= 0 {
		c.MaxEdges = d.MaxEdges
	}
	if c.NodeFadeMs <= 0 {
		c.NodeFadeMs = d.NodeFadeMs
	}
	if c.NodeHardExpiryMs <= 0 {
		c.NodeHardExpiryMs = d.NodeHardExpiryMs
	}
	if c.EdgeExpiryMs <= 0 {
		c.EdgeExpiryMs = d.EdgeExpiryMs
	}
	if c.MinNodeSpacingPx <= 0 {
		c.MinNodeSpacingPx = d.MinNodeSpacingPx
	}
	if c.PullStrength <= 0 {
		c.PullStrength = d.PullStrength
	}
	if c.RepulsionStrength <= 0 {
		c.RepulsionStrength = d.RepulsionStrength
	}
	if c.DampingFactor <= 0 || c.DampingFactor >= 1 {
		c.DampingFactor = d.DampingFactor
	}
	if c.DriftStrength <= 0 {
		c.DriftStrength = d.DriftStrength
	}
	if c.DriftAfterMs <= 0 {
		c.DriftAfterMs = d.DriftAfterMs
	}
	if c.IngestBatchSize <= 0 {
		c.IngestBatchSize = d.IngestBatchSize
	}
	if c.IngestTickMs <= 0 {
		c.IngestTickMs = d.IngestTickMs
	}
	if c.IngestBufferLimit <= 0 {
		c.IngestBufferLimit = d.IngestBufferLimit
	}
	if c.SweepTickMs <= 0 {
		c.SweepTickMs = d.SweepTickMs
	}
	if c.Width <= 0 {
		c.Width = d.Width
	}
	if c.Height <= 0 {
		c.Height = d.Height
	}
	if c.OffscreenMarginPx <= 0 {
		c.OffscreenMarginPx = d.OffscreenMarginPx
	}
}
