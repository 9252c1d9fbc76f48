package flowgraph

import (
	"hash/fnv"
	"log"
	"math"
	"math/rand"
	"net"
	"strings"
)

// placer computes the initial position for a newly created node.
//
// Phase one derives a deterministic seed from address structure: the
// leading octet selects an angular sector around the viewport center,
// so hosts sharing a prefix cluster together, and the base radius
// grows with how many nodes already occupy the same /16 class, so the
// center cannot crowd as the graph fills. Phase two repairs
// collisions with a bounded outward spiral search; if that budget is
// exhausted the node takes a randomized-but-separated offset, which is
// logged and counted as a degraded placement rather than failing.
//
// Hash/seed placement alone overlaps as density rises; pure random
// placement destroys the topological clustering the seed provides.
type placer struct {
	cfg *Config
}

const (
	placeBaseRadius   = 120.0
	placeMaxAttempts  = 36
	placeGoldenAngle  = 2.39996322972865332
	placeSectorSpread = math.Pi / 4
)

func newPlacer(cfg *Config) *placer {
	return &placer{cfg: cfg}
}

// place returns coordinates for id, avoiding overlap with existing
// placed nodes. The boolean reports the documented fallback path.
func (p *placer) place(id string, existing map[string]*Node) (x, y float64, degraded bool) {
	// Spacing is a live tunable: re-read per call so an adjusted
	// value applies to subsequently created nodes without a restart.
	spacing := p.cfg.MinNodeSpacingPx
	cx := float64(p.cfg.Width) / 2
	cy := float64(p.cfg.Height) / 2

	angle, radius := p.seed(id, existing)
	x = cx + radius*math.Cos(angle)
	y = cy + radius*math.Sin(angle)
	if p.clear(x, y, spacing, existing) {
		return x, y, false
	}

	// Spiral outward at a rotating angle until a free slot appears.
	for attempt := 1; attempt <= placeMaxAttempts; attempt++ {
		r := radius + float64(attempt)*spacing*0.6
		a := angle + float64(attempt)*placeGoldenAngle
		x = cx + r*math.Cos(a)
		y = cy + r*math.Sin(a)
		if p.clear(x, y, spacing, existing) {
			return x, y, false
		}
	}

	// Explicit degradation: a random offset at least twice the
	// minimum separation away from the exhausted seed.
	dist := spacing * (2 + rand.Float64())
	a := rand.Float64() * 2 * math.Pi
	x = cx + radius*math.Cos(angle) + dist*math.Cos(a)
	y = cy + radius*math.Sin(angle) + dist*math.Sin(a)
	log.Printf("[placement] spiral search exhausted for %s after %d attempts, using randomized offset", id, placeMaxAttempts)
	return x, y, true
}

// seed maps address structure to an angle and base radius. This phase
// is a pure function of the id and the population of its /16 class.
func (p *placer) seed(id string, existing map[string]*Node) (angle, radius float64) {
	ip := net.ParseIP(strings.TrimSpace(id))
	if v4 := ip.To4(); v4 != nil {
		sector := 2 * math.Pi * float64(v4[0]) / 256
		// Deterministic offset inside the sector from the full id,
		// so hosts in one /8 fan out instead of stacking.
		frac := float64(hashID(id)%1000) / 1000
		angle = sector + (frac-0.5)*placeSectorSpread
		class := classCount(v4, existing)
		radius = placeBaseRadius + math.Sqrt(float64(class))*p.cfg.MinNodeSpacingPx*0.9
		return angle, radius
	}

	// Non-address ids fall back to a stable hash-derived slot.
	h := hashID(id)
	angle = 2 * math.Pi * float64(h%4096) / 4096
	radius = placeBaseRadius + math.Sqrt(float64(len(existing)))*p.cfg.MinNodeSpacingPx*0.9
	return angle, radius
}

// classCount counts existing nodes sharing the candidate's /16.
func classCount(v4 net.IP, existing map[string]*Node) int {
	count := 0
	for id := range existing {
		other := net.ParseIP(id)
		if o4 := other.To4(); o4 != nil && o4[0] == v4[0] && o4[1] == v4[1] {
			count++
		}
	}
	return count
}

func (p *placer) clear(x, y, spacing float64, existing map[string]*Node) bool {
	for _, n := range existing {
		dx := n.X - x
		dy := n.Y - y
		if dx*dx+dy*dy < spacing*spacing {
			return false
		}
	}
	return true
}

func hashID(id string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(id))
	return h.Sum32()
}
