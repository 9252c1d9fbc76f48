package flowview

import (
	"fmt"
	"image/color"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/flowscope/flowscope/pkg/flowgraph"
)

var (
	hudBoxFill   = color.RGBA{0, 0, 0, 100}
	hudBoxStroke = color.RGBA{36, 42, 53, 255}
	hudAccent    = flowgraph.ColorTCP
)

// statsPanel derives windowed rates from the counting observer. The
// observer only accumulates; rate = delta / interval, sampled on a
// fixed cadence from the render tick.
type statsPanel struct {
	obs *flowgraph.CountingObserver

	mu         sync.Mutex
	lastSample time.Time
	lastCounts map[string]uint64

	ingestRate float64
	dropRate   float64
	nodes      int
	edges      int
	pending    int
}

func newStatsPanel(obs *flowgraph.CountingObserver) *statsPanel {
	return &statsPanel{obs: obs, lastCounts: make(map[string]uint64)}
}

func (p *statsPanel) tick(engine *flowgraph.Engine) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if !p.lastSample.IsZero() && now.Sub(p.lastSample) < 2*time.Second {
		return
	}
	interval := now.Sub(p.lastSample).Seconds()
	p.lastSample = now

	p.nodes, p.edges = engine.Counts()
	p.pending = engine.Pending()

	if p.obs == nil || interval <= 0 || interval > 30 {
		return
	}
	counts := p.obs.Counts()
	var ingested, dropped uint64
	var lastIngested, lastDropped uint64
	for k, v := range counts {
		switch {
		case k == "events_ingested":
			ingested = v
			lastIngested = p.lastCounts[k]
		case strings.HasPrefix(k, "events_dropped."):
			dropped += v
			lastDropped += p.lastCounts[k]
		}
	}
	p.ingestRate = float64(ingested-lastIngested) / interval
	p.dropRate = float64(dropped-lastDropped) / interval
	p.lastCounts = counts
}

func (p *statsPanel) snapshot() (ingest, drop float64, nodes, edges, pending int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ingestRate, p.dropRate, p.nodes, p.edges, p.pending
}

func (v *View) drawHUD(screen *ebiten.Image, snap flowgraph.Snapshot) {
	if v.fontSource == nil {
		return
	}
	margin, fontSize := 40.0, 18.0
	if v.Width > 2000 {
		margin, fontSize = 80.0, 36.0
	}
	face := &text.GoTextFace{Source: v.fontSource, Size: fontSize}
	titleFace := &text.GoTextFace{Source: v.fontSource, Size: fontSize * 0.8}
	monoFace := &text.GoTextFace{Source: v.monoSource, Size: fontSize}

	v.drawLegend(screen, margin, fontSize, face, titleFace)
	v.drawRates(screen, margin, fontSize, monoFace, titleFace)
	v.drawTopTalkers(screen, snap, margin, fontSize, face, monoFace, titleFace)
}

func (v *View) drawBox(screen *ebiten.Image, x, y, w, h, fontSize float64, title string, titleFace *text.GoTextFace) {
	vector.DrawFilledRect(screen, float32(x-10), float32(y-fontSize-15), float32(w), float32(h), hudBoxFill, false)
	vector.StrokeRect(screen, float32(x-10), float32(y-fontSize-15), float32(w), float32(h), 1, hudBoxStroke, false)
	vector.DrawFilledRect(screen, float32(x-10), float32(y-fontSize-15), 4, float32(fontSize+10), hudAccent, false)

	op := &text.DrawOptions{}
	op.GeoM.Translate(x+5, y-fontSize-5)
	op.ColorScale.Scale(1, 1, 1, 0.5)
	text.Draw(screen, title, titleFace, op)
}

func (v *View) drawLegend(screen *ebiten.Image, margin, fontSize float64, face, titleFace *text.GoTextFace) {
	items := []struct {
		Label string
		Color color.RGBA
	}{
		{"TCP", flowgraph.ColorTCP},
		{"UDP", flowgraph.ColorUDP},
		{"ICMP", flowgraph.ColorICMP},
		{"Other", flowgraph.ColorOther},
		{"Synthetic host", flowgraph.ColorSynthetic},
	}

	spacing := fontSize + 10
	boxW := 260.0
	if v.Width > 2000 {
		boxW = 520.0
	}
	boxH := float64(len(items))*spacing + fontSize + 25

	lx := margin
	ly := float64(v.Height) - margin - boxH + fontSize + 15
	v.drawBox(screen, lx, ly, boxW, boxH, fontSize, "LEGEND", titleFace)

	if v.nodeImage == nil {
		return
	}
	imgW := v.nodeImage.Bounds().Dx()
	halfW := float64(imgW) / 2
	swatch := fontSize

	for i, it := range items {
		y := ly + 10 + float64(i)*spacing
		r, g, b := float64(it.Color.R)/255.0, float64(it.Color.G)/255.0, float64(it.Color.B)/255.0

		op := &ebiten.DrawImageOptions{}
		op.Blend = ebiten.BlendLighter
		scale := swatch / float64(imgW)
		op.GeoM.Translate(-halfW, -halfW)
		op.GeoM.Scale(scale, scale)
		op.GeoM.Translate(lx+swatch/2, y+fontSize/2)
		op.ColorScale.Scale(float32(r*0.8), float32(g*0.8), float32(b*0.8), 0.8)
		screen.DrawImage(v.nodeImage, op)

		top := &text.DrawOptions{}
		top.GeoM.Translate(lx+swatch+15, y)
		top.ColorScale.Scale(1, 1, 1, 0.8)
		text.Draw(screen, it.Label, face, top)
	}
}

func (v *View) drawRates(screen *ebiten.Image, margin, fontSize float64, monoFace, titleFace *text.GoTextFace) {
	ingest, drop, nodes, edges, pending := v.stats.snapshot()
	rows := []string{
		fmt.Sprintf("ingest  %7.1f ev/s", ingest),
		fmt.Sprintf("dropped %7.1f ev/s", drop),
		fmt.Sprintf("nodes   %7d", nodes),
		fmt.Sprintf("edges   %7d", edges),
		fmt.Sprintf("pending %7d", pending),
	}

	spacing := fontSize + 8
	boxW := 300.0
	if v.Width > 2000 {
		boxW = 600.0
	}
	boxH := float64(len(rows))*spacing + fontSize + 25

	x := float64(v.Width) - margin - boxW
	y := margin + fontSize + 15
	v.drawBox(screen, x, y, boxW, boxH, fontSize, "THROUGHPUT", titleFace)

	for i, row := range rows {
		op := &text.DrawOptions{}
		op.GeoM.Translate(x, y+10+float64(i)*spacing)
		op.ColorScale.Scale(1, 1, 1, 0.8)
		text.Draw(screen, row, monoFace, op)
	}
}

func (v *View) drawTopTalkers(screen *ebiten.Image, snap flowgraph.Snapshot, margin, fontSize float64, face, monoFace, titleFace *text.GoTextFace) {
	nodes := make([]flowgraph.SnapshotNode, len(snap.Nodes))
	copy(nodes, snap.Nodes)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Bytes > nodes[j].Bytes })
	maxItems := 5
	if len(nodes) < maxItems {
		maxItems = len(nodes)
	}
	if maxItems == 0 {
		return
	}

	spacing := fontSize * 1.2
	boxW := 340.0
	if v.Width > 2000 {
		boxW = 680.0
	}
	boxH := float64(maxItems)*spacing + fontSize + 25

	x := margin
	y := float64(v.Height)/2.0 - boxH/2
	v.drawBox(screen, x, y, boxW, boxH, fontSize, "TOP TALKERS (bytes)", titleFace)

	for i := 0; i < maxItems; i++ {
		n := nodes[i]
		rowY := y + 10 + float64(i)*spacing

		label := n.Label
		const maxLen = 24
		if len(label) > maxLen {
			label = label[:maxLen-3] + "..."
		}
		nameOp := &text.DrawOptions{}
		nameOp.GeoM.Translate(x, rowY)
		nameOp.ColorScale.Scale(1, 1, 1, 0.8)
		text.Draw(screen, label, face, nameOp)

		byteStr := formatBytes(n.Bytes)
		tw, _ := text.Measure(byteStr, monoFace, 0)
		byteOp := &text.DrawOptions{}
		byteOp.GeoM.Translate(x+boxW-tw-25, rowY)
		byteOp.ColorScale.Scale(1, 1, 1, 0.6)
		text.Draw(screen, byteStr, monoFace, byteOp)
	}
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
