// Package flowview renders engine snapshots with ebiten. It owns no
// graph state: every frame it steps the simulation, takes a snapshot,
// and draws it.
package flowview

import (
	"bytes"
	"image/color"
	"math"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/flowscope/flowscope/pkg/flowgraph"
)

var backgroundColor = color.RGBA{8, 10, 15, 255}

// View is the ebiten.Game that presents one engine.
type View struct {
	Width, Height int
	FPS           int

	// FrameCaptureDir enables periodic PNG captures when non-empty.
	FrameCaptureDir string

	// OnFrame, when set, receives the finished frame. The streamer
	// uses it to pipe raw frames into ffmpeg.
	OnFrame func(*ebiten.Image)

	engine *flowgraph.Engine
	stats  *statsPanel

	nodeImage  *ebiten.Image
	fontSource *text.GoTextFaceSource
	monoSource *text.GoTextFaceSource

	lastStep      time.Time
	lastCapture   time.Time
	captureEveryS float64

	stepMu sync.Mutex
}

// NewView builds a view over engine. obs may be nil; without it the
// HUD omits its rate rows.
func NewView(engine *flowgraph.Engine, obs *flowgraph.CountingObserver) *View {
	s, _ := text.NewGoTextFaceSource(bytes.NewReader(goregular.TTF))
	m, _ := text.NewGoTextFaceSource(bytes.NewReader(gomono.TTF))

	cfg := engine.Config()
	v := &View{
		Width:         cfg.Width,
		Height:        cfg.Height,
		FPS:           30,
		engine:        engine,
		stats:         newStatsPanel(obs),
		fontSource:    s,
		monoSource:    m,
		captureEveryS: 60,
	}
	v.initNodeTexture()
	return v
}

// initNodeTexture renders the radial disc every node is drawn with: a
// solid core with a cosine falloff rim, tinted per node at draw time.
func (v *View) initNodeTexture() {
	size := 128
	if v.Width > 2000 {
		size = 256
	}
	v.nodeImage = ebiten.NewImage(size, size)
	pixels := make([]byte, size*size*4)
	center, maxDist := float64(size)/2.0, float64(size)/2.0
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := float64(x)-center, float64(y)-center
			dist := math.Sqrt(dx*dx + dy*dy)
			if dist < maxDist {
				val := 1.0
				if dist > maxDist*0.55 {
					val = math.Cos(((dist - maxDist*0.55) / (maxDist * 0.45)) * (math.Pi / 2))
				}
				pixels[(y*size+x)*4+3] = uint8(val * 255)
				pixels[(y*size+x)*4+0], pixels[(y*size+x)*4+1], pixels[(y*size+x)*4+2] = 255, 255, 255
			}
		}
	}
	v.nodeImage.WritePixels(pixels)
}

// Update steps the simulation by the wall-clock delta since the last
// tick, clamped so a stalled window cannot produce one giant step.
func (v *View) Update() error {
	v.stepMu.Lock()
	now := time.Now()
	dtMs := float64(0)
	if !v.lastStep.IsZero() {
		dtMs = float64(now.Sub(v.lastStep).Microseconds()) / 1000.0
	}
	v.lastStep = now
	v.stepMu.Unlock()

	if dtMs > 100 {
		dtMs = 100
	}
	v.engine.Step(dtMs)
	v.stats.tick(v.engine)
	return nil
}

func (v *View) Draw(screen *ebiten.Image) {
	screen.Fill(backgroundColor)

	snap := v.engine.Snapshot()
	v.drawEdges(screen, snap)
	v.drawNodes(screen, snap)
	v.drawHUD(screen, snap)

	if v.OnFrame != nil {
		v.OnFrame(screen)
	}
	if v.FrameCaptureDir != "" {
		now := time.Now()
		if now.Sub(v.lastCapture).Seconds() >= v.captureEveryS {
			v.lastCapture = now
			v.captureFrame(screen, now)
		}
	}
}

func (v *View) drawEdges(screen *ebiten.Image, snap flowgraph.Snapshot) {
	pos := make(map[string][2]float64, len(snap.Nodes))
	for _, n := range snap.Nodes {
		pos[n.ID] = [2]float64{n.X, n.Y}
	}
	for _, e := range snap.Edges {
		a, okA := pos[e.SourceID]
		b, okB := pos[e.TargetID]
		if !okA || !okB {
			continue
		}
		c := e.Color
		c.A = uint8(float64(c.A) * e.Alpha * 0.55)
		vector.StrokeLine(screen, float32(a[0]), float32(a[1]), float32(b[0]), float32(b[1]), 1, c, true)
	}
}

func (v *View) drawNodes(screen *ebiten.Image, snap flowgraph.Snapshot) {
	if v.nodeImage == nil {
		return
	}
	imgW := v.nodeImage.Bounds().Dx()
	halfW := float64(imgW) / 2
	op := &ebiten.DrawImageOptions{}
	op.Blend = ebiten.BlendLighter

	labelFace := &text.GoTextFace{Source: v.monoSource, Size: 12}
	if v.Width > 2000 {
		labelFace.Size = 24
	}

	for _, n := range snap.Nodes {
		alpha := 1.0 - n.Age*0.85
		if n.Drifting {
			alpha *= 0.6
		}

		scale := (n.Radius * 2) / float64(imgW)
		r, g, b := float64(n.Color.R)/255.0, float64(n.Color.G)/255.0, float64(n.Color.B)/255.0
		op.GeoM.Reset()
		op.GeoM.Translate(-halfW, -halfW)
		op.GeoM.Scale(scale, scale)
		op.GeoM.Translate(n.X, n.Y)
		op.ColorScale.Reset()
		op.ColorScale.Scale(float32(r*alpha), float32(g*alpha), float32(b*alpha), float32(alpha))
		screen.DrawImage(v.nodeImage, op)

		// Labels only on the bigger nodes; a wall of text helps nobody.
		if n.Radius >= 9 && n.Age < 0.5 {
			top := &text.DrawOptions{}
			top.GeoM.Translate(n.X+n.Radius+4, n.Y-labelFace.Size/2)
			top.ColorScale.Scale(1, 1, 1, float32(alpha*0.7))
			text.Draw(screen, n.Label, labelFace, top)
		}
	}
}

func (v *View) Layout(w, h int) (int, int) { return v.Width, v.Height }
