package softgl

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gogpu/gg"

	"github.com/osmike/pacer/internal/domain"
)

// Pipeline draws the scene's latest snapshot into the window's context.
type Pipeline struct {
	window     *Window
	scene      *Scene
	background gg.RGBA

	draws    atomic.Int64
	lastPass atomic.Int64
}

func NewPipeline(window *Window, scene *Scene) *Pipeline {
	return &Pipeline{
		window:     window,
		scene:      scene,
		background: gg.Hex("#101820"),
	}
}

func (p *Pipeline) Scene() domain.Scene {
	return p.scene
}

// Update records one frame. It must run on the window's owning thread.
func (p *Pipeline) Update(_ time.Duration) error {
	dc, err := p.window.Context()
	if err != nil {
		return err
	}
	dc.ClearWithColor(p.background)

	snap := p.scene.Snapshot()
	if snap == nil {
		p.draws.Add(1)
		return nil
	}
	for i, sh := range snap.Shapes {
		if err := p.drawShape(dc, sh); err != nil {
			return fmt.Errorf("draw shape %d of pass %d: %w", i, snap.Pass, err)
		}
	}
	p.lastPass.Store(snap.Pass)
	p.draws.Add(1)
	return nil
}

func (p *Pipeline) drawShape(dc *gg.Context, sh Shape) error {
	dc.Push()
	defer dc.Pop()

	dc.SetColor(gg.HSL(sh.Hue, 0.7, 0.55).Color())
	if sh.Circle {
		dc.DrawCircle(sh.X, sh.Y, sh.Size)
	} else {
		dc.RotateAbout(sh.Angle, sh.X, sh.Y)
		dc.DrawRectangle(sh.X-sh.Size, sh.Y-sh.Size, 2*sh.Size, 2*sh.Size)
	}
	return dc.Fill()
}

// Draws returns the number of recorded frames.
func (p *Pipeline) Draws() int64 {
	return p.draws.Load()
}

// LastPass returns the assembly pass number of the most recently drawn snapshot.
func (p *Pipeline) LastPass() int64 {
	return p.lastPass.Load()
}
