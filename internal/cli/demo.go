package cli

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/osmike/pacer"
	"github.com/osmike/pacer/internal/config"
	"github.com/osmike/pacer/internal/softgl"
)

const (
	physicsGroup      = "physics"
	housekeepingGroup = "housekeeping"
	physicsStep       = 10 * time.Millisecond
	housekeepingEvery = 500 * time.Millisecond
)

// demo is an engine wired to the software window with a small, fixed
// workload: a High physics group and a Low housekeeping group sharing one
// worker, next to the render worker.
type demo struct {
	window   *softgl.Window
	scene    *softgl.Scene
	pipeline *softgl.Pipeline
	engine   *pacer.Engine

	physicsSteps atomic.Int64
	sweeps       atomic.Int64
	started      time.Time
}

func newDemo(ctx context.Context, cfg config.Config, logger *slog.Logger) (*demo, error) {
	d := &demo{
		window: softgl.NewWindow(cfg.Demo.Width, cfg.Demo.Height, cfg.Demo.Frames, cfg.Demo.Output),
		scene:  softgl.NewScene(cfg.Demo.Width, cfg.Demo.Height, cfg.Demo.Shapes),
	}
	d.pipeline = softgl.NewPipeline(d.window, d.scene)

	e, err := pacer.New(ctx, pacer.Config{
		FrameCap:       cfg.FrameCap,
		IdlePoll:       cfg.IdlePoll,
		OnRenderThread: d.window.Init,
		Logger:         logger,
	}, d.window, d.pipeline)
	if err != nil {
		return nil, err
	}
	d.engine = e

	if _, err := e.CreateGroup(physicsGroup, pacer.High); err != nil {
		return nil, err
	}
	if _, err := e.CreateGroup(housekeepingGroup, pacer.Low); err != nil {
		return nil, err
	}
	if _, err := e.CreateWorker(pacer.High, physicsGroup, housekeepingGroup); err != nil {
		return nil, err
	}

	if _, err := e.SubmitTask(func(time.Duration, int) error {
		d.physicsSteps.Add(1)
		return nil
	}, pacer.High, physicsGroup, pacer.Infinite, physicsStep); err != nil {
		return nil, err
	}
	if _, err := e.SubmitTask(func(time.Duration, int) error {
		d.sweeps.Add(1)
		logger.Debug("housekeeping", "frames", e.FramesDrawn(), "dropped", e.DroppedFrameCount(), "tasks", len(e.Metrics()))
		return nil
	}, pacer.Low, housekeepingGroup, pacer.Infinite, housekeepingEvery); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *demo) start() error {
	d.started = time.Now()
	return d.engine.Start()
}

// stop shuts the engine down and releases the window, saving the last frame
// when an output path is configured.
func (d *demo) stop() error {
	if err := d.engine.Shutdown(); err != nil {
		return err
	}
	return d.window.Close()
}
