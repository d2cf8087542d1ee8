package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/osmike/pacer"
	"github.com/osmike/pacer/internal/logging"
	"github.com/osmike/pacer/internal/softgl"
)

func main() {
	window := softgl.NewWindow(320, 240, 120, "quick.png")
	scene := softgl.NewScene(320, 240, 6)
	pipeline := softgl.NewPipeline(window, scene)
	defer window.Close()

	e, err := pacer.New(context.Background(), pacer.Config{
		FrameCap:       60,
		OnRenderThread: window.Init,
		Logger:         logging.NewLogger(slog.LevelInfo, "text"),
	}, window, pipeline)
	if err != nil {
		panic(err)
	}

	if _, err := e.CreateGroup("stats", pacer.Low); err != nil {
		panic(err)
	}
	if _, err := e.CreateWorker(pacer.Low, "stats"); err != nil {
		panic(err)
	}
	_, err = e.SubmitTask(func(time.Duration, int) error {
		fmt.Printf("frames: %d, dropped: %d, last assembly wait: %v\n",
			e.FramesDrawn(), e.DroppedFrameCount(), e.LastAssemblyWaitDuration())
		return nil
	}, pacer.Low, "stats", pacer.Infinite, 500*time.Millisecond)
	if err != nil {
		panic(err)
	}

	if err := e.Start(); err != nil {
		panic(err)
	}
	<-e.Wait()
	fmt.Printf("metrics: %v\n", e.Metrics())
}
