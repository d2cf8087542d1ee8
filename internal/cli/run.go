package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/osmike/pacer"
)

const progressRefresh = 100 * time.Millisecond

func newRunCmd() *cobra.Command {
	var (
		frames     int
		frameCap   int
		output     string
		noProgress bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the engine against the headless software window",
		Long:  "Run draws the demo scene until the window has presented --frames frames, or until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runCfg := cfg
			if cmd.Flags().Changed("frames") {
				runCfg.Demo.Frames = frames
			}
			if cmd.Flags().Changed("frame-cap") {
				runCfg.FrameCap = frameCap
			}
			if cmd.Flags().Changed("output") {
				runCfg.Demo.Output = output
			}
			if err := runCfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			d, err := newDemo(ctx, runCfg, logger)
			if err != nil {
				return err
			}

			var (
				p   *mpb.Progress
				bar *mpb.Bar
			)
			if !noProgress && runCfg.Demo.Frames > 0 {
				p, bar = newFrameBar(cmd.ErrOrStderr(), int64(runCfg.Demo.Frames))
				// Runs on the render thread while frames wait for assembly.
				if _, err := d.engine.SubmitTask(func(time.Duration, int) error {
					bar.SetCurrent(d.engine.FramesDrawn())
					return nil
				}, pacer.Absolute, pacer.RenderGroup, pacer.Infinite, progressRefresh); err != nil {
					return err
				}
			}

			if err := d.start(); err != nil {
				return err
			}
			logger.Info("engine started", "frame_cap", runCfg.FrameCap, "frames", runCfg.Demo.Frames)

			select {
			case <-d.engine.Wait():
			case <-ctx.Done():
				logger.Info("interrupted")
			}
			elapsed := time.Since(d.started)
			if err := d.stop(); err != nil {
				return err
			}

			if bar != nil {
				if drawn := d.engine.FramesDrawn(); drawn < int64(runCfg.Demo.Frames) {
					bar.Abort(false)
				} else {
					bar.SetCurrent(drawn)
				}
				p.Wait()
			}
			return printSummary(cmd.OutOrStdout(), d, elapsed, runCfg.Demo.Output)
		},
	}

	cmd.Flags().IntVar(&frames, "frames", 0, "Frames to present before closing (0 runs until interrupted)")
	cmd.Flags().IntVar(&frameCap, "frame-cap", 0, "Frames per second (0 is uncapped)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Save the last frame as PNG")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	return cmd
}

func newFrameBar(w io.Writer, total int64) (*mpb.Progress, *mpb.Bar) {
	p := mpb.New(mpb.WithOutput(w), mpb.WithWidth(64), mpb.WithRefreshRate(progressRefresh))
	name := "Rendering"
	bar := p.New(total,
		mpb.BarStyle().Lbound("╢").Filler("█").Tip("█").Padding("░").Rbound("╟"),
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DindentRight}),
			decor.OnComplete(
				decor.AverageETA(decor.ET_STYLE_GO, decor.WC{W: 4}), "Complete",
			),
		),
		mpb.AppendDecorators(
			decor.CountersNoUnit("%d / %d"),
		),
	)
	return p, bar
}

func printSummary(w io.Writer, d *demo, elapsed time.Duration, output string) error {
	e := d.engine
	drawn := e.FramesDrawn()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(drawn) / elapsed.Seconds()
	}

	txt := fmt.Sprintf(`
Run Summary
Frames drawn`+"\t\t"+`: %s
Dropped frames`+"\t\t"+`: %s
Assembly passes`+"\t\t"+`: %s
Assembly failures`+"\t"+`: %s
Opportunistic tasks`+"\t"+`: %s
Physics steps`+"\t\t"+`: %s
Elapsed`+"\t\t\t"+`: %s
Average rate`+"\t\t"+`: %s
`,
		humanize.Comma(drawn),
		humanize.Comma(e.DroppedFrameCount()),
		humanize.Comma(e.AssemblyPasses()),
		humanize.Comma(e.AssemblyFailures()),
		humanize.Comma(e.OpportunisticExecutions()),
		humanize.Comma(d.physicsSteps.Load()),
		elapsed.Round(time.Millisecond),
		humanize.SIWithDigits(rate, 1, "Hz"),
	)
	if output != "" {
		if info, err := os.Stat(output); err == nil {
			txt += fmt.Sprintf("Last frame\t\t: %s (%s)\n", output, humanize.Bytes(uint64(info.Size())))
		}
	}
	_, err := fmt.Fprint(w, txt)
	return err
}
