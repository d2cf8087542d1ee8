package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newThreadsCmd() *cobra.Command {
	var settle time.Duration

	cmd := &cobra.Command{
		Use:   "threads",
		Short: "Start the demo engine and list its worker threads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			threadsCfg := cfg
			threadsCfg.Demo.Frames = 0
			threadsCfg.Demo.Output = ""

			d, err := newDemo(cmd.Context(), threadsCfg, logger)
			if err != nil {
				return err
			}
			if err := d.start(); err != nil {
				return err
			}

			deadline := time.Now().Add(settle)
			for !allAlive(d) && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%-12s %-9s %-10s %-6s %s\n", "WORKER", "TIER", "OS THREAD", "ALIVE", "GROUPS")
			for _, info := range d.engine.Threads() {
				fmt.Fprintf(w, "%-12s %-9s %-10d %-6t %s\n", info.Name, info.Tier, info.OSThreadID, info.Alive, strings.Join(info.Groups, ","))
			}
			return d.stop()
		},
	}

	cmd.Flags().DurationVar(&settle, "settle", time.Second, "How long to wait for every worker to start")
	return cmd
}

func allAlive(d *demo) bool {
	for _, info := range d.engine.Threads() {
		if !info.Alive {
			return false
		}
	}
	return true
}
