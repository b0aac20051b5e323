package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"stabledracor/internal/readiness"
	"stabledracor/internal/system"
)

func newWaitCommand(ctx *commandContext) *cobra.Command {
	var attempts int
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Wait until the local DraCor API answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSystem(func(sys *system.System) error {
				cfg := sys.Config()
				monitor := readiness.New(sys.Local().Ping, nil)
				monitor.Interval = cfg.ReadinessInterval()
				monitor.MaxAttempts = cfg.Readiness.MaxAttempts
				if cmd.Flags().Changed("attempts") {
					monitor.MaxAttempts = attempts
				}
				if cmd.Flags().Changed("interval") {
					monitor.Interval = interval
				}
				if err := monitor.Err(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Local DraCor API is available at %s\n", sys.Local().BaseURL())
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&attempts, "attempts", readiness.DefaultMaxAttempts, "Maximum number of probes")
	cmd.Flags().DurationVar(&interval, "interval", readiness.DefaultInterval, "Pause between probes")
	return cmd
}
