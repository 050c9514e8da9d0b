package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"upcase/internal/daemonctl"
	"upcase/internal/preflight"
)

const stopGrace = 5 * time.Second

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the upcased daemon and remove its public FIFO",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			cfg := ctx.configValue()
			result, err := daemonctl.StopAndTerminate(cfg, stopGrace+cfg.ShutdownGrace())
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(stdout, "Daemon ignored SIGTERM, killed process (pid %d)\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and file locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := daemonctl.BuildStatus(ctx.configValue())
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			for _, line := range statusLines(status, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)
			for _, line := range checkLines(preflight.RunAll(ctx.configValue()), colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)
			fmt.Fprintln(stdout, renderPathTable(pathRows(status, ctx.forwardedConfigPath())))
			return nil
		},
	}

	return []*cobra.Command{stopCmd, statusCmd}
}
