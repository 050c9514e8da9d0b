package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"upcase/internal/daemonctl"
	"upcase/internal/daemonize"
	"upcase/internal/daemonrun"
	"upcase/internal/workers"
)

const startTimeout = 10 * time.Second

func newRootCommand() *cobra.Command {
	var configFlag string
	var strategyFlag string
	var foreground bool

	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "upcased",
		Short:         "FIFO uppercase daemon",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			if value := strings.TrimSpace(strategyFlag); value != "" {
				strategy, err := workers.ParseStrategy(value)
				if err != nil {
					return err
				}
				cfg.Server.Strategy = strategy
			}

			if !foreground {
				launcher := daemonize.Stage() == 0
				if launcher {
					if running, pid, err := daemonctl.ProcessInfo(cfg); err == nil && running {
						return fmt.Errorf("%w (pid %d)", daemonrun.ErrAlreadyRunning, pid)
					}
				}
				final, err := daemonize.Detach(daemonize.Options{Args: detachArgs(ctx, cfg.Server.Strategy)})
				if err != nil {
					return err
				}
				if !final {
					if !launcher {
						return nil
					}
					if err := daemonctl.WaitForStart(cfg, startTimeout); err != nil {
						return err
					}
					_, pid, _ := daemonctl.ProcessInfo(cfg)
					fmt.Fprintf(cmd.OutOrStdout(), "upcased started (pid %d, %s strategy)\n", pid, cfg.Server.Strategy)
					return nil
				}
			}

			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				Foreground: foreground,
				ConfigPath: ctx.forwardedConfigPath(),
			})
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.Flags().StringVar(&strategyFlag, "strategy", "", "Worker strategy: process or thread (overrides server.strategy)")
	rootCmd.Flags().BoolVar(&foreground, "foreground", false, "Stay attached to the terminal and log to the console")

	for _, cmd := range newDaemonCommands(ctx) {
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(newLogsCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newWorkerCommand(ctx))

	return rootCmd
}

// detachArgs rebuilds the command line for the detached stages, which run
// from / and must not depend on the launcher's working directory.
func detachArgs(ctx *commandContext, strategy string) []string {
	args := []string{"--strategy", strategy}
	if path := ctx.forwardedConfigPath(); path != "" {
		args = append(args, "--config", path)
	}
	return args
}
