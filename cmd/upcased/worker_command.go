package main

import (
	"github.com/spf13/cobra"

	"upcase/internal/daemonrun"
)

// newWorkerCommand is what the process strategy runs for each client.
func newWorkerCommand(ctx *commandContext) *cobra.Command {
	var opts daemonrun.WorkerOptions

	cmd := &cobra.Command{
		Use:    "worker",
		Short:  "Serve a single client session",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return daemonrun.RunWorker(cmd.Context(), ctx.configValue(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.WriteFIFO, "write", "", "FIFO the client writes requests into")
	cmd.Flags().StringVar(&opts.ReadFIFO, "read", "", "FIFO the client reads replies from")
	cmd.Flags().StringVar(&opts.Locale, "locale", "", "Locale used for uppercasing")
	_ = cmd.MarkFlagRequired("write")
	_ = cmd.MarkFlagRequired("read")
	return cmd
}
