package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"upcase/internal/client"
	"upcase/internal/config"
	"upcase/internal/logging"
	"upcase/internal/transform"
)

type clientFlags struct {
	config     string
	locale     string
	publicFIFO string
}

func newRootCommand() *cobra.Command {
	var flags clientFlags

	cmd := &cobra.Command{
		Use:           "upcase [file]",
		Short:         "Uppercase text through the upcased daemon",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := config.Load(strings.TrimSpace(flags.config))
			if err != nil {
				return err
			}
			if path := strings.TrimSpace(flags.publicFIFO); path != "" {
				expanded, err := config.ExpandPath(path)
				if err != nil {
					return fmt.Errorf("resolve public fifo: %w", err)
				}
				cfg.FIFO.PublicPath = expanded
			}

			var input io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				file, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				defer file.Close()
				input = file
			}

			// Installed before the FIFOs exist so an interrupt always reaches
			// the cleanup below.
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)
			defer cancel()

			return run(ctx, cfg, resolveLocale(flags.locale, cfg), input, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&flags.config, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVarP(&flags.locale, "locale", "l", "", "Locale for uppercasing (default from LC_ALL, LC_CTYPE, LANG)")
	cmd.Flags().StringVar(&flags.publicFIFO, "public-fifo", "", "Public FIFO of the daemon (overrides fifo.public_path)")
	return cmd
}

func resolveLocale(flag string, cfg *config.Config) string {
	if value := strings.TrimSpace(flag); value != "" {
		return value
	}
	return transform.ResolveLocale(cfg.Client.Locale)
}

func run(ctx context.Context, cfg *config.Config, locale string, in io.Reader, out, errOut io.Writer) error {
	if err := os.MkdirAll(cfg.FIFO.Dir, 0o755); err != nil {
		return fmt.Errorf("create fifo directory %q: %w", cfg.FIFO.Dir, err)
	}

	c, err := client.Dial(ctx, client.Options{
		PublicPath:   cfg.FIFO.PublicPath,
		Dir:          cfg.FIFO.Dir,
		Locale:       locale,
		ChunkSize:    cfg.Client.ChunkSize,
		OpenAttempts: cfg.Client.OpenAttempts,
		OpenInterval: cfg.ClientOpenInterval(),
		Logger:       logging.NewConsole(errOut, cfg.Logging.Level),
	})
	if err != nil {
		return describeDialError(err, cfg.FIFO.PublicPath)
	}

	runErr := c.Transform(ctx, in, out)
	closeErr := c.Close()
	if runErr != nil {
		return runErr
	}
	if closeErr != nil {
		return fmt.Errorf("close session: %w", closeErr)
	}
	return nil
}

func describeDialError(err error, publicPath string) error {
	switch {
	case errors.Is(err, client.ErrNotInstalled):
		return fmt.Errorf("%w (no FIFO at %s; start the daemon with `upcased`)", err, publicPath)
	case errors.Is(err, client.ErrServerNotRunning):
		return fmt.Errorf("%w (nothing reads %s; restart the daemon with `upcased`)", err, publicPath)
	default:
		return err
	}
}
