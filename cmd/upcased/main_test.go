package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"upcase/internal/client"
	"upcase/internal/config"
	"upcase/internal/daemonctl"
	"upcase/internal/fifo"
	"upcase/internal/logging"
)

func TestStatusWhenStopped(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "[ERROR] Not running")
	requireContains(t, out, "Not installed")
	requireContains(t, out, "== Checks ==")
	requireContains(t, out, env.publicPath)
	requireContains(t, out, env.configPath)
}

func TestStopWhenStopped(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"stop"}, env.configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}

func TestRejectsUnknownStrategy(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"--foreground", "--strategy", "fork"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "unknown worker strategy") {
		t.Fatalf("expected strategy error, got %v", err)
	}
}

func TestForegroundDaemonServesAndStops(t *testing.T) {
	env := setupCLITestEnv(t)
	cfg, _, _, err := config.Load(env.configPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, _, err := runCLIContext(t, ctx, []string{"--foreground", "--strategy", "thread"}, env.configPath)
		done <- err
	}()
	if err := daemonctl.WaitForStart(cfg, 5*time.Second); err != nil {
		t.Fatalf("daemon did not start: %v", err)
	}

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "[OK] Running")
	requireContains(t, out, "Accepting clients")

	c, err := client.Dial(context.Background(), client.Options{
		PublicPath:   cfg.FIFO.PublicPath,
		Dir:          cfg.FIFO.Dir,
		ID:           "cli",
		Locale:       "C",
		ChunkSize:    cfg.Client.ChunkSize,
		OpenAttempts: cfg.Client.OpenAttempts,
		OpenInterval: cfg.ClientOpenInterval(),
		Logger:       logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	var reply bytes.Buffer
	if err := c.Transform(context.Background(), strings.NewReader("from the cli\n"), &reply); err != nil {
		t.Fatalf("Transform: %v", err)
	}
	c.Close()
	if reply.String() != "FROM THE CLI\n" {
		t.Fatalf("got %q", reply.String())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("daemon exited with error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop")
	}
	if fifo.IsFIFO(env.publicPath) {
		t.Fatal("public fifo should be removed after shutdown")
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.publicPath)

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
	if _, _, _, err := config.Load(target); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
}

func TestDetachArgsUseAbsoluteConfig(t *testing.T) {
	env := setupCLITestEnv(t)
	configFlag := env.configPath
	ctx := newCommandContext(&configFlag)

	args := detachArgs(ctx, "process")
	want := []string{"--strategy", "process", "--config", env.configPath}
	if !slices.Equal(args, want) {
		t.Fatalf("detachArgs = %v, want %v", args, want)
	}

	missing := filepath.Join(t.TempDir(), "absent.toml")
	ctx = newCommandContext(&missing)
	if args := detachArgs(ctx, "thread"); !slices.Equal(args, []string{"--strategy", "thread"}) {
		t.Fatalf("missing config must not be forwarded, got %v", args)
	}
}

func TestLogsShowsFallbackFile(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.MkdirAll(env.stateDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "No entries in")

	cfg, _, _, err := config.Load(env.configPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := os.WriteFile(cfg.LogPath(), []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	out, _, err = runCLI(t, []string{"logs", "-n", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "two\nthree\n" {
		t.Fatalf("unexpected logs output %q", out)
	}
}
