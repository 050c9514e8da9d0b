package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"upcase/internal/client"
	"upcase/internal/config"
	"upcase/internal/fifo"
	"upcase/internal/testsupport"
)

func assertNoPrivateFIFOs(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "upcase.") {
			t.Fatalf("private fifo %s left behind", entry.Name())
		}
	}
}

func TestRunWithoutDaemonIsNotInstalled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	var out, errOut bytes.Buffer
	err := run(context.Background(), cfg, "C", strings.NewReader("x\n"), &out, &errOut)
	if !errors.Is(err, client.ErrNotInstalled) {
		t.Fatalf("expected ErrNotInstalled, got %v", err)
	}
	if !strings.Contains(err.Error(), cfg.FIFO.PublicPath) {
		t.Fatalf("diagnostic should name the public fifo: %v", err)
	}
	assertNoPrivateFIFOs(t, cfg.FIFO.Dir)
}

func TestRunWithStaleFIFOIsNotRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := fifo.Create(cfg.FIFO.PublicPath, 0o666); err != nil {
		t.Fatalf("Create: %v", err)
	}
	var out, errOut bytes.Buffer
	err := run(context.Background(), cfg, "C", strings.NewReader("x\n"), &out, &errOut)
	if !errors.Is(err, client.ErrServerNotRunning) {
		t.Fatalf("expected ErrServerNotRunning, got %v", err)
	}
	assertNoPrivateFIFOs(t, cfg.FIFO.Dir)
}

func TestRunTransformsFileAndStdin(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.StartDaemon(t, cfg)

	input := filepath.Join(testsupport.BaseDir(cfg), "input.txt")
	if err := os.WriteFile(input, []byte("first line\nsecond line\nno newline"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	var out, errOut bytes.Buffer
	if err := run(context.Background(), cfg, "C", strings.NewReader("stdin text\n"), &out, &errOut); err != nil {
		t.Fatalf("run stdin: %v", err)
	}
	if out.String() != "STDIN TEXT\n" {
		t.Fatalf("stdin output %q", out.String())
	}
	assertNoPrivateFIFOs(t, cfg.FIFO.Dir)

	out.Reset()
	file, err := os.Open(input)
	if err != nil {
		t.Fatalf("open input: %v", err)
	}
	defer file.Close()
	if err := run(context.Background(), cfg, "C", file, &out, &errOut); err != nil {
		t.Fatalf("run file: %v", err)
	}
	if out.String() != "FIRST LINE\nSECOND LINE\nNO NEWLINE" {
		t.Fatalf("file output %q", out.String())
	}
	assertNoPrivateFIFOs(t, cfg.FIFO.Dir)
}

func TestCommandRejectsMissingInputFile(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "absent.toml"), filepath.Join(t.TempDir(), "missing.txt")})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "open input") {
		t.Fatalf("expected open input error, got %v", err)
	}
}

func TestResolveLocalePrefersFlag(t *testing.T) {
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_CTYPE", "")
	t.Setenv("LANG", "de_DE.UTF-8")
	cfg := config.Default()

	if got := resolveLocale("tr_TR", &cfg); got != "tr_TR" {
		t.Fatalf("flag locale = %q", got)
	}
	if got := resolveLocale("", &cfg); got != "de_DE.UTF-8" {
		t.Fatalf("env locale = %q", got)
	}
	cfg.Client.Locale = "en_US"
	if got := resolveLocale("", &cfg); got != "en_US" {
		t.Fatalf("config locale = %q", got)
	}
}

func TestRunLargeInputMatchesUppercase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Client.ChunkSize = 512
	testsupport.StartDaemon(t, cfg)

	path := filepath.Join(testsupport.BaseDir(cfg), "large.txt")
	data := testsupport.WriteText(t, path, 64*1024)
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var out, errOut bytes.Buffer
	if err := run(context.Background(), cfg, "C", file, &out, &errOut); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !bytes.Equal(out.Bytes(), bytes.ToUpper(data)) {
		t.Fatalf("output differs from uppercase input (%d vs %d bytes)", out.Len(), len(data))
	}
}
