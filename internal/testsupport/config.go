package testsupport

import (
	"path/filepath"
	"testing"

	"upcase/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t          testing.TB
	baseDir    string
	cfg        *config.Config
	createDirs bool
}

// NewConfig produces a config whose FIFOs and state live in a per-test temp
// directory, with the thread strategy, syslog off, and retry intervals short
// enough for tests. Directories are created unless WithoutDirectories is
// given.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.FIFO.PublicPath = filepath.Join(base, "upcased.fifo")
	cfgVal.FIFO.Dir = filepath.Join(base, "fifos")
	cfgVal.Daemon.StateDir = filepath.Join(base, "state")
	cfgVal.Daemon.Syslog = false
	cfgVal.Server.Strategy = "thread"
	cfgVal.Server.ReplyOpenIntervalMS = 5
	cfgVal.Server.ReplyOpenAttempts = 200
	cfgVal.Server.ShutdownGraceMS = 500
	cfgVal.Client.OpenAttempts = 3
	cfgVal.Client.OpenIntervalMS = 20

	builder := &configBuilder{
		t:          t,
		baseDir:    base,
		cfg:        &cfgVal,
		createDirs: true,
	}
	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	if builder.createDirs {
		if err := builder.cfg.EnsureDirectories(); err != nil {
			t.Fatalf("EnsureDirectories: %v", err)
		}
	}
	return builder.cfg
}

// WithStrategy selects the worker strategy.
func WithStrategy(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.Strategy = name
	}
}

// WithoutDirectories leaves the FIFO and state directories uncreated.
func WithoutDirectories() ConfigOption {
	return func(b *configBuilder) {
		b.createDirs = false
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Daemon.StateDir)
}
