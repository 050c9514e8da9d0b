package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeFIFO(); err != nil {
		return err
	}
	if err := c.normalizeDaemon(); err != nil {
		return err
	}
	c.normalizeClient()
	c.normalizeServer()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeFIFO() error {
	if value, ok := os.LookupEnv("UPCASE_PUBLIC_FIFO"); ok && strings.TrimSpace(value) != "" {
		c.FIFO.PublicPath = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("UPCASE_FIFO_DIR"); ok && strings.TrimSpace(value) != "" {
		c.FIFO.Dir = strings.TrimSpace(value)
	}
	var err error
	if strings.TrimSpace(c.FIFO.Dir) == "" {
		c.FIFO.Dir = defaultFIFODir()
	}
	if c.FIFO.Dir, err = expandPath(c.FIFO.Dir); err != nil {
		return fmt.Errorf("fifo.dir: %w", err)
	}
	if c.FIFO.PublicPath, err = expandPath(strings.TrimSpace(c.FIFO.PublicPath)); err != nil {
		return fmt.Errorf("fifo.public_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeDaemon() error {
	var err error
	if strings.TrimSpace(c.Daemon.StateDir) == "" {
		c.Daemon.StateDir = defaultStateDir
	}
	if c.Daemon.StateDir, err = expandPath(c.Daemon.StateDir); err != nil {
		return fmt.Errorf("daemon.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeClient() {
	if c.Client.ChunkSize <= 0 {
		c.Client.ChunkSize = defaultChunkSize
	}
	c.Client.Locale = strings.TrimSpace(c.Client.Locale)
}

func (c *Config) normalizeServer() {
	c.Server.Strategy = strings.ToLower(strings.TrimSpace(c.Server.Strategy))
	if c.Server.Strategy == "" {
		c.Server.Strategy = defaultStrategy
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
