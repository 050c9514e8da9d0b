package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// FIFO contains locations of the public and private named pipes.
type FIFO struct {
	PublicPath string `toml:"public_path" validate:"required"`
	Dir        string `toml:"dir" validate:"required"`
}

// Client contains settings for the upcase client.
type Client struct {
	ChunkSize      int    `toml:"chunk_size" validate:"min=4,max=4096"`
	OpenAttempts   int    `toml:"open_attempts" validate:"min=1"`
	OpenIntervalMS int    `toml:"open_interval_ms" validate:"min=1"`
	Locale         string `toml:"locale"`
}

// Server contains settings for the daemon and its session workers.
type Server struct {
	Strategy            string `toml:"strategy" validate:"required,oneof=process thread"`
	ReplyOpenAttempts   int    `toml:"reply_open_attempts" validate:"min=1"`
	ReplyOpenIntervalMS int    `toml:"reply_open_interval_ms" validate:"min=1"`
	ClientWaitTimeoutMS int    `toml:"client_wait_timeout_ms" validate:"min=0"`
	ShutdownGraceMS     int    `toml:"shutdown_grace_ms" validate:"min=0"`
	RestrictFIFODir     bool   `toml:"restrict_fifo_dir"`
}

// Daemon contains process lifecycle settings.
type Daemon struct {
	StateDir string `toml:"state_dir" validate:"required"`
	Syslog   bool   `toml:"syslog"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" validate:"oneof=console json"`
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
}

// Config encapsulates all configuration values for upcase.
//
// Configuration sections by subsystem:
//   - FIFO: public and private named pipe locations
//   - Client: chunking and rendezvous retry bounds
//   - Server: worker strategy and reply retry bounds
//   - Daemon: state directory (lock, pid, fallback log) and syslog
//   - Logging: log format and level
type Config struct {
	FIFO    FIFO    `toml:"fifo"`
	Client  Client  `toml:"client"`
	Server  Server  `toml:"server"`
	Daemon  Daemon  `toml:"daemon"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("upcase.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon and client write into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Daemon.StateDir, c.FIFO.Dir, filepath.Dir(c.FIFO.PublicPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath returns the single-instance lock file used by the daemon.
func (c *Config) LockPath() string {
	return filepath.Join(c.Daemon.StateDir, "upcased.lock")
}

// PIDPath returns the pid file written by a running daemon.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Daemon.StateDir, "upcased.pid")
}

// LogPath returns the fallback log file used when syslog is unavailable.
func (c *Config) LogPath() string {
	return filepath.Join(c.Daemon.StateDir, "upcased.log")
}

// ClientOpenInterval returns the sleep between client write-channel open attempts.
func (c *Config) ClientOpenInterval() time.Duration {
	return time.Duration(c.Client.OpenIntervalMS) * time.Millisecond
}

// ReplyOpenInterval returns the sleep between worker reply-channel open attempts.
func (c *Config) ReplyOpenInterval() time.Duration {
	return time.Duration(c.Server.ReplyOpenIntervalMS) * time.Millisecond
}

// ClientWaitTimeout returns how long a worker waits for its client to open
// the write channel. Zero waits indefinitely.
func (c *Config) ClientWaitTimeout() time.Duration {
	return time.Duration(c.Server.ClientWaitTimeoutMS) * time.Millisecond
}

// ShutdownGrace returns how long the daemon waits for in-flight sessions on shutdown.
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.Server.ShutdownGraceMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
