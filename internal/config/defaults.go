package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultConfigPath          = "~/.config/upcase/config.toml"
	defaultPublicFIFOName      = "upcased.fifo"
	defaultStateDir            = "~/.local/state/upcase"
	defaultChunkSize           = 4096
	defaultClientOpenAttempts  = 5
	defaultClientOpenInterval  = 1000
	defaultStrategy            = "thread"
	defaultReplyOpenAttempts   = 5
	defaultReplyOpenInterval   = 500
	defaultClientWaitTimeoutMS = 30000
	defaultShutdownGraceMS     = 2000
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		FIFO: FIFO{
			PublicPath: filepath.Join(defaultFIFODir(), defaultPublicFIFOName),
			Dir:        defaultFIFODir(),
		},
		Client: Client{
			ChunkSize:      defaultChunkSize,
			OpenAttempts:   defaultClientOpenAttempts,
			OpenIntervalMS: defaultClientOpenInterval,
		},
		Server: Server{
			Strategy:            defaultStrategy,
			ReplyOpenAttempts:   defaultReplyOpenAttempts,
			ReplyOpenIntervalMS: defaultReplyOpenInterval,
			ClientWaitTimeoutMS: defaultClientWaitTimeoutMS,
			ShutdownGraceMS:     defaultShutdownGraceMS,
			RestrictFIFODir:     true,
		},
		Daemon: Daemon{
			StateDir: defaultStateDir,
			Syslog:   true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

// defaultFIFODir is the shared temporary directory both sides agree on
// without configuration.
func defaultFIFODir() string {
	if dir := strings.TrimSpace(os.TempDir()); dir != "" {
		return dir
	}
	return "/tmp"
}
