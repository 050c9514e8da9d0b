package logging

import (
	"log/slog"

	"upcase/internal/config"
)

// SyslogTag identifies daemon records in the system log.
const SyslogTag = "upcased"

// NewFromConfig builds the logger for a foreground process: console or JSON
// records on stdout at the configured level.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	return New(Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
}

// NewDaemonLogger builds the logger for a detached daemon. It prefers
// syslog when enabled and falls back to the log file under the state
// directory when syslog is disabled or unreachable. The returned bool
// reports whether the fallback was taken after a syslog failure.
func NewDaemonLogger(cfg *config.Config) (*slog.Logger, bool, error) {
	if cfg.Daemon.Syslog {
		logger, err := New(Options{Level: cfg.Logging.Level, SyslogTag: SyslogTag})
		if err == nil {
			return logger, false, nil
		}
		fallback, ferr := newFileLogger(cfg)
		if ferr != nil {
			return nil, false, ferr
		}
		return fallback, true, nil
	}
	logger, err := newFileLogger(cfg)
	return logger, false, err
}

func newFileLogger(cfg *config.Config) (*slog.Logger, error) {
	path := cfg.LogPath()
	return New(Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{path},
		ErrorOutputPaths: []string{path},
	})
}
