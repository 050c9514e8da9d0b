package preflight

import (
	"path/filepath"

	"upcase/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every check that applies to cfg.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckDirectoryAccess("Public FIFO dir", filepath.Dir(cfg.FIFO.PublicPath)),
		CheckPublicFIFO("Public FIFO", cfg.FIFO.PublicPath),
		CheckDirectoryAccess("Client FIFO dir", cfg.FIFO.Dir),
		CheckDirectoryAccess("State dir", cfg.Daemon.StateDir),
	}
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
