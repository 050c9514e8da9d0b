package workers

import (
	"context"
	"fmt"
	"strings"

	"upcase/internal/protocol"
)

const (
	// StrategyProcess serves each client from a dedicated worker process.
	StrategyProcess = "process"
	// StrategyThread serves each client from a goroutine in the daemon.
	StrategyThread = "thread"
)

// Strategy starts one worker per connection request.
type Strategy interface {
	// Name reports the strategy identifier used in configuration.
	Name() string
	// Spawn starts serving req and returns without waiting for the session.
	Spawn(ctx context.Context, req protocol.ConnectionRequest) error
	// Active reports sessions that have not finished yet.
	Active() int
	// Wait blocks until every spawned session finishes or ctx ends.
	Wait(ctx context.Context) error
}

// WorkerArgs renders the command line a worker process receives for req.
func WorkerArgs(req protocol.ConnectionRequest) []string {
	return []string{
		"worker",
		"--write", req.WritePath(),
		"--read", req.ReadPath(),
		"--locale", req.LocaleName(),
	}
}

// ParseStrategy validates a strategy name.
func ParseStrategy(name string) (string, error) {
	switch v := strings.ToLower(strings.TrimSpace(name)); v {
	case StrategyProcess, StrategyThread:
		return v, nil
	default:
		return "", fmt.Errorf("unknown worker strategy %q (want %s or %s)", name, StrategyProcess, StrategyThread)
	}
}
