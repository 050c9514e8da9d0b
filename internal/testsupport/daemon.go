package testsupport

import (
	"context"
	"testing"
	"time"

	"upcase/internal/config"
	"upcase/internal/daemonctl"
	"upcase/internal/daemonrun"
	"upcase/internal/logging"
)

// StartDaemon runs the daemon in the foreground of the test process until
// the returned stop function (also registered as cleanup) is called. Stop
// returns Run's error.
func StartDaemon(t testing.TB, cfg *config.Config) (stop func() error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- daemonrun.Run(ctx, cfg, daemonrun.Options{Foreground: true, Logger: logging.NewNop()})
	}()

	var result error
	stopped := false
	stop = func() error {
		if stopped {
			return result
		}
		stopped = true
		cancel()
		select {
		case result = <-done:
		case <-time.After(10 * time.Second):
			t.Errorf("daemon did not stop")
		}
		return result
	}
	t.Cleanup(func() { _ = stop() })

	if err := daemonctl.WaitForStart(cfg, 5*time.Second); err != nil {
		stop()
		t.Fatalf("daemon did not start: %v", err)
	}
	return stop
}
