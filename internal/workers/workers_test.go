package workers_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"upcase/internal/logging"
	"upcase/internal/protocol"
	"upcase/internal/session"
	"upcase/internal/workers"
)

func missingRequest(t *testing.T) protocol.ConnectionRequest {
	t.Helper()
	w, r := protocol.FIFONames(t.TempDir(), "404")
	req, err := protocol.NewRequest(w, r, "C")
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	return req
}

func TestWorkerArgs(t *testing.T) {
	req, err := protocol.NewRequest("/tmp/upcase.7.wr", "/tmp/upcase.7.rd", "tr_TR")
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	got := strings.Join(workers.WorkerArgs(req), " ")
	want := "worker --write /tmp/upcase.7.wr --read /tmp/upcase.7.rd --locale tr_TR"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestParseStrategy(t *testing.T) {
	if got, err := workers.ParseStrategy(" Process "); err != nil || got != workers.StrategyProcess {
		t.Fatalf("got %q %v", got, err)
	}
	if _, err := workers.ParseStrategy("fork"); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func TestGoroutinesWaitForSessions(t *testing.T) {
	g := workers.NewGoroutines(session.Options{ReplyOpenAttempts: 1, Logger: logging.NewNop()})
	if g.Name() != workers.StrategyThread {
		t.Fatalf("unexpected name %q", g.Name())
	}
	for range 5 {
		if err := g.Spawn(context.Background(), missingRequest(t)); err != nil {
			t.Fatalf("Spawn: %v", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if g.Active() != 0 || g.Served() != 5 {
		t.Fatalf("active=%d served=%d", g.Active(), g.Served())
	}
}

func TestProcessesSpawnAndReap(t *testing.T) {
	reaper := workers.NewReaper(logging.NewNop(), time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reaper.Run(ctx)

	p, err := workers.NewProcesses(workers.ProcessOptions{
		Executable: "/bin/sh",
		Args:       []string{"-c", "exit 0", "upcased"},
		Reaper:     reaper,
		Logger:     logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewProcesses: %v", err)
	}
	if p.Name() != workers.StrategyProcess {
		t.Fatalf("unexpected name %q", p.Name())
	}
	for range 3 {
		if err := p.Spawn(ctx, missingRequest(t)); err != nil {
			t.Fatalf("Spawn: %v", err)
		}
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	if err := p.Wait(waitCtx); err != nil {
		t.Fatalf("Wait: %v (still tracked: %d)", err, p.Active())
	}
	if p.Active() != 0 {
		t.Fatalf("expected all workers reaped, %d remain", p.Active())
	}
}

func TestReaperCollectsOnSIGCHLD(t *testing.T) {
	reaper := workers.NewReaper(logging.NewNop(), time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reaper.Run(ctx)

	devnull, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatalf("open devnull: %v", err)
	}
	defer devnull.Close()
	proc, err := os.StartProcess("/bin/sh", []string{"/bin/sh", "-c", "sleep 0.1; exit 3"}, &os.ProcAttr{Files: []*os.File{devnull, devnull, devnull}})
	if err != nil {
		t.Fatalf("StartProcess: %v", err)
	}
	pid := proc.Pid
	reaper.Track(pid, "sleeper")
	_ = proc.Release()

	deadline := time.Now().Add(5 * time.Second)
	for reaper.Tracked() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("child was not reaped")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, err := os.Stat(filepath.Join("/proc", strconv.Itoa(pid))); err == nil {
		t.Fatalf("pid %d still present after reaping", pid)
	}
}

func TestReaperLeavesUntrackedChildrenAlone(t *testing.T) {
	reaper := workers.NewReaper(logging.NewNop(), 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reaper.Run(ctx)

	cmd := exec.Command("/bin/sh", "-c", "sleep 0.1")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := cmd.Wait(); err != nil {
		t.Fatalf("os/exec child should still be waitable by its owner: %v", err)
	}
}
