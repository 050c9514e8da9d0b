package daemonize

import (
	"fmt"
	"os"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

// StageEnv carries the detach stage across re-executions.
const StageEnv = "UPCASE_DAEMONIZE_STAGE"

const (
	stageLauncher = 0
	stageSession  = 1
	stageDaemon   = 2
)

// Options describes how to re-execute the current program.
type Options struct {
	// Executable defaults to os.Executable().
	Executable string
	// Args are passed to every stage unchanged, without argv[0].
	Args []string
	// Env defaults to os.Environ().
	Env []string
}

// Stage reports how far the current process is through detaching.
func Stage() int {
	v, err := strconv.Atoi(os.Getenv(StageEnv))
	if err != nil || v < stageLauncher || v > stageDaemon {
		return stageLauncher
	}
	return v
}

// Detach moves the process one step towards running as a daemon. Go cannot
// fork safely, so the classic double fork is replaced by two re-executions:
// the launcher starts a copy in a new session, and that copy starts the
// final daemon, which is not a session leader and so can never reacquire a
// controlling terminal. Detach returns true only in the final daemon, after
// changing to / and clearing the umask; every other stage should exit 0.
func Detach(opts Options) (bool, error) {
	stage := Stage()
	if stage == stageDaemon {
		if err := finish(); err != nil {
			return false, err
		}
		return true, nil
	}

	exe := opts.Executable
	if exe == "" {
		resolved, err := os.Executable()
		if err != nil {
			return false, fmt.Errorf("resolve executable: %w", err)
		}
		exe = resolved
	}
	env := opts.Env
	if env == nil {
		env = os.Environ()
	}
	env = withStage(env, stage+1)

	devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", os.DevNull, err)
	}
	defer devnull.Close()

	attr := &os.ProcAttr{
		Dir:   "/",
		Env:   env,
		Files: []*os.File{devnull, devnull, devnull},
	}
	if stage == stageLauncher {
		attr.Sys = &syscall.SysProcAttr{Setsid: true}
	}
	argv := append([]string{exe}, opts.Args...)
	proc, err := os.StartProcess(exe, argv, attr)
	if err != nil {
		return false, fmt.Errorf("start detach stage %d: %w", stage+1, err)
	}
	if err := proc.Release(); err != nil {
		return false, fmt.Errorf("release detach stage %d: %w", stage+1, err)
	}
	return false, nil
}

func finish() error {
	unix.Umask(0)
	if err := os.Chdir("/"); err != nil {
		return fmt.Errorf("chdir /: %w", err)
	}
	return os.Unsetenv(StageEnv)
}

func withStage(env []string, stage int) []string {
	out := make([]string, 0, len(env)+1)
	prefix := StageEnv + "="
	for _, kv := range env {
		if len(kv) >= len(prefix) && kv[:len(prefix)] == prefix {
			continue
		}
		out = append(out, kv)
	}
	return append(out, prefix+strconv.Itoa(stage))
}
