// Package proc supervises short-lived external tools: spawning with selected
// pipes, observing exit, and a two-phase cooperative stop with a deferred
// force-kill.
package proc

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// ErrToolMissing reports that a required executable is not on PATH.
var ErrToolMissing = errors.New("tool not found on PATH")

// DefaultGrace is how long a stopped process gets to exit on its own before
// the supervisor force-kills it.
const DefaultGrace = 500 * time.Millisecond

// Options selects which standard pipes to open and tunes the stop grace
// period. Pipes that are not requested stay nil on the handle.
type Options struct {
	PipeStdin  bool
	PipeStdout bool
	PipeStderr bool

	// Grace is the cooperative-stop window before force kill. Zero means
	// DefaultGrace.
	Grace time.Duration

	// Log receives debug events for spawn, stop, and exit. Nil uses the
	// default logger.
	Log *slog.Logger
}

// Handle is a supervised child process. Exit is observed exactly once by an
// internal goroutine; Done is closed after the exit code is recorded, so a
// receive on Done orders before ExitCode. The pipe ends stay readable after
// exit: output the child wrote before dying can be drained at any time.
type Handle struct {
	name  string
	cmd   *exec.Cmd
	grace time.Duration
	log   *slog.Logger

	Stdin  io.WriteCloser
	Stdout io.ReadCloser
	Stderr io.ReadCloser

	done chan struct{}

	mu            sync.Mutex
	exitCode      int
	stopRequested bool
	forceTimer    *time.Timer
}

// LookPath resolves name on PATH, wrapping failures in ErrToolMissing so
// callers can classify them without parsing exec errors.
func LookPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrToolMissing, name)
	}
	return path, nil
}

// Spawn starts name with args and returns a handle supervising it. The
// returned error wraps the start failure; a non-nil handle is always running
// at return.
func Spawn(name string, args []string, opts Options) (*Handle, error) {
	if opts.Grace <= 0 {
		opts.Grace = DefaultGrace
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}

	cmd := exec.Command(name, args...)
	h := &Handle{
		name:     name,
		cmd:      cmd,
		grace:    opts.Grace,
		log:      opts.Log,
		done:     make(chan struct{}),
		exitCode: -1,
	}

	// The handle owns its pipe ends outright. cmd.Wait closes the pipes it
	// creates itself as soon as the child exits, which destroys any output
	// the caller has not drained yet, so the pipes are built here and only
	// the child-side ends are handed to the command.
	var parentEnds, childEnds []*os.File
	fail := func(what string, err error) (*Handle, error) {
		for _, f := range append(parentEnds, childEnds...) {
			f.Close()
		}
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	if opts.PipeStdin {
		pr, pw, err := os.Pipe()
		if err != nil {
			return fail("open stdin pipe", err)
		}
		cmd.Stdin = pr
		h.Stdin = pw
		parentEnds = append(parentEnds, pw)
		childEnds = append(childEnds, pr)
	}
	if opts.PipeStdout {
		pr, pw, err := os.Pipe()
		if err != nil {
			return fail("open stdout pipe", err)
		}
		cmd.Stdout = pw
		h.Stdout = pr
		parentEnds = append(parentEnds, pr)
		childEnds = append(childEnds, pw)
	}
	if opts.PipeStderr {
		pr, pw, err := os.Pipe()
		if err != nil {
			return fail("open stderr pipe", err)
		}
		cmd.Stderr = pw
		h.Stderr = pr
		parentEnds = append(parentEnds, pr)
		childEnds = append(childEnds, pw)
	}

	if err := cmd.Start(); err != nil {
		return fail("start "+name, err)
	}
	// Drop the parent's copies of the child-side ends so readers see EOF
	// when the child exits.
	for _, f := range childEnds {
		f.Close()
	}
	h.log.Debug("process started", "name", name, "pid", cmd.Process.Pid)

	go h.wait()
	return h, nil
}

// wait observes the child's exit, records the code, cancels any pending
// force kill, and closes Done.
func (h *Handle) wait() {
	err := h.cmd.Wait()

	h.mu.Lock()
	if h.forceTimer != nil {
		h.forceTimer.Stop()
		h.forceTimer = nil
	}
	h.exitCode = h.cmd.ProcessState.ExitCode()
	code := h.exitCode
	h.mu.Unlock()

	if err != nil {
		h.log.Debug("process exited", "name", h.name, "code", code, "err", err)
	} else {
		h.log.Debug("process exited", "name", h.name, "code", code)
	}
	close(h.done)
}

// Done is closed once the process has exited and its exit code is recorded.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// ExitCode returns the recorded exit code, or -1 while the process is still
// running or when it died to a signal.
func (h *Handle) ExitCode() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode
}

// Alive reports whether exit has not yet been observed.
func (h *Handle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// StopRequested reports whether RequestStop has been called. A nonzero exit
// after a requested stop is expected, not a failure.
func (h *Handle) StopRequested() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopRequested
}

// RequestStop begins the two-phase stop: a termination signal now, and a
// force kill after the grace period unless exit is observed first. Repeat
// calls and calls after exit are no-ops.
func (h *Handle) RequestStop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopRequested {
		return
	}
	h.stopRequested = true

	select {
	case <-h.done:
		return
	default:
	}

	h.log.Debug("stop requested", "name", h.name, "grace", h.grace)
	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		h.log.Debug("terminate signal failed", "name", h.name, "err", err)
	}
	h.forceTimer = time.AfterFunc(h.grace, h.forceKill)
}

func (h *Handle) forceKill() {
	select {
	case <-h.done:
		return
	default:
	}
	h.log.Debug("grace expired, killing", "name", h.name)
	if err := h.cmd.Process.Kill(); err != nil {
		h.log.Debug("kill failed", "name", h.name, "err", err)
	}
}
