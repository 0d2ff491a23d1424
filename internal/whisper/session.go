// Package whisper runs the external whisper.cpp tools and turns their output
// into transcripts: a streaming microphone session around whisper-stream and
// a one-shot file transcription around whisper-cli.
package whisper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ewhitt/murmur/internal/endpoint"
	"github.com/ewhitt/murmur/internal/fsm"
	"github.com/ewhitt/murmur/internal/proc"
	"github.com/ewhitt/murmur/internal/stream"
)

// NoSpeechPlaceholder is the transcript returned when a session resolves
// without any recognized speech.
const NoSpeechPlaceholder = "no speech detected"

const (
	DefaultBinary   = "whisper-stream"
	DefaultStepMS   = 3000
	DefaultLengthMS = 10000
	DefaultKeepMS   = 200
)

// Config describes one streaming session. Zero values fall back to the
// defaults above; SilenceThreshold falls back to endpoint.DefaultThreshold.
type Config struct {
	BinaryPath string
	ModelPath  string
	Language   string

	StepMS   int
	LengthMS int
	KeepMS   int

	// SilenceThreshold is the number of consecutive blank windows that
	// ends the utterance.
	SilenceThreshold int

	// MaxDuration is the hard session deadline. Zero disables it.
	MaxDuration time.Duration
}

func (c *Config) applyDefaults() {
	if c.BinaryPath == "" {
		c.BinaryPath = DefaultBinary
	}
	if c.StepMS <= 0 {
		c.StepMS = DefaultStepMS
	}
	if c.LengthMS <= 0 {
		c.LengthMS = DefaultLengthMS
	}
	if c.KeepMS <= 0 {
		c.KeepMS = DefaultKeepMS
	}
}

func (c Config) args() []string {
	args := []string{
		"-m", c.ModelPath,
		"--step", strconv.Itoa(c.StepMS),
		"--length", strconv.Itoa(c.LengthMS),
		"--keep", strconv.Itoa(c.KeepMS),
	}
	if c.Language != "" {
		args = append(args, "-l", c.Language)
	}
	return args
}

// Callbacks deliver live progress while a session runs. All callbacks are
// invoked from the session's own goroutine, in order, and never after Run
// has returned. Nil callbacks are skipped.
type Callbacks struct {
	// OnPartial delivers the in-progress revision of the current line.
	OnPartial func(text string)
	// OnFinal delivers one completed transcript line.
	OnFinal func(text string)
	// OnSilence fires once when the silence endpoint ends the utterance.
	OnSilence func()
}

// Result is the resolved outcome of a session. NoSpeech marks the
// placeholder transcript.
type Result struct {
	Text     string
	NoSpeech bool
}

// handle is the supervised-process surface the session drives. proc.Handle
// satisfies it.
type handle interface {
	Done() <-chan struct{}
	ExitCode() int
	RequestStop()
	StopRequested() bool
}

type spawned struct {
	handle handle
	stdout io.Reader
	stderr io.Reader
}

type spawnFunc func() (spawned, error)

// Session is one streaming transcription: spawn the recognizer, parse its
// stdout, detect the end of the utterance, stop the process, and resolve to
// exactly one Result. A Session runs once.
type Session struct {
	cfg   Config
	cb    Callbacks
	log   *slog.Logger
	spawn spawnFunc

	mu      sync.Mutex
	state   fsm.State
	handle  handle
	stopped bool
}

// NewSession builds a session for cfg. Callbacks may be all-nil when the
// caller only wants the final Result.
func NewSession(cfg Config, log *slog.Logger, cb Callbacks) *Session {
	cfg.applyDefaults()
	if log == nil {
		log = slog.Default()
	}
	s := &Session{cfg: cfg, cb: cb, log: log, state: fsm.StateIdle}
	s.spawn = s.spawnProcess
	return s
}

func (s *Session) spawnProcess() (spawned, error) {
	if _, err := os.Stat(s.cfg.ModelPath); err != nil {
		return spawned{}, fmt.Errorf("%w: %s", ErrModelMissing, s.cfg.ModelPath)
	}
	path, err := proc.LookPath(s.cfg.BinaryPath)
	if err != nil {
		return spawned{}, err
	}
	h, err := proc.Spawn(path, s.cfg.args(), proc.Options{
		PipeStdout: true,
		PipeStderr: true,
		Log:        s.log,
	})
	if err != nil {
		return spawned{}, err
	}
	return spawned{handle: h, stdout: h.Stdout, stderr: h.Stderr}, nil
}

// Stop requests cooperative shutdown of a running session. Safe to call from
// any goroutine, at any point in the lifecycle, any number of times.
func (s *Session) Stop() {
	s.mu.Lock()
	h := s.handle
	already := s.stopped
	s.stopped = true
	s.mu.Unlock()

	// Before spawn there is nothing to signal; Run notices the flag right
	// after spawning and stops the fresh process.
	if already || h == nil {
		return
	}
	s.transition(fsm.EventStop)
	h.RequestStop()
}

func (s *Session) requestStop(h handle) {
	s.mu.Lock()
	already := s.stopped
	s.stopped = true
	s.mu.Unlock()
	if already {
		return
	}
	s.transition(fsm.EventStop)
	h.RequestStop()
}

func (s *Session) transition(ev fsm.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := fsm.Transition(s.state, ev)
	if err != nil {
		s.log.Debug("lifecycle event rejected", "state", string(s.state), "event", string(ev))
		return
	}
	s.state = next
}

// State returns the current lifecycle state.
func (s *Session) State() fsm.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run executes the session to resolution and returns exactly once. Context
// cancellation routes through the same cooperative stop as everything else;
// Run still waits for the process to exit before returning ctx's error.
func (s *Session) Run(ctx context.Context) (Result, error) {
	s.transition(fsm.EventStart)

	sp, err := s.spawn()
	if err != nil {
		s.transition(fsm.EventFail)
		return Result{}, err
	}
	h := sp.handle

	s.mu.Lock()
	s.handle = h
	stoppedEarly := s.stopped
	s.mu.Unlock()
	s.transition(fsm.EventSpawned)
	if stoppedEarly {
		s.transition(fsm.EventStop)
		h.RequestStop()
	}

	stderrCh := make(chan string, 1)
	go func() {
		b, _ := io.ReadAll(io.LimitReader(sp.stderr, 8<<10))
		stderrCh <- string(b)
	}()

	chunks := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(chunks)
		buf := make([]byte, 4096)
		for {
			n, err := sp.stdout.Read(buf)
			if n > 0 {
				chunks <- string(buf[:n])
			}
			if err != nil {
				if err != io.EOF {
					readErr <- err
				}
				return
			}
		}
	}()

	var maxTimer <-chan time.Time
	if s.cfg.MaxDuration > 0 {
		t := time.NewTimer(s.cfg.MaxDuration)
		defer t.Stop()
		maxTimer = t.C
	}

	detector := endpoint.NewDetector(s.cfg.SilenceThreshold)
	var finals []string
	var pending string
	var ctxErr error

	doneCh := h.Done()
	ctxCh := ctx.Done()
	chunksOpen := true
	for chunksOpen || doneCh != nil {
		select {
		case c, ok := <-chunks:
			if !ok {
				chunksOpen = false
				continue
			}
			pending = s.consume(pending, c, detector, &finals, h)
		case <-maxTimer:
			maxTimer = nil
			s.log.Debug("session deadline reached")
			s.requestStop(h)
		case <-ctxCh:
			ctxErr = ctx.Err()
			ctxCh = nil
			s.requestStop(h)
		case <-doneCh:
			doneCh = nil
		}
	}

	code := h.ExitCode()
	stderrText := <-stderrCh

	if ctxErr != nil {
		s.transition(fsm.EventFail)
		return Result{}, ctxErr
	}
	select {
	case err := <-readErr:
		s.transition(fsm.EventFail)
		return Result{}, fmt.Errorf("read recognizer output: %w", err)
	default:
	}
	if code != 0 && !h.StopRequested() {
		s.transition(fsm.EventFail)
		return Result{}, &ExitError{Code: code, Stderr: stderrText}
	}

	s.transition(fsm.EventResolve)
	text := strings.Join(finals, " ")
	if strings.TrimSpace(text) == "" {
		return Result{Text: NoSpeechPlaceholder, NoSpeech: true}, nil
	}
	s.log.Info("session resolved", "lines", len(finals), "chars", len(text))
	return Result{Text: text}, nil
}

// consume folds one stdout chunk into the pending line buffer. Completed
// lines become final segments. The remainder is surfaced as a partial only
// once the tool has overwritten it in place with a carriage return; text
// that merely has not been flushed yet stays private.
func (s *Session) consume(pending, chunk string, det *endpoint.Detector, finals *[]string, h handle) string {
	pending += chunk

	if i := strings.LastIndexByte(pending, '\n'); i >= 0 {
		complete := pending[:i+1]
		pending = pending[i+1:]
		for _, seg := range stream.Split(complete) {
			if seg.Blank {
				if det.ObserveBlank() {
					s.log.Debug("silence endpoint reached")
					if s.cb.OnSilence != nil {
						s.cb.OnSilence()
					}
					s.requestStop(h)
				}
				continue
			}
			det.ObserveSpeech()
			*finals = append(*finals, seg.Text)
			if s.cb.OnFinal != nil {
				s.cb.OnFinal(seg.Text)
			}
		}
	}

	if i := strings.LastIndexByte(pending, '\r'); i >= 0 {
		// Revisions before the last carriage return are superseded and
		// never come back; only the tail remains pending.
		pending = pending[i+1:]
		if seg, ok := stream.Classify(stream.StripANSI(pending)); ok && !seg.Blank {
			if s.cb.OnPartial != nil {
				s.cb.OnPartial(seg.Text)
			}
		}
	}
	return pending
}
