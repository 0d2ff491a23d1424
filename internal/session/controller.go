// Package session coordinates one listen lifecycle: the streaming
// transcriber, the indicator surface, audio cues, and the control commands
// that arrive over IPC while it runs.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ewhitt/murmur/internal/fsm"
	"github.com/ewhitt/murmur/internal/indicator"
	"github.com/ewhitt/murmur/internal/ipc"
	"github.com/ewhitt/murmur/internal/whisper"
)

type action int

const (
	actionStop action = iota + 1
	actionCancel
)

// Transcriber is the session-facing surface of the streaming recognizer.
// whisper.Session satisfies it.
type Transcriber interface {
	Run(ctx context.Context) (whisper.Result, error)
	Stop()
}

// Indicator is the session-facing subset of the status helper.
type Indicator interface {
	Open()
	Update(status string)
	SendText(text string)
	Close()
}

type noopIndicator struct{}

func (noopIndicator) Open()             {}
func (noopIndicator) Update(string)     {}
func (noopIndicator) SendText(string)   {}
func (noopIndicator) Close()            {}

// CuePlayer plays lifecycle sounds. indicator.Player satisfies it.
type CuePlayer interface {
	Play(kind indicator.Cue)
}

type noopCues struct{}

func (noopCues) Play(indicator.Cue) {}

// Result is the complete outcome of one Run invocation. Message carries the
// user-facing rendering of Err and is empty on success.
type Result struct {
	State      fsm.State
	Transcript string
	NoSpeech   bool
	Cancelled  bool
	Err        error
	Message    string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Controller owns the single listen session and serves its control socket
// commands.
type Controller struct {
	logger     *slog.Logger
	transcribe Transcriber
	indicator  Indicator
	cues       CuePlayer

	mu    sync.RWMutex
	state fsm.State

	actions chan action
}

// NewController wires a controller with safe fallbacks for the optional
// surfaces.
func NewController(logger *slog.Logger, transcriber Transcriber, ind Indicator, cues CuePlayer) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if ind == nil {
		ind = noopIndicator{}
	}
	if cues == nil {
		cues = noopCues{}
	}
	return &Controller{
		logger:     logger,
		transcribe: transcriber,
		indicator:  ind,
		cues:       cues,
		state:      fsm.StateIdle,
		actions:    make(chan action, 1),
	}
}

// State returns the current lifecycle state snapshot.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Controller) transition(event fsm.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := fsm.Transition(c.state, event)
	if err != nil {
		c.logger.Debug("lifecycle event rejected", "state", string(c.state), "event", string(event))
		return
	}
	c.state = next
}

// Run executes the session to resolution and returns exactly once. Stop and
// cancel requests arrive through Handle; context cancellation behaves like a
// cancel request.
func (c *Controller) Run(ctx context.Context) Result {
	result := Result{StartedAt: time.Now()}
	c.transition(fsm.EventStart)

	c.indicator.Open()
	c.indicator.Update(indicator.StatusListening)
	c.cues.Play(indicator.CueListen)
	c.transition(fsm.EventSpawned)

	resultCh := make(chan struct {
		res whisper.Result
		err error
	}, 1)
	go func() {
		res, err := c.transcribe.Run(ctx)
		resultCh <- struct {
			res whisper.Result
			err error
		}{res, err}
	}()

	cancelled := false
	var res whisper.Result
	var err error
wait:
	for {
		select {
		case a := <-c.actions:
			switch a {
			case actionStop:
				c.transition(fsm.EventStop)
				c.indicator.Update(indicator.StatusProcessing)
				c.transcribe.Stop()
			case actionCancel:
				cancelled = true
				c.transition(fsm.EventStop)
				c.transcribe.Stop()
			}
		case out := <-resultCh:
			res, err = out.res, out.err
			break wait
		}
	}
	c.indicator.Close()

	// Interrupting the process (ctrl-c) is a cancel, not a failure.
	if errors.Is(err, context.Canceled) {
		cancelled = true
		err = nil
	}

	result.FinishedAt = time.Now()
	switch {
	case cancelled:
		c.transition(fsm.EventResolve)
		c.cues.Play(indicator.CueCancel)
		result.Cancelled = true
		c.logger.Info("session cancelled")
	case err != nil:
		c.transition(fsm.EventFail)
		c.cues.Play(indicator.CueError)
		result.Err = err
		result.Message = UserMessage(err)
		c.logger.Error("session failed", "err", err.Error())
	default:
		c.transition(fsm.EventResolve)
		c.cues.Play(indicator.CueDone)
		result.Transcript = res.Text
		result.NoSpeech = res.NoSpeech
	}
	result.State = c.State()
	return result
}

// Handle serves control commands for the running session.
func (c *Controller) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		return ipc.Response{OK: true, State: string(c.State()), Message: "status"}
	case ipc.CommandStop:
		return c.enqueue(actionStop, "stop")
	case ipc.CommandCancel:
		return c.enqueue(actionCancel, "cancel")
	default:
		return ipc.Response{State: string(c.State()), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

func (c *Controller) enqueue(a action, name string) ipc.Response {
	state := c.State()
	if state == fsm.StateResolved {
		return ipc.Response{State: string(state), Error: fmt.Sprintf("cannot %s, session already resolved", name)}
	}

	select {
	case c.actions <- a:
		return ipc.Response{OK: true, State: string(state), Message: name + " requested"}
	default:
		return ipc.Response{OK: true, State: string(state), Message: name + " already requested"}
	}
}
