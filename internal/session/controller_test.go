package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ewhitt/murmur/internal/fsm"
	"github.com/ewhitt/murmur/internal/indicator"
	"github.com/ewhitt/murmur/internal/ipc"
	"github.com/ewhitt/murmur/internal/proc"
	"github.com/ewhitt/murmur/internal/whisper"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTranscriber blocks in Run until released by Stop or by the test.
type fakeTranscriber struct {
	res     whisper.Result
	err     error
	release chan struct{}

	mu      sync.Mutex
	stopped bool
}

func newFakeTranscriber(res whisper.Result, err error) *fakeTranscriber {
	return &fakeTranscriber{res: res, err: err, release: make(chan struct{})}
}

func (f *fakeTranscriber) Run(ctx context.Context) (whisper.Result, error) {
	<-f.release
	return f.res, f.err
}

func (f *fakeTranscriber) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return
	}
	f.stopped = true
	close(f.release)
}

func (f *fakeTranscriber) Stopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

// finish releases Run without marking a stop, simulating self-resolution.
func (f *fakeTranscriber) finish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.stopped {
		f.stopped = true
		close(f.release)
	}
}

type recordingIndicator struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingIndicator) append(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingIndicator) Open()           { r.append("open") }
func (r *recordingIndicator) Update(s string) { r.append(s) }
func (r *recordingIndicator) SendText(s string) {
	r.append("text:" + s)
}
func (r *recordingIndicator) Close() { r.append("close") }

func (r *recordingIndicator) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func runController(c *Controller) <-chan Result {
	out := make(chan Result, 1)
	go func() { out <- c.Run(context.Background()) }()
	return out
}

func awaitResult(t *testing.T, out <-chan Result) Result {
	t.Helper()
	select {
	case r := <-out:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("controller did not resolve")
		return Result{}
	}
}

func TestRunResolvesWithTranscript(t *testing.T) {
	tr := newFakeTranscriber(whisper.Result{Text: "Hello world"}, nil)
	ind := &recordingIndicator{}
	c := NewController(discardLogger(), tr, ind, nil)

	out := runController(c)
	tr.finish()

	res := awaitResult(t, out)
	require.NoError(t, res.Err)
	require.Equal(t, "Hello world", res.Transcript)
	require.Equal(t, fsm.StateResolved, res.State)
	require.False(t, res.Cancelled)
	require.Equal(t, []string{"open", indicator.StatusListening, "close"}, ind.snapshot())
}

func TestHandleStopStopsTranscriber(t *testing.T) {
	tr := newFakeTranscriber(whisper.Result{Text: "Hello"}, nil)
	ind := &recordingIndicator{}
	c := NewController(discardLogger(), tr, ind, nil)
	out := runController(c)

	// Wait for the session to reach streaming before issuing the stop.
	require.Eventually(t, func() bool { return c.State() == fsm.StateStreaming },
		time.Second, 5*time.Millisecond)

	resp := c.Handle(context.Background(), ipc.Request{Command: ipc.CommandStop})
	require.True(t, resp.OK)

	res := awaitResult(t, out)
	require.NoError(t, res.Err)
	require.Equal(t, "Hello", res.Transcript)
	require.True(t, tr.Stopped())
	require.Contains(t, ind.snapshot(), indicator.StatusProcessing)
}

func TestHandleCancelDropsTranscript(t *testing.T) {
	tr := newFakeTranscriber(whisper.Result{Text: "Hello"}, nil)
	c := NewController(discardLogger(), tr, nil, nil)
	out := runController(c)

	require.Eventually(t, func() bool { return c.State() == fsm.StateStreaming },
		time.Second, 5*time.Millisecond)

	resp := c.Handle(context.Background(), ipc.Request{Command: ipc.CommandCancel})
	require.True(t, resp.OK)

	res := awaitResult(t, out)
	require.True(t, res.Cancelled)
	require.Empty(t, res.Transcript)
	require.NoError(t, res.Err)
}

func TestHandleStatus(t *testing.T) {
	tr := newFakeTranscriber(whisper.Result{}, nil)
	c := NewController(discardLogger(), tr, nil, nil)
	out := runController(c)

	require.Eventually(t, func() bool { return c.State() == fsm.StateStreaming },
		time.Second, 5*time.Millisecond)

	resp := c.Handle(context.Background(), ipc.Request{Command: ipc.CommandStatus})
	require.True(t, resp.OK)
	require.Equal(t, string(fsm.StateStreaming), resp.State)

	tr.finish()
	awaitResult(t, out)
}

func TestHandleUnknownCommand(t *testing.T) {
	c := NewController(discardLogger(), newFakeTranscriber(whisper.Result{}, nil), nil, nil)
	resp := c.Handle(context.Background(), ipc.Request{Command: "explode"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "unknown command")
}

func TestHandleStopAfterResolutionRejected(t *testing.T) {
	tr := newFakeTranscriber(whisper.Result{Text: "done"}, nil)
	c := NewController(discardLogger(), tr, nil, nil)
	out := runController(c)
	tr.finish()
	awaitResult(t, out)

	resp := c.Handle(context.Background(), ipc.Request{Command: ipc.CommandStop})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "already resolved")
}

func TestRunSurfacesFailureMessage(t *testing.T) {
	failure := &whisper.ExitError{Code: 1, Stderr: "mic permission denied"}
	tr := newFakeTranscriber(whisper.Result{}, failure)
	c := NewController(discardLogger(), tr, nil, nil)
	out := runController(c)
	tr.finish()

	res := awaitResult(t, out)
	require.Error(t, res.Err)
	require.Equal(t, msgMicDenied, res.Message)
	require.Equal(t, fsm.StateResolved, res.State)
}

func TestRunRepeatedStopRequestsAreHarmless(t *testing.T) {
	tr := newFakeTranscriber(whisper.Result{Text: "once"}, nil)
	c := NewController(discardLogger(), tr, nil, nil)
	out := runController(c)

	require.Eventually(t, func() bool { return c.State() == fsm.StateStreaming },
		time.Second, 5*time.Millisecond)

	c.Handle(context.Background(), ipc.Request{Command: ipc.CommandStop})
	c.Handle(context.Background(), ipc.Request{Command: ipc.CommandStop})

	res := awaitResult(t, out)
	require.Equal(t, "once", res.Transcript)
}

func TestRunTreatsContextCancelAsCancelled(t *testing.T) {
	tr := newFakeTranscriber(whisper.Result{}, context.Canceled)
	c := NewController(discardLogger(), tr, nil, nil)
	out := runController(c)
	tr.finish()

	res := awaitResult(t, out)
	require.True(t, res.Cancelled)
	require.NoError(t, res.Err)
	require.Empty(t, res.Transcript)
}

func TestUserMessageMapping(t *testing.T) {
	require.Empty(t, UserMessage(nil))
	require.Equal(t, msgToolMissing, UserMessage(proc.ErrToolMissing))
	require.Equal(t, msgModelMissing, UserMessage(whisper.ErrModelMissing))
	require.Equal(t, msgCancelled, UserMessage(context.Canceled))
	require.Equal(t, msgMicDenied, UserMessage(&whisper.ExitError{Code: 1, Stderr: "Permission denied: /dev/snd"}))
	require.Equal(t, msgProcessDied, UserMessage(&whisper.ExitError{Code: 2, Stderr: "segfault"}))
	require.Equal(t, msgGeneric, UserMessage(errors.New("weird")))
}
