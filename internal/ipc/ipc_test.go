package ipc

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// socketPath keeps paths short; unix socket paths have a tight length limit.
func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "murmur-ipc")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "murmur.sock")
}

func startServer(t *testing.T, path string, handler Handler) {
	t.Helper()
	listener, err := net.Listen("unix", path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Serve(ctx, listener, handler)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("server did not shut down")
		}
	})
}

func TestSendRoundTrip(t *testing.T) {
	path := socketPath(t)
	startServer(t, path, HandlerFunc(func(_ context.Context, req Request) Response {
		require.Equal(t, CommandStop, req.Command)
		return Response{OK: true, State: "stopping", Message: "stopping"}
	}))

	resp, err := Send(context.Background(), path, Request{Command: CommandStop}, time.Second)
	require.NoError(t, err)
	require.True(t, resp.OK)
	require.Equal(t, "stopping", resp.State)
}

func TestProbeMissingSocket(t *testing.T) {
	alive, err := Probe(context.Background(), socketPath(t), 200*time.Millisecond)
	require.NoError(t, err)
	require.False(t, alive)
}

func TestProbeLiveServer(t *testing.T) {
	path := socketPath(t)
	startServer(t, path, HandlerFunc(func(context.Context, Request) Response {
		return Response{OK: true, State: "streaming"}
	}))

	alive, err := Probe(context.Background(), path, time.Second)
	require.NoError(t, err)
	require.True(t, alive)
}

func TestAcquireRejectsLiveOwner(t *testing.T) {
	path := socketPath(t)
	startServer(t, path, HandlerFunc(func(context.Context, Request) Response {
		return Response{OK: true}
	}))

	_, err := Acquire(context.Background(), path, 200*time.Millisecond, 1)
	require.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestAcquireRemovesStaleSocket(t *testing.T) {
	path := socketPath(t)

	// Leave a dead socket file behind, the way a killed session would.
	stale, err := net.Listen("unix", path)
	require.NoError(t, err)
	stale.(*net.UnixListener).SetUnlinkOnClose(false)
	require.NoError(t, stale.Close())
	require.FileExists(t, path)

	listener, err := Acquire(context.Background(), path, 200*time.Millisecond, 1)
	require.NoError(t, err)
	defer listener.Close()
}

func TestAcquireFreshSocket(t *testing.T) {
	listener, err := Acquire(context.Background(), socketPath(t), 200*time.Millisecond, 0)
	require.NoError(t, err)
	defer listener.Close()
}

func TestSocketPathRequiresRuntimeDir(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")
	_, err := SocketPath()
	require.Error(t, err)

	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	path, err := SocketPath()
	require.NoError(t, err)
	require.Equal(t, "/run/user/1000/murmur.sock", path)
}
