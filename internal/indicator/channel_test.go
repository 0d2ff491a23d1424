package indicator

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fakeHelper(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-indicator")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestChannelDeliversCommands(t *testing.T) {
	out := filepath.Join(t.TempDir(), "commands.txt")
	t.Setenv("MURMUR_TEST_INDICATOR_OUT", out)
	// The helper ignores the termination signal so it can finish draining
	// the command stream; close still ends it.
	helper := fakeHelper(t, `trap '' TERM
while IFS= read -r line; do
  printf '%s\n' "$line" >> "$MURMUR_TEST_INDICATOR_OUT"
  [ "$line" = close ] && exit 0
done`)

	c := NewChannel(helper, discardLogger())
	c.Open()
	c.Update(StatusListening)
	c.Update(StatusProcessing)
	c.SendText("hello\nworld")
	c.Close()

	want := "listening\nprocessing\ntext:hello world\nclose\n"
	require.Eventually(t, func() bool {
		b, err := os.ReadFile(out)
		return err == nil && string(b) == want
	}, 3*time.Second, 20*time.Millisecond)
}

func TestChannelMissingHelperIsNoOp(t *testing.T) {
	c := NewChannel("murmur-no-such-helper", discardLogger())
	c.Open()
	c.Update(StatusListening)
	c.SendText("hello")
	c.Close()
	c.Close()
}

func TestChannelSendBeforeOpenIsNoOp(t *testing.T) {
	c := NewChannel("murmur-no-such-helper", discardLogger())
	c.Update(StatusListening)
	c.SendText("hello")
}

func TestChannelSwallowsWriteFailures(t *testing.T) {
	helper := fakeHelper(t, "exec 0<&-\nsleep 2")
	c := NewChannel(helper, discardLogger())
	c.Open()
	time.Sleep(100 * time.Millisecond)

	// The helper closed its end of the pipe; writes fail but must not
	// surface to the caller.
	c.Update(StatusListening)
	c.SendText("hello")
	c.Close()
}

func TestChannelCloseKillsStubbornHelper(t *testing.T) {
	helper := fakeHelper(t, `trap '' TERM
while :; do sleep 0.05; done`)
	c := NewChannel(helper, discardLogger())
	c.Open()

	c.mu.Lock()
	h := c.h
	c.mu.Unlock()
	require.NotNil(t, h)

	c.Close()
	select {
	case <-h.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("helper survived close")
	}
}

func TestOneLine(t *testing.T) {
	require.Equal(t, "a b c", oneLine("a\r\nb\nc"))
	require.Equal(t, "plain", oneLine("plain"))
	require.False(t, strings.ContainsAny(oneLine("x\ry\nz"), "\r\n"))
}
