// Package indicator drives the on-screen status helper over its stdin and
// plays audio cues for session lifecycle events. Everything here is
// best-effort: a missing or broken helper never fails a transcription.
package indicator

import (
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/ewhitt/murmur/internal/proc"
)

// DefaultBinary is the helper executable looked up on PATH.
const DefaultBinary = "murmur-indicator"

// Status tokens understood by the helper.
const (
	StatusListening  = "listening"
	StatusProcessing = "processing"
)

const (
	textPrefix   = "text:"
	commandClose = "close"
)

// Channel is a fire-and-forget command stream to the indicator helper. All
// methods are safe to call whether or not the helper is running; failures
// are logged at debug level and otherwise swallowed.
type Channel struct {
	binary string
	log    *slog.Logger

	mu sync.Mutex
	h  *proc.Handle
}

// NewChannel builds a channel for the helper binary. Empty binary means
// DefaultBinary.
func NewChannel(binary string, log *slog.Logger) *Channel {
	if binary == "" {
		binary = DefaultBinary
	}
	if log == nil {
		log = slog.Default()
	}
	return &Channel{binary: binary, log: log}
}

// Open spawns the helper with a stdin pipe. A helper that cannot be found
// or started leaves the channel as a silent no-op.
func (c *Channel) Open() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.h != nil {
		return
	}

	path, err := proc.LookPath(c.binary)
	if err != nil {
		c.log.Debug("indicator unavailable", "err", err)
		return
	}
	h, err := proc.Spawn(path, nil, proc.Options{PipeStdin: true, Log: c.log})
	if err != nil {
		c.log.Debug("indicator spawn failed", "err", err)
		return
	}
	c.h = h
}

// Update sends a status token.
func (c *Channel) Update(status string) {
	c.send(status)
}

// SendText sends transcript text for display. The protocol is line based,
// so embedded line breaks are collapsed to spaces.
func (c *Channel) SendText(text string) {
	c.send(textPrefix + oneLine(text))
}

// Close asks the helper to dismiss itself, closes its stdin, and starts the
// two-phase stop so a wedged helper cannot outlive the session.
func (c *Channel) Close() {
	c.mu.Lock()
	h := c.h
	c.h = nil
	c.mu.Unlock()
	if h == nil {
		return
	}

	if h.Alive() {
		if _, err := io.WriteString(h.Stdin, commandClose+"\n"); err != nil {
			c.log.Debug("indicator close write failed", "err", err)
		}
	}
	if err := h.Stdin.Close(); err != nil {
		c.log.Debug("indicator stdin close failed", "err", err)
	}
	h.RequestStop()
}

func (c *Channel) send(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.h == nil || !c.h.Alive() {
		return
	}
	if _, err := io.WriteString(c.h.Stdin, line+"\n"); err != nil {
		c.log.Debug("indicator write failed", "err", err)
	}
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", " ")
}
