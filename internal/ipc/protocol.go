// Package ipc is the newline-delimited JSON control protocol between a
// running listen session and later murmur invocations, over a unix socket.
package ipc

// Commands accepted by a running session.
const (
	CommandStatus = "status"
	CommandStop   = "stop"
	CommandCancel = "cancel"
)

// Request is one control command. Each connection carries a single
// request/response exchange.
type Request struct {
	Command string `json:"command"`
}

// Response reports the outcome. State is the session lifecycle state at the
// time of the request; Message carries human-readable detail.
type Response struct {
	OK      bool   `json:"ok"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
