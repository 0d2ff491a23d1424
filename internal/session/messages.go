package session

import (
	"context"
	"errors"
	"strings"

	"github.com/ewhitt/murmur/internal/proc"
	"github.com/ewhitt/murmur/internal/whisper"
)

// User-facing failure messages. Raw tool errors go to the log; these go to
// the person at the keyboard.
const (
	msgToolMissing  = "Speech recognition tools are not installed. Run 'murmur doctor' for setup help."
	msgModelMissing = "Speech model is missing. Run 'murmur doctor' to see where models belong."
	msgMicDenied    = "Microphone access was denied. Check your OS privacy settings."
	msgProcessDied  = "Speech recognition stopped unexpectedly."
	msgCancelled    = "Cancelled."
	msgGeneric      = "Unable to start listening."
)

// UserMessage renders an error from the session into a short actionable
// sentence. Returns empty for nil.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, proc.ErrToolMissing):
		return msgToolMissing
	case errors.Is(err, whisper.ErrModelMissing):
		return msgModelMissing
	case errors.Is(err, context.Canceled):
		return msgCancelled
	}

	var exitErr *whisper.ExitError
	if errors.As(err, &exitErr) {
		if looksLikePermissionFailure(exitErr.Stderr) {
			return msgMicDenied
		}
		return msgProcessDied
	}
	return msgGeneric
}

func looksLikePermissionFailure(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "permission denied") ||
		strings.Contains(s, "access denied") ||
		strings.Contains(s, "not authorized")
}
