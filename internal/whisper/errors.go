package whisper

import (
	"errors"
	"fmt"
	"strings"
)

// ErrModelMissing reports that the configured model file does not exist on
// disk. It is checked before any process is spawned.
var ErrModelMissing = errors.New("model file not found")

// ExitError reports an unexpected nonzero exit of the recognizer, with
// whatever it wrote to stderr. Exits after a requested stop are not errors.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("recognizer exited with code %d", e.Code)
	}
	return fmt.Sprintf("recognizer exited with code %d: %s", e.Code, msg)
}
